package pipeline

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// statusCoder is implemented by downstream and directory client errors.
type statusCoder interface {
	HTTPStatusCode() int
}

var transientPatterns = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection reset",
	"connection refused",
	"no such host",
	"broken pipe",
	"rate limit",
	"too many requests",
	"429",
	"500",
	"502",
	"503",
	"504",
	"unavailable",
	"temporarily",
	"overloaded",
	"eof",
}

// IsTransient reports whether err looks like a temporary failure worth
// retrying. Errors carrying an HTTP status code are classified by code;
// everything else falls back to message inspection.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		code := sc.HTTPStatusCode()
		if code == http.StatusTooManyRequests || code == http.StatusRequestTimeout {
			return true
		}
		return code >= 500
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
