package pipeline

import "time"

const maxBackoff = 60 * time.Minute

// RetryBackoff returns the delay before the next attempt after attemptNumber
// attempts have completed. The schedule doubles per attempt and is capped:
// 1m, 2m, 4m, 8m, 16m, 32m, 60m.
func RetryBackoff(attemptNumber int) time.Duration {
	if attemptNumber < 1 {
		attemptNumber = 1
	}
	shift := attemptNumber - 1
	if shift > 6 {
		return maxBackoff
	}
	d := time.Duration(1<<uint(shift)) * time.Minute
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
