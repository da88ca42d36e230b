package receipts

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"receipt_ingest_backend/platform/apperr"
)

// InboundPayload is the provider-specific shape handed over by the ingestion
// boundary. Date is kept as the provider's raw string so the content hash is
// stable across date formats.
type InboundPayload struct {
	Provider        string
	MessageID       string
	From            string // "Name <addr>" or bare address
	SenderName      string
	Subject         string
	SourceRecipient string
	Date            string
	RawHeaders      string
	TextBody        string
	HTMLBody        string
}

// NormalizedPayload is the canonical record derived from an InboundPayload.
type NormalizedPayload struct {
	Provider        string
	FromEmail       string
	SenderName      string
	Subject         string
	SourceRecipient string
	MessageID       *string
	EmailDate       *time.Time
	RawHeaders      string
	TextBody        string
	HTMLBody        string
	ContentHash     string
	IdempotencyKey  string
}

var angleAddrRegex = regexp.MustCompile(`<([^<>]+)>`)

// Known email date layouts, most specific first. RFC 5322 variants dominate.
var emailDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC3339,
	"2006-01-02",
}

// Normalize turns a provider payload into the canonical shape and computes its
// stable identifiers. It performs no network or storage side effects.
func Normalize(p InboundPayload) (NormalizedPayload, error) {
	fromEmail, err := ParseSenderAddress(p.From)
	if err != nil {
		return NormalizedPayload{}, err
	}

	n := NormalizedPayload{
		Provider:        p.Provider,
		FromEmail:       fromEmail,
		SenderName:      strings.TrimSpace(p.SenderName),
		Subject:         p.Subject,
		SourceRecipient: strings.TrimSpace(p.SourceRecipient),
		EmailDate:       parseEmailDate(p.Date),
		RawHeaders:      p.RawHeaders,
		TextBody:        p.TextBody,
		HTMLBody:        p.HTMLBody,
	}

	if id := normalizeMessageID(p.MessageID); id != "" {
		n.MessageID = &id
	}

	n.ContentHash = contentHash(fromEmail, p.Subject, p.Date, p.TextBody, p.HTMLBody)

	if n.MessageID != nil {
		n.IdempotencyKey = p.Provider + ":" + *n.MessageID
	} else {
		n.IdempotencyKey = p.Provider + ":" + n.ContentHash
	}

	return n, nil
}

// ParseSenderAddress extracts a lowercased address from "Name <addr>" or a
// bare address. Fails when neither form yields an @-containing string.
func ParseSenderAddress(from string) (string, error) {
	candidate := strings.TrimSpace(from)
	if m := angleAddrRegex.FindStringSubmatch(candidate); m != nil {
		candidate = strings.TrimSpace(m[1])
	}
	if !strings.Contains(candidate, "@") {
		return "", apperr.Validation("sender address could not be parsed").WithOp("receipts.Normalize")
	}
	return strings.ToLower(candidate), nil
}

// normalizeMessageID strips surrounding angle brackets and whitespace.
func normalizeMessageID(raw string) string {
	id := strings.TrimSpace(raw)
	id = strings.TrimPrefix(id, "<")
	id = strings.TrimSuffix(id, ">")
	return strings.TrimSpace(id)
}

// contentHash is a stable sha-256 over the identifying content fields,
// newline-joined, in a fixed order.
func contentHash(fromEmail, subject, date, textBody, htmlBody string) string {
	h := sha256.Sum256([]byte(strings.Join([]string{fromEmail, subject, date, textBody, htmlBody}, "\n")))
	return hex.EncodeToString(h[:])
}

func parseEmailDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range emailDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}
