package receipts

import (
	"time"

	"github.com/google/uuid"
)

// EnqueueRequest is the inbound webhook payload accepted by the ingestion boundary.
type EnqueueRequest struct {
	Provider        string `json:"provider" validate:"required,max=64"`
	MessageID       string `json:"messageId" validate:"max=512"`
	From            string `json:"from" validate:"required,max=512"`
	SenderName      string `json:"senderName" validate:"max=256"`
	Subject         string `json:"subject" validate:"max=1024"`
	SourceRecipient string `json:"sourceRecipient" validate:"max=512"`
	Date            string `json:"date" validate:"max=64"`
	RawHeaders      string `json:"rawHeaders"`
	TextBody        string `json:"textBody"`
	HTMLBody        string `json:"htmlBody"`
}

func (r EnqueueRequest) toPayload() InboundPayload {
	return InboundPayload{
		Provider:        r.Provider,
		MessageID:       r.MessageID,
		From:            r.From,
		SenderName:      r.SenderName,
		Subject:         r.Subject,
		SourceRecipient: r.SourceRecipient,
		Date:            r.Date,
		RawHeaders:      r.RawHeaders,
		TextBody:        r.TextBody,
		HTMLBody:        r.HTMLBody,
	}
}

// EnqueueResponse is returned by the ingestion boundary.
type EnqueueResponse struct {
	EventID   uuid.UUID `json:"eventId"`
	Duplicate bool      `json:"duplicate"`
	Status    Status    `json:"status"`
}

// StatusResponse is the status boundary payload.
type StatusResponse struct {
	EventID             uuid.UUID  `json:"eventId"`
	Provider            string     `json:"provider"`
	FromEmail           string     `json:"fromEmail"`
	Subject             *string    `json:"subject"`
	Status              Status     `json:"status"`
	GuardrailReason     *string    `json:"guardrailReason"`
	ResolvedUserEmail   *string    `json:"resolvedUserEmail"`
	ResolvedAuthor      *string    `json:"resolvedAuthor"`
	ResolvedTenantID    *string    `json:"resolvedTenantId"`
	AttemptCount        int        `json:"attemptCount"`
	NextAttemptAt       time.Time  `json:"nextAttemptAt"`
	LastError           *string    `json:"lastError"`
	ProcessedAt         *time.Time `json:"processedAt"`
	DownstreamOrderID   *string    `json:"downstreamOrderId"`
	DownstreamItemCount int        `json:"downstreamItemCount"`
}

func toStatusResponse(rec Receipt) StatusResponse {
	return StatusResponse{
		EventID:             rec.ID,
		Provider:            rec.Provider,
		FromEmail:           rec.SenderEmail,
		Subject:             rec.Subject,
		Status:              rec.Status,
		GuardrailReason:     rec.GuardrailReason,
		ResolvedUserEmail:   rec.ResolvedUserEmail,
		ResolvedAuthor:      rec.ResolvedAuthor,
		ResolvedTenantID:    rec.ResolvedTenantID,
		AttemptCount:        rec.AttemptCount,
		NextAttemptAt:       rec.NextAttemptAt,
		LastError:           rec.LastError,
		ProcessedAt:         rec.ProcessedAt,
		DownstreamOrderID:   rec.DownstreamOrderID,
		DownstreamItemCount: len(rec.DownstreamItemIDs),
	}
}
