// Package receipts provides the inbound receipt ingestion bounded context.
// It owns the durable receipt queue, idempotent enqueue, the claim query used
// by the processing pipeline, and the status API.
package receipts

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an inbound receipt.
type Status string

const (
	// StatusReceived marks a freshly enqueued receipt awaiting its first pass.
	StatusReceived Status = "received"
	// StatusProcessing marks a receipt claimed by exactly one worker.
	StatusProcessing Status = "processing"
	// StatusRetry marks a receipt scheduled for another pass after a transient failure.
	StatusRetry Status = "retry"
	// StatusQuarantined marks a terminal business-rule rejection. Never retried.
	StatusQuarantined Status = "quarantined"
	// StatusSynced marks a receipt whose order reached the downstream system.
	StatusSynced Status = "synced"
	// StatusFailed marks a terminal infrastructure failure.
	StatusFailed Status = "failed"
)

// Quarantine reasons. Stored verbatim in guardrail_reason.
const (
	ReasonUnmappedSender = "unmapped_sender"
	ReasonDuplicate      = "duplicate"
	ReasonNotOrder       = "not_order"
	ReasonNoItems        = "no_items"
	ReasonLowConfidence  = "low_confidence"
)

// Receipt is one accepted inbound message, durable for its whole lifecycle.
// Raw content fields are nulled after the retention window; everything else
// survives for audit.
type Receipt struct {
	ID                uuid.UUID
	Provider          string
	ProviderMessageID *string
	IdempotencyKey    string
	SenderEmail       string
	SenderName        *string
	Subject           *string
	SourceRecipient   *string
	EmailDate         *time.Time
	RawHeaders        *string
	RawTextBody       *string
	RawHTMLBody       *string
	ContentHash       string
	Status            Status
	GuardrailReason   *string
	ResolvedUserEmail *string
	ResolvedAuthor    *string
	ResolvedTenantID  *string
	ExtractedData     json.RawMessage
	DownstreamOrderID *string
	DownstreamItemIDs []string
	DuplicateOfID     *uuid.UUID
	AttemptCount      int
	NextAttemptAt     time.Time
	LastError         *string
	ProcessedAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Attempt is one immutable entry of a receipt's processing audit log.
type Attempt struct {
	ID            uuid.UUID
	ReceiptID     uuid.UUID
	AttemptNumber int
	Status        Status
	Error         *string
	Metadata      json.RawMessage
	CreatedAt     time.Time
}
