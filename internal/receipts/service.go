package receipts

import (
	"context"
	"errors"

	"receipt_ingest_backend/platform/apperr"
	"receipt_ingest_backend/platform/logger"

	"github.com/google/uuid"
)

// ProcessTrigger wakes the claim scheduler shortly after an enqueue so fresh
// receipts do not wait for the next tick. Implementations coalesce bursts.
type ProcessTrigger interface {
	NotifyProcessDue(ctx context.Context) error
}

// Store is the persistence surface the service needs.
type Store interface {
	Insert(ctx context.Context, p NormalizedPayload) (EnqueueResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (Receipt, error)
}

// Service implements the ingestion and status boundaries.
type Service struct {
	store   Store
	trigger ProcessTrigger
	log     *logger.Logger
}

// NewService creates a new receipts service.
func NewService(store Store, trigger ProcessTrigger, log *logger.Logger) *Service {
	return &Service{store: store, trigger: trigger, log: log}
}

// Enqueue normalizes and durably stores an inbound payload. Byte-identical
// payloads map to the same idempotency key and return the original event id
// with Duplicate set. A new row schedules an immediate processing trigger.
func (s *Service) Enqueue(ctx context.Context, payload InboundPayload) (EnqueueResult, error) {
	normalized, err := Normalize(payload)
	if err != nil {
		return EnqueueResult{}, err
	}

	result, err := s.store.Insert(ctx, normalized)
	if err != nil {
		return EnqueueResult{}, apperr.Wrap(apperr.KindInternal, "failed to enqueue receipt", err).WithOp("receipts.Enqueue")
	}

	if result.Duplicate {
		s.log.Info("receipt enqueue suppressed by idempotency key",
			"event_id", result.ReceiptID, "provider", normalized.Provider)
		return result, nil
	}

	s.log.Info("receipt enqueued",
		"event_id", result.ReceiptID, "provider", normalized.Provider, "sender", normalized.FromEmail)

	if s.trigger != nil {
		// Best effort: the periodic tick picks the row up anyway.
		if err := s.trigger.NotifyProcessDue(ctx); err != nil {
			s.log.Warn("processing trigger failed", "error", err)
		}
	}

	return result, nil
}

// GetStatus returns the externally visible state of one receipt.
func (s *Service) GetStatus(ctx context.Context, eventID uuid.UUID) (Receipt, error) {
	rec, err := s.store.GetByID(ctx, eventID)
	if errors.Is(err, ErrReceiptNotFound) {
		return Receipt{}, apperr.NotFound("receipt not found")
	}
	if err != nil {
		return Receipt{}, apperr.Wrap(apperr.KindInternal, "failed to load receipt", err).WithOp("receipts.GetStatus")
	}
	return rec, nil
}
