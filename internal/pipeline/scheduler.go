package pipeline

import (
	"context"
	"time"

	"receipt_ingest_backend/internal/receipts"
	"receipt_ingest_backend/platform/config"
	"receipt_ingest_backend/platform/logger"
)

// Claimer is the claim surface of the receipts repository.
type Claimer interface {
	ClaimDue(ctx context.Context, limit int) ([]receipts.Receipt, error)
	ReclaimStuck(ctx context.Context, timeout time.Duration) (int64, error)
}

// Scheduler polls for due receipts on a fixed tick and also wakes on demand
// when a trigger signals fresh work. Claimed receipts are processed
// sequentially; a failing receipt never stops the batch.
type Scheduler struct {
	claimer   Claimer
	processor *Processor

	interval time.Duration
	batch    int
	timeout  time.Duration
	log      *logger.Logger

	wake chan struct{}
}

// NewScheduler creates a scheduler.
func NewScheduler(claimer Claimer, processor *Processor, cfg config.PipelineConfig, log *logger.Logger) *Scheduler {
	return &Scheduler{
		claimer:   claimer,
		processor: processor,
		interval:  cfg.GetClaimTickInterval(),
		batch:     cfg.GetClaimBatchSize(),
		timeout:   cfg.GetProcessingTimeout(),
		log:       log,
		wake:      make(chan struct{}, 1),
	}
}

// Wake requests an immediate pass. Signals arriving while a pass is already
// pending coalesce into one.
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run drives the claim loop until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("claim scheduler started", "interval", s.interval.String(), "batch_size", s.batch)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("claim scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
		case <-s.wake:
		}
		s.pass(ctx)
	}
}

// pass reclaims abandoned receipts, then drains due batches until one comes
// back short.
func (s *Scheduler) pass(ctx context.Context) {
	reclaimed, err := s.claimer.ReclaimStuck(ctx, s.timeout)
	if err != nil {
		s.log.DatabaseError("reclaim stuck receipts", err)
	} else if reclaimed > 0 {
		s.log.Warn("reclaimed abandoned receipts", "count", reclaimed)
	}

	for {
		if ctx.Err() != nil {
			return
		}

		claimed, err := s.claimer.ClaimDue(ctx, s.batch)
		if err != nil {
			s.log.DatabaseError("claim due receipts", err)
			return
		}
		if len(claimed) == 0 {
			return
		}

		for _, rec := range claimed {
			if ctx.Err() != nil {
				return
			}
			if err := s.processor.ProcessClaimed(ctx, rec); err != nil {
				s.log.Error("processing pass could not be concluded", "receipt_id", rec.ID.String(), "error", err.Error())
			}
		}

		if len(claimed) < s.batch {
			return
		}
	}
}
