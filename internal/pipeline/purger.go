package pipeline

import (
	"context"
	"time"

	"receipt_ingest_backend/platform/config"
	"receipt_ingest_backend/platform/logger"
)

// PurgeStore is the retention surface of the receipts repository.
type PurgeStore interface {
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Purger scrubs raw email content past the retention window. Extracted data
// and the attempt log are kept.
type Purger struct {
	store     PurgeStore
	retention time.Duration
	log       *logger.Logger

	now func() time.Time // test hook
}

// NewPurger creates a purger.
func NewPurger(store PurgeStore, cfg config.PipelineConfig, log *logger.Logger) *Purger {
	return &Purger{
		store:     store,
		retention: time.Duration(cfg.GetRetentionDays()) * 24 * time.Hour,
		log:       log,
		now:       time.Now,
	}
}

// RunOnce scrubs everything older than the retention window. Safe to run on
// any cadence; already-scrubbed rows are not touched again.
func (p *Purger) RunOnce(ctx context.Context) error {
	cutoff := p.now().Add(-p.retention)
	scrubbed, err := p.store.PurgeExpired(ctx, cutoff)
	if err != nil {
		p.log.DatabaseError("purge expired raw content", err)
		return err
	}
	if scrubbed > 0 {
		p.log.Info("scrubbed raw content past retention", "count", scrubbed, "cutoff", cutoff.Format(time.RFC3339))
	}
	return nil
}
