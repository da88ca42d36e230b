package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"receipt_ingest_backend/platform/logger"
)

type fakePurgeStore struct {
	cutoff   time.Time
	scrubbed int64
	err      error
}

func (s *fakePurgeStore) PurgeExpired(_ context.Context, cutoff time.Time) (int64, error) {
	s.cutoff = cutoff
	return s.scrubbed, s.err
}

func TestPurgerRunOnce_UsesRetentionCutoff(t *testing.T) {
	store := &fakePurgeStore{scrubbed: 3}
	p := NewPurger(store, pipelineCfg{}, logger.New("test"))
	p.now = func() time.Time { return time.Date(2026, 9, 1, 3, 0, 0, 0, time.UTC) }

	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2026, 8, 2, 3, 0, 0, 0, time.UTC) // 30 days back
	if !store.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %v, got %v", want, store.cutoff)
	}
}

func TestPurgerRunOnce_PropagatesError(t *testing.T) {
	store := &fakePurgeStore{err: errors.New("db down")}
	p := NewPurger(store, pipelineCfg{}, logger.New("test"))

	if err := p.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error to propagate")
	}
}
