package pipeline

import (
	"context"
	"testing"
	"time"

	"receipt_ingest_backend/internal/receipts"
	"receipt_ingest_backend/platform/logger"
)

type fakeClaimer struct {
	batches [][]receipts.Receipt

	claimCalls   int
	reclaimCalls int
	lastTimeout  time.Duration
}

func (c *fakeClaimer) ClaimDue(_ context.Context, _ int) ([]receipts.Receipt, error) {
	c.claimCalls++
	if len(c.batches) == 0 {
		return nil, nil
	}
	batch := c.batches[0]
	c.batches = c.batches[1:]
	return batch, nil
}

func (c *fakeClaimer) ReclaimStuck(_ context.Context, timeout time.Duration) (int64, error) {
	c.reclaimCalls++
	c.lastTimeout = timeout
	return 0, nil
}

func TestSchedulerPass_ProcessesClaimedBatch(t *testing.T) {
	store := &fakeStore{}
	processor := newTestProcessor(store, &fakeResolver{identity: &testIdentity}, &fakeExtractor{result: goodResult()}, &fakeOrders{})

	claimer := &fakeClaimer{batches: [][]receipts.Receipt{{testReceipt(), testReceipt()}}}
	s := NewScheduler(claimer, processor, pipelineCfg{}, logger.New("test"))

	s.pass(context.Background())

	if claimer.reclaimCalls != 1 {
		t.Fatalf("expected reclaim sweep before claiming, got %d", claimer.reclaimCalls)
	}
	if claimer.lastTimeout != 10*time.Minute {
		t.Fatalf("expected configured processing timeout, got %v", claimer.lastTimeout)
	}
	if len(store.concluded) != 2 {
		t.Fatalf("expected both receipts concluded, got %d", len(store.concluded))
	}
	// A short batch ends the pass without another claim round.
	if claimer.claimCalls != 1 {
		t.Fatalf("expected one claim call for a short batch, got %d", claimer.claimCalls)
	}
}

func TestSchedulerPass_DrainsFullBatches(t *testing.T) {
	store := &fakeStore{}
	processor := newTestProcessor(store, &fakeResolver{identity: &testIdentity}, &fakeExtractor{result: goodResult()}, &fakeOrders{})

	full := make([]receipts.Receipt, 10)
	for i := range full {
		full[i] = testReceipt()
	}
	claimer := &fakeClaimer{batches: [][]receipts.Receipt{full, {testReceipt()}}}
	s := NewScheduler(claimer, processor, pipelineCfg{}, logger.New("test"))

	s.pass(context.Background())

	if claimer.claimCalls != 2 {
		t.Fatalf("expected a second claim round after a full batch, got %d", claimer.claimCalls)
	}
	if len(store.concluded) != 11 {
		t.Fatalf("expected 11 receipts concluded, got %d", len(store.concluded))
	}
}

func TestSchedulerWake_NeverBlocks(t *testing.T) {
	s := NewScheduler(&fakeClaimer{}, nil, pipelineCfg{}, logger.New("test"))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.Wake()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wake must not block when a signal is already pending")
	}
}
