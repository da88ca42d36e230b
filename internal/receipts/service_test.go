package receipts

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"receipt_ingest_backend/platform/apperr"
	"receipt_ingest_backend/platform/logger"
)

type fakeStore struct {
	result    EnqueueResult
	insertErr error
	inserted  []NormalizedPayload

	receipt Receipt
	getErr  error
}

func (s *fakeStore) Insert(_ context.Context, p NormalizedPayload) (EnqueueResult, error) {
	s.inserted = append(s.inserted, p)
	return s.result, s.insertErr
}

func (s *fakeStore) GetByID(_ context.Context, _ uuid.UUID) (Receipt, error) {
	return s.receipt, s.getErr
}

type fakeTrigger struct {
	calls int
	err   error
}

func (t *fakeTrigger) NotifyProcessDue(_ context.Context) error {
	t.calls++
	return t.err
}

func validPayload() InboundPayload {
	return InboundPayload{
		Provider:  "sendgrid",
		MessageID: "<abc@mail.example.com>",
		From:      "Orders <orders@example.com>",
		Subject:   "Order confirmation",
		TextBody:  "2x bolts",
	}
}

func TestEnqueue_FirstInsertFiresTrigger(t *testing.T) {
	id := uuid.New()
	store := &fakeStore{result: EnqueueResult{ReceiptID: id, Status: StatusReceived}}
	trigger := &fakeTrigger{}
	svc := NewService(store, trigger, logger.New("test"))

	result, err := svc.Enqueue(context.Background(), validPayload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Duplicate {
		t.Fatal("first insert must not report duplicate")
	}
	if result.ReceiptID != id || result.Status != StatusReceived {
		t.Fatalf("unexpected result %+v", result)
	}
	if trigger.calls != 1 {
		t.Fatalf("expected one trigger signal, got %d", trigger.calls)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("expected one insert, got %d", len(store.inserted))
	}
	if store.inserted[0].IdempotencyKey != "sendgrid:abc@mail.example.com" {
		t.Fatalf("unexpected idempotency key %q", store.inserted[0].IdempotencyKey)
	}
}

func TestEnqueue_DuplicateSuppressesTrigger(t *testing.T) {
	original := uuid.New()
	store := &fakeStore{result: EnqueueResult{ReceiptID: original, Status: StatusSynced, Duplicate: true}}
	trigger := &fakeTrigger{}
	svc := NewService(store, trigger, logger.New("test"))

	result, err := svc.Enqueue(context.Background(), validPayload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Duplicate {
		t.Fatal("expected duplicate result")
	}
	if result.ReceiptID != original {
		t.Fatal("duplicate must return the original event id")
	}
	if result.Status != StatusSynced {
		t.Fatalf("duplicate must return the original's status, got %s", result.Status)
	}
	if trigger.calls != 0 {
		t.Fatalf("duplicate enqueue must not fire the trigger, got %d calls", trigger.calls)
	}
}

func TestEnqueue_UnparsableSenderIsValidationError(t *testing.T) {
	store := &fakeStore{}
	trigger := &fakeTrigger{}
	svc := NewService(store, trigger, logger.New("test"))

	payload := validPayload()
	payload.From = "not an address"
	_, err := svc.Enqueue(context.Background(), payload)
	if err == nil {
		t.Fatal("expected validation error")
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
		t.Fatalf("expected validation kind, got %v", err)
	}
	if len(store.inserted) != 0 {
		t.Fatal("invalid payload must never reach the store")
	}
	if trigger.calls != 0 {
		t.Fatal("invalid payload must not fire the trigger")
	}
}

func TestEnqueue_TriggerFailureIsNotFatal(t *testing.T) {
	store := &fakeStore{result: EnqueueResult{ReceiptID: uuid.New(), Status: StatusReceived}}
	trigger := &fakeTrigger{err: errors.New("redis down")}
	svc := NewService(store, trigger, logger.New("test"))

	if _, err := svc.Enqueue(context.Background(), validPayload()); err != nil {
		t.Fatalf("trigger failure must not fail the enqueue: %v", err)
	}
}

func TestGetStatus_NotFoundMapsToAppError(t *testing.T) {
	store := &fakeStore{getErr: ErrReceiptNotFound}
	svc := NewService(store, &fakeTrigger{}, logger.New("test"))

	_, err := svc.GetStatus(context.Background(), uuid.New())
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindNotFound {
		t.Fatalf("expected not-found kind, got %v", err)
	}
}
