// Package pipeline drives claimed receipts through resolution, duplicate
// detection, extraction, guardrails and downstream sync, and owns the retry
// and retention schedules.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"receipt_ingest_backend/internal/actor"
	"receipt_ingest_backend/internal/downstream"
	"receipt_ingest_backend/internal/extraction"
	"receipt_ingest_backend/internal/receipts"
	"receipt_ingest_backend/platform/config"
	"receipt_ingest_backend/platform/logger"
)

// Store is the receipt persistence surface the processor needs.
type Store interface {
	FindDuplicate(ctx context.Context, excludeID uuid.UUID, resolvedEmail string, messageID *string, contentHash string) (*uuid.UUID, error)
	ConcludeAttempt(ctx context.Context, p receipts.ConcludeParams) (int, error)
}

// ActorResolver maps a sender address to an identity.
type ActorResolver interface {
	Resolve(ctx context.Context, senderEmail string) (*actor.Identity, error)
}

// Extractor turns email text into structured order data.
type Extractor interface {
	Extract(ctx context.Context, text string) (extraction.Result, error)
}

// OrderWriter creates orders and items in the downstream system.
type OrderWriter interface {
	CreateOrder(ctx context.Context, params downstream.OrderParams) (string, error)
	CreateItem(ctx context.Context, params downstream.ItemParams) (string, error)
}

// Processor runs one claimed receipt through the full pipeline and concludes
// the attempt. Every path through ProcessClaimed ends in exactly one
// ConcludeAttempt call.
type Processor struct {
	store     Store
	resolver  ActorResolver
	extractor Extractor
	orders    OrderWriter

	maxRetries int
	threshold  float64
	log        *logger.Logger

	now func() time.Time // test hook
}

// NewProcessor creates a processor.
func NewProcessor(store Store, resolver ActorResolver, extractor Extractor, orders OrderWriter, cfg config.PipelineConfig, extCfg config.ExtractionConfig, log *logger.Logger) *Processor {
	return &Processor{
		store:      store,
		resolver:   resolver,
		extractor:  extractor,
		orders:     orders,
		maxRetries: cfg.GetMaxRetries(),
		threshold:  extCfg.GetConfidenceThreshold(),
		log:        log,
		now:        time.Now,
	}
}

// ProcessClaimed processes one receipt that was already claimed into the
// processing state. The returned error reports only persistence failures
// while concluding; pipeline failures are absorbed into the receipt's own
// retry or terminal state.
func (p *Processor) ProcessClaimed(ctx context.Context, rec receipts.Receipt) error {
	log := p.log.WithReceiptID(rec.ID.String())

	identity, err := p.resolver.Resolve(ctx, rec.SenderEmail)
	if err != nil {
		return p.concludeFailure(ctx, rec, receipts.ConcludeParams{ReceiptID: rec.ID}, "resolve sender", err)
	}
	if identity == nil {
		return p.concludeQuarantine(ctx, rec, receipts.ConcludeParams{
			ReceiptID:       rec.ID,
			GuardrailReason: strptr(receipts.ReasonUnmappedSender),
		})
	}

	// Everything written from here on carries the resolved identity so a
	// later retry does not have to re-earn it.
	base := receipts.ConcludeParams{
		ReceiptID:         rec.ID,
		ResolvedUserEmail: strptr(identity.Email),
		ResolvedAuthor:    strptr(identity.Author),
		ResolvedTenantID:  strptr(identity.TenantID),
	}

	duplicateOf, err := p.store.FindDuplicate(ctx, rec.ID, identity.Email, rec.ProviderMessageID, rec.ContentHash)
	if err != nil {
		return p.concludeFailure(ctx, rec, base, "duplicate check", err)
	}
	if duplicateOf != nil {
		params := base
		params.GuardrailReason = strptr(receipts.ReasonDuplicate)
		params.DuplicateOfID = duplicateOf
		params.AttemptMetadata = map[string]any{"duplicateOfEventId": duplicateOf.String()}
		return p.concludeQuarantine(ctx, rec, params)
	}

	text := extraction.BodyText(deref(rec.RawTextBody), deref(rec.RawHTMLBody))
	if subject := deref(rec.Subject); subject != "" {
		text = "Subject: " + subject + "\n\n" + text
	}

	result, err := p.extractor.Extract(ctx, text)
	if err != nil {
		return p.concludeFailure(ctx, rec, base, "extraction", err)
	}
	base.ExtractedData = result.Raw

	items := extraction.NormalizeItems(result.Items)
	if reason := extraction.EvaluateGuardrails(result, items, p.threshold); reason != "" {
		params := base
		params.GuardrailReason = strptr(reason)
		return p.concludeQuarantine(ctx, rec, params)
	}

	orderID, itemIDs, err := p.syncDownstream(ctx, rec, *identity, result, items)
	if orderID != "" {
		base.DownstreamOrderID = strptr(orderID)
	}
	base.DownstreamItemIDs = itemIDs
	if err != nil {
		base.AttemptMetadata = map[string]any{
			"itemsPlanned": len(items),
			"itemsCreated": len(itemIDs),
			"itemIds":      itemIDs,
		}
		if orderID != "" {
			base.AttemptMetadata["orderId"] = orderID
		}
		return p.concludeFailure(ctx, rec, base, "downstream sync", err)
	}

	params := base
	params.Status = receipts.StatusSynced
	params.AttemptMetadata = map[string]any{
		"itemsCreated": len(itemIDs),
		"itemIds":      itemIDs,
		"orderId":      orderID,
	}
	attempt, err := p.store.ConcludeAttempt(ctx, params)
	if err != nil {
		log.DatabaseError("conclude synced attempt", err)
		return err
	}
	log.ReceiptOutcome(rec.ID.String(), string(receipts.StatusSynced), attempt, "")
	return nil
}

// syncDownstream creates the order and its items, returning whatever ids were
// created even when a later call fails so the attempt records partial
// progress.
func (p *Processor) syncDownstream(ctx context.Context, rec receipts.Receipt, id actor.Identity, result extraction.Result, items []extraction.Item) (string, []string, error) {
	orderID, err := p.orders.CreateOrder(ctx, downstream.OrderParams{
		TenantID:    id.TenantID,
		Author:      id.Author,
		Supplier:    p.supplierFor(result, rec),
		OrderDate:   p.orderDateFor(result, rec),
		TotalAmount: result.TotalAmount,
		SourceEmail: id.Email,
	})
	if err != nil {
		return "", nil, err
	}

	itemIDs := make([]string, 0, len(items))
	for _, item := range items {
		itemID, err := p.orders.CreateItem(ctx, downstream.ItemParams{
			TenantID:   id.TenantID,
			OrderID:    orderID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			Unit:       item.Unit,
			UnitPrice:  item.UnitPrice,
			PartNumber: item.PartNumber,
		})
		if err != nil {
			return orderID, itemIDs, err
		}
		itemIDs = append(itemIDs, itemID)
	}
	return orderID, itemIDs, nil
}

// supplierFor prefers the extracted supplier and falls back to the sender
// domain's first label, capitalized ("orders@bouwservice.nl" -> "Bouwservice").
func (p *Processor) supplierFor(result extraction.Result, rec receipts.Receipt) string {
	if supplier := strings.TrimSpace(result.Supplier); supplier != "" {
		return supplier
	}
	domain := rec.SenderEmail
	if at := strings.LastIndex(domain, "@"); at >= 0 && at < len(domain)-1 {
		domain = domain[at+1:]
	}
	label, _, _ := strings.Cut(domain, ".")
	if label == "" {
		return domain
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

// orderDateFor prefers the extracted date, then the email's own date, then
// the processing time.
func (p *Processor) orderDateFor(result extraction.Result, rec receipts.Receipt) time.Time {
	if result.OrderDate != "" {
		if parsed, err := time.Parse("2006-01-02", result.OrderDate); err == nil {
			return parsed
		}
	}
	if rec.EmailDate != nil {
		return *rec.EmailDate
	}
	return p.now()
}

func (p *Processor) concludeQuarantine(ctx context.Context, rec receipts.Receipt, params receipts.ConcludeParams) error {
	params.Status = receipts.StatusQuarantined
	if params.GuardrailReason != nil {
		if params.AttemptMetadata == nil {
			params.AttemptMetadata = map[string]any{}
		}
		params.AttemptMetadata["reason"] = *params.GuardrailReason
	}
	attempt, err := p.store.ConcludeAttempt(ctx, params)
	if err != nil {
		p.log.DatabaseError("conclude quarantined attempt", err)
		return err
	}
	p.log.ReceiptOutcome(rec.ID.String(), string(receipts.StatusQuarantined), attempt, deref(params.GuardrailReason))
	return nil
}

// concludeFailure decides between retry and the terminal failed state. A
// transient failure retries with exponential backoff until the retry budget
// is spent; anything else fails immediately.
func (p *Processor) concludeFailure(ctx context.Context, rec receipts.Receipt, params receipts.ConcludeParams, stage string, cause error) error {
	thisAttempt := rec.AttemptCount + 1
	errText := stage + ": " + cause.Error()
	params.LastError = &errText

	if IsTransient(cause) && thisAttempt < p.maxRetries {
		params.Status = receipts.StatusRetry
		due := p.now().Add(RetryBackoff(thisAttempt))
		params.NextAttemptAt = &due
	} else {
		params.Status = receipts.StatusFailed
	}

	attempt, err := p.store.ConcludeAttempt(ctx, params)
	if err != nil {
		p.log.DatabaseError("conclude failed attempt", err)
		return err
	}
	p.log.ReceiptOutcome(rec.ID.String(), string(params.Status), attempt, "")
	p.log.Warn("receipt pass failed", "receipt_id", rec.ID.String(), "stage", stage, "error", cause.Error(), "status", string(params.Status))
	return nil
}

func strptr(s string) *string { return &s }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
