package receipts

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrReceiptNotFound = errors.New("inbound receipt not found")

const receiptColumns = `id, provider, provider_message_id, idempotency_key, sender_email, sender_name,
	subject, source_recipient, email_date, raw_headers, raw_text_body, raw_html_body, content_hash,
	status, guardrail_reason, resolved_user_email, resolved_author, resolved_tenant_id, extracted_data,
	downstream_order_id, downstream_item_ids, duplicate_of_id, attempt_count, next_attempt_at,
	last_error, processed_at, created_at, updated_at`

// Repository provides data access for inbound receipts and their attempt log.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new receipts repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnqueueResult reports the outcome of an idempotent insert.
type EnqueueResult struct {
	ReceiptID uuid.UUID
	Status    Status
	Duplicate bool
}

// Insert performs an insert-if-absent keyed on idempotency_key. On conflict it
// returns the existing row's id and status with Duplicate set; no second row
// and no attempt log entry are ever created for the same key.
func (r *Repository) Insert(ctx context.Context, p NormalizedPayload) (EnqueueResult, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO inbound_receipts (
			provider, provider_message_id, idempotency_key, sender_email, sender_name,
			subject, source_recipient, email_date, raw_headers, raw_text_body, raw_html_body,
			content_hash, status, next_attempt_at
		)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8,
			NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), $12, 'received', now())
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id
	`, p.Provider, p.MessageID, p.IdempotencyKey, p.FromEmail, p.SenderName,
		p.Subject, p.SourceRecipient, p.EmailDate, p.RawHeaders, p.TextBody, p.HTMLBody,
		p.ContentHash).Scan(&id)
	if err == nil {
		return EnqueueResult{ReceiptID: id, Status: StatusReceived}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return EnqueueResult{}, err
	}

	// Conflict path: surface the existing row.
	var existing EnqueueResult
	var status string
	err = r.pool.QueryRow(ctx, `
		SELECT id, status FROM inbound_receipts WHERE idempotency_key = $1
	`, p.IdempotencyKey).Scan(&existing.ReceiptID, &status)
	if err != nil {
		return EnqueueResult{}, err
	}
	existing.Status = Status(status)
	existing.Duplicate = true
	return existing, nil
}

// GetByID retrieves a receipt by id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Receipt, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+receiptColumns+` FROM inbound_receipts WHERE id = $1`, id)
	rec, err := scanReceipt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Receipt{}, ErrReceiptNotFound
	}
	return rec, err
}

// ClaimDue atomically claims up to limit due receipts, transitioning them to
// processing. The lock-and-skip pattern guarantees at-most-one active worker
// per receipt across concurrent instances.
func (r *Repository) ClaimDue(ctx context.Context, limit int) ([]Receipt, error) {
	if limit < 1 {
		limit = 10
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `WITH cte AS (
		SELECT id
		FROM inbound_receipts
		WHERE status IN ('received', 'retry') AND next_attempt_at <= now()
		ORDER BY next_attempt_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	)
	UPDATE inbound_receipts rec
	SET status = 'processing', updated_at = now()
	FROM cte
	WHERE rec.id = cte.id
	RETURNING `+prefixColumns("rec."), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claimed []Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return claimed, nil
}

// ReclaimStuck resets receipts left in processing longer than timeout back to
// retry, due immediately. The interrupted pass never concluded, so
// attempt_count is not incremented. Returns the number of reclaimed rows.
func (r *Repository) ReclaimStuck(ctx context.Context, timeout time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE inbound_receipts
		SET status = 'retry', next_attempt_at = now(), updated_at = now()
		WHERE status = 'processing' AND updated_at < now() - $1::interval
	`, timeout)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// FindDuplicate searches other already-picked-up receipts for the same
// resolved sender where either the message id or the content hash matches.
// The earliest row wins as the canonical original. Returns nil when no match.
func (r *Repository) FindDuplicate(ctx context.Context, excludeID uuid.UUID, resolvedEmail string, messageID *string, contentHash string) (*uuid.UUID, error) {
	var matched uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT id
		FROM inbound_receipts
		WHERE id <> $1
		  AND status <> 'received'
		  AND resolved_user_email = $2
		  AND (($3::text IS NOT NULL AND provider_message_id = $3) OR content_hash = $4)
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`, excludeID, resolvedEmail, messageID, contentHash).Scan(&matched)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &matched, nil
}

// ConcludeParams carries everything one processing pass writes back. Optional
// pointer fields are persisted only when set; columns already holding values
// are preserved.
type ConcludeParams struct {
	ReceiptID         uuid.UUID
	Status            Status
	GuardrailReason   *string
	ResolvedUserEmail *string
	ResolvedAuthor    *string
	ResolvedTenantID  *string
	ExtractedData     json.RawMessage
	DownstreamOrderID *string
	DownstreamItemIDs []string
	DuplicateOfID     *uuid.UUID
	LastError         *string
	NextAttemptAt     *time.Time // retry only; terminal states become due immediately
	AttemptMetadata   map[string]any
}

// ConcludeAttempt persists the outcome of exactly one processing pass: the
// parent row transition plus one immutable attempt log entry, in a single
// transaction. attempt_count increments by exactly 1 regardless of outcome.
// Returns the attempt number that was logged.
func (r *Repository) ConcludeAttempt(ctx context.Context, p ConcludeParams) (int, error) {
	terminal := p.Status == StatusQuarantined || p.Status == StatusSynced || p.Status == StatusFailed

	var metadata []byte
	if len(p.AttemptMetadata) > 0 {
		encoded, err := json.Marshal(p.AttemptMetadata)
		if err != nil {
			return 0, err
		}
		metadata = encoded
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var attemptNumber int
	err = tx.QueryRow(ctx, `
		UPDATE inbound_receipts
		SET status = $2,
		    guardrail_reason = COALESCE($3, guardrail_reason),
		    resolved_user_email = COALESCE($4, resolved_user_email),
		    resolved_author = COALESCE($5, resolved_author),
		    resolved_tenant_id = COALESCE($6, resolved_tenant_id),
		    extracted_data = COALESCE($7, extracted_data),
		    downstream_order_id = COALESCE($8, downstream_order_id),
		    downstream_item_ids = COALESCE($9, downstream_item_ids),
		    duplicate_of_id = COALESCE($10, duplicate_of_id),
		    last_error = $11,
		    next_attempt_at = COALESCE($12, now()),
		    processed_at = CASE WHEN $13 THEN now() ELSE processed_at END,
		    attempt_count = attempt_count + 1,
		    updated_at = now()
		WHERE id = $1
		RETURNING attempt_count
	`, p.ReceiptID, string(p.Status), p.GuardrailReason, p.ResolvedUserEmail, p.ResolvedAuthor,
		p.ResolvedTenantID, p.ExtractedData, p.DownstreamOrderID, p.DownstreamItemIDs,
		p.DuplicateOfID, p.LastError, p.NextAttemptAt, terminal).Scan(&attemptNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrReceiptNotFound
	}
	if err != nil {
		return 0, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO inbound_receipt_attempts (receipt_id, attempt_number, status, error, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ReceiptID, attemptNumber, string(p.Status), p.LastError, metadata)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return attemptNumber, nil
}

// ListAttempts returns a receipt's attempt log, oldest first.
func (r *Repository) ListAttempts(ctx context.Context, receiptID uuid.UUID) ([]Attempt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, receipt_id, attempt_number, status, error, metadata, created_at
		FROM inbound_receipt_attempts
		WHERE receipt_id = $1
		ORDER BY attempt_number ASC
	`, receiptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var status string
		if err := rows.Scan(&a.ID, &a.ReceiptID, &a.AttemptNumber, &status, &a.Error, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Status = Status(status)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// PurgeExpired nulls the raw content fields of receipts created before cutoff
// that still carry any raw field. Status, extracted data and the attempt log
// are untouched. Idempotent. Returns the number of scrubbed rows.
func (r *Repository) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE inbound_receipts
		SET raw_headers = NULL, raw_text_body = NULL, raw_html_body = NULL, updated_at = now()
		WHERE created_at < $1
		  AND (raw_headers IS NOT NULL OR raw_text_body IS NOT NULL OR raw_html_body IS NOT NULL)
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Ping checks database connectivity for health endpoints.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// prefixColumns qualifies every receipt column with a table alias for use in
// UPDATE ... RETURNING clauses.
func prefixColumns(prefix string) string {
	cols := strings.Split(receiptColumns, ",")
	for i, col := range cols {
		cols[i] = prefix + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}

func scanReceipt(row pgx.Row) (Receipt, error) {
	var rec Receipt
	var status string
	err := row.Scan(
		&rec.ID, &rec.Provider, &rec.ProviderMessageID, &rec.IdempotencyKey, &rec.SenderEmail,
		&rec.SenderName, &rec.Subject, &rec.SourceRecipient, &rec.EmailDate, &rec.RawHeaders,
		&rec.RawTextBody, &rec.RawHTMLBody, &rec.ContentHash, &status, &rec.GuardrailReason,
		&rec.ResolvedUserEmail, &rec.ResolvedAuthor, &rec.ResolvedTenantID, &rec.ExtractedData,
		&rec.DownstreamOrderID, &rec.DownstreamItemIDs, &rec.DuplicateOfID, &rec.AttemptCount,
		&rec.NextAttemptAt, &rec.LastError, &rec.ProcessedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return Receipt{}, err
	}
	rec.Status = Status(status)
	return rec, nil
}
