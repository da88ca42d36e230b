package extraction

import "receipt_ingest_backend/internal/receipts"

// EvaluateGuardrails applies the pass/fail business rules to an extraction.
// Checks run in a fixed order and the first failure wins, so outcomes are
// deterministic when several rules would fail at once. Returns the quarantine
// reason, or "" on pass. Item rules are evaluated against the normalized
// item list, not the model's raw output.
func EvaluateGuardrails(res Result, normalizedItems []Item, threshold float64) string {
	if !res.IsOrder {
		return receipts.ReasonNotOrder
	}
	if len(normalizedItems) == 0 {
		return receipts.ReasonNoItems
	}
	if res.Confidence < threshold {
		return receipts.ReasonLowConfidence
	}
	return ""
}
