package extraction

import "testing"

const threshold = 0.78

func TestEvaluateGuardrails_PassesCleanOrder(t *testing.T) {
	res := Result{IsOrder: true, Confidence: 0.91}
	items := []Item{{Name: "bolts", Quantity: 2, Unit: "ea"}}
	if reason := EvaluateGuardrails(res, items, threshold); reason != "" {
		t.Fatalf("expected no guardrail, got %q", reason)
	}
}

func TestEvaluateGuardrails_NotOrderWinsOverEverything(t *testing.T) {
	res := Result{IsOrder: false, Confidence: 0.05}
	if reason := EvaluateGuardrails(res, nil, threshold); reason != "not_order" {
		t.Fatalf("expected not_order, got %q", reason)
	}
}

func TestEvaluateGuardrails_NoItemsBeforeLowConfidence(t *testing.T) {
	res := Result{IsOrder: true, Confidence: 0.1}
	if reason := EvaluateGuardrails(res, nil, threshold); reason != "no_items" {
		t.Fatalf("expected no_items to take precedence, got %q", reason)
	}
}

func TestEvaluateGuardrails_LowConfidence(t *testing.T) {
	res := Result{IsOrder: true, Confidence: 0.5}
	items := []Item{{Name: "bolts", Quantity: 2, Unit: "ea"}}
	if reason := EvaluateGuardrails(res, items, threshold); reason != "low_confidence" {
		t.Fatalf("expected low_confidence, got %q", reason)
	}
}

func TestEvaluateGuardrails_ThresholdIsExclusive(t *testing.T) {
	res := Result{IsOrder: true, Confidence: threshold}
	items := []Item{{Name: "bolts", Quantity: 1, Unit: "ea"}}
	if reason := EvaluateGuardrails(res, items, threshold); reason != "" {
		t.Fatalf("confidence equal to the threshold must pass, got %q", reason)
	}
}
