// Package extraction invokes the AI model that turns receipt email bodies into
// structured purchase-order data, and applies the guardrail business rules to
// the result.
package extraction

import (
	"encoding/json"
	"strings"
)

// Item is one purchase-order line item as returned by the model.
type Item struct {
	Name       string   `json:"name"`
	Quantity   float64  `json:"quantity,omitempty"`
	Unit       string   `json:"unit,omitempty"`
	UnitPrice  *float64 `json:"unitPrice,omitempty"`
	PartNumber string   `json:"partNumber,omitempty"`
}

// Result is the typed extraction output. Raw holds the verbatim model response
// for the audit snapshot.
type Result struct {
	IsOrder     bool     `json:"isOrder"`
	Supplier    string   `json:"supplier,omitempty"`
	OrderDate   string   `json:"orderDate,omitempty"`
	TotalAmount *float64 `json:"totalAmount,omitempty"`
	Items       []Item   `json:"items"`
	Confidence  float64  `json:"confidence"`

	Raw json.RawMessage `json:"-"`
}

// NormalizeItems applies the line-item rules: items without a name are
// dropped, quantity defaults to 1 when absent or non-positive, unit defaults
// to "ea", unit price and part number pass through.
func NormalizeItems(items []Item) []Item {
	normalized := make([]Item, 0, len(items))
	for _, item := range items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		out := Item{
			Name:       name,
			Quantity:   item.Quantity,
			Unit:       strings.TrimSpace(item.Unit),
			UnitPrice:  item.UnitPrice,
			PartNumber: strings.TrimSpace(item.PartNumber),
		}
		if out.Quantity <= 0 {
			out.Quantity = 1
		}
		if out.Unit == "" {
			out.Unit = "ea"
		}
		normalized = append(normalized, out)
	}
	return normalized
}

// coerce decodes a raw model response into a Result. Output that cannot be
// decoded becomes a known "no items, zero confidence" shape instead of
// propagating loosely-typed data; the guardrails then quarantine it.
func coerce(raw []byte) Result {
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		res = Result{IsOrder: true, Confidence: 0}
	}
	res.Raw = json.RawMessage(raw)
	return res
}
