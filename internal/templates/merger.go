package templates

import (
	"fmt"

	"polpipe/internal/clock"
	"polpipe/internal/model"
)

const receiptLeadDays = 30

// Merger produces submittable POL records from a template plus one order
// line. Merging is deterministic for a fixed clock: identical inputs yield
// identical records.
type Merger struct {
	store *Store
	clock clock.Clock
}

func NewMerger(store *Store, clk clock.Clock) *Merger {
	return &Merger{store: store, clock: clk}
}

// Merge overlays order-line fields and the resolved identifier onto the
// named template's defaults. Returns ErrTemplateNotFound for an unknown
// template and *ValidationError when the result is missing mandatory fields.
func (m *Merger) Merge(templateName string, line model.OrderLine, id model.ResolvedIdentifier) (model.POLRecord, error) {
	tmpl, err := m.store.Get(templateName)
	if err != nil {
		return model.POLRecord{}, err
	}

	fields, _ := deepCopy(tmpl.Fields).(map[string]any)
	if fields == nil {
		fields = make(map[string]any)
	}

	price := fmt.Sprintf("%.2f", line.UnitPrice)
	amount := map[string]any{
		"sum":      price,
		"currency": map[string]any{"value": line.Currency},
	}
	fields["price"] = amount
	if dist, ok := fields["fund_distribution"].([]any); ok && len(dist) > 0 {
		if first, ok := dist[0].(map[string]any); ok {
			first["amount"] = deepCopy(amount)
		}
	}

	meta, ok := fields["resource_metadata"].(map[string]any)
	if !ok {
		meta = make(map[string]any)
		fields["resource_metadata"] = meta
	}
	meta["title"] = line.Title
	if line.Author != "" {
		meta["author"] = line.Author
	}
	if id.CatalogID != "" {
		meta["system_control_number"] = []any{id.CatalogID}
	}

	fields["vendor_reference_number"] = line.VendorOrderRef
	if locs, ok := fields["location"].([]any); ok && len(locs) > 0 {
		if first, ok := locs[0].(map[string]any); ok {
			first["quantity"] = line.Quantity
		}
	}

	fields["expected_receipt_date"] = m.clock.Now().UTC().AddDate(0, 0, receiptLeadDays).Format("2006-01-02")

	if err := validate(fields); err != nil {
		return model.POLRecord{}, err
	}

	return model.POLRecord{
		Key:    model.POLKey{VendorOrderRef: line.VendorOrderRef, LineIndex: line.LineIndex},
		Fields: fields,
	}, nil
}

func deepCopy(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}
