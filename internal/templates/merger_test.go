package templates

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"polpipe/internal/clock"
	"polpipe/internal/model"
)

func bookTemplate() Template {
	return Template{
		Name: "book",
		Fields: map[string]any{
			"owner":              map[string]any{"value": "MAIN"},
			"vendor":             map[string]any{"value": "hacky-m"},
			"vendor_account":     "hacky-m",
			"acquisition_method": map[string]any{"value": "VENDOR_SYSTEM"},
			"material_type":      map[string]any{"value": "BOOK"},
			"fund_distribution": []any{
				map[string]any{
					"fund_code": map[string]any{"value": "monographs"},
					"amount":    map[string]any{"sum": "0.00", "currency": map[string]any{"value": "USD"}},
				},
			},
			"location": []any{
				map[string]any{"library": map[string]any{"value": "MAIN"}, "quantity": 1},
			},
			"resource_metadata": map[string]any{"title": ""},
		},
	}
}

func testLine() model.OrderLine {
	return model.OrderLine{
		VendorID:       model.VendorAmazon,
		Title:          "Dune",
		Author:         "Frank Herbert",
		UnitPrice:      24.99,
		Currency:       "USD",
		VendorOrderRef: "114-0001",
		Quantity:       2,
		LineIndex:      0,
	}
}

func TestMerger_Merge(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	merger := NewMerger(NewStore(bookTemplate()), clock.NewFixed(now))

	t.Run("overlays order line and identifier onto defaults", func(t *testing.T) {
		id := model.ResolvedIdentifier{CatalogID: "ocn123", Confidence: 0.95, MatchMethod: model.MatchTitle}

		record, err := merger.Merge("book", testLine(), id)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if record.Key.VendorOrderRef != "114-0001" || record.Key.LineIndex != 0 {
			t.Fatalf("unexpected key: %+v", record.Key)
		}

		price := record.Fields["price"].(map[string]any)
		if price["sum"] != "24.99" {
			t.Fatalf("expected two-decimal price, got %v", price["sum"])
		}

		dist := record.Fields["fund_distribution"].([]any)[0].(map[string]any)
		amount := dist["amount"].(map[string]any)
		if amount["sum"] != "24.99" {
			t.Fatalf("expected fund amount mirrored from price, got %v", amount["sum"])
		}

		meta := record.Fields["resource_metadata"].(map[string]any)
		if meta["title"] != "Dune" || meta["author"] != "Frank Herbert" {
			t.Fatalf("unexpected metadata: %v", meta)
		}
		scn := meta["system_control_number"].([]any)
		if len(scn) != 1 || scn[0] != "ocn123" {
			t.Fatalf("expected catalog id in system_control_number, got %v", scn)
		}

		loc := record.Fields["location"].([]any)[0].(map[string]any)
		if loc["quantity"] != 2 {
			t.Fatalf("expected quantity 2, got %v", loc["quantity"])
		}

		if record.Fields["expected_receipt_date"] != "2025-03-31" {
			t.Fatalf("expected receipt date 30 days out, got %v", record.Fields["expected_receipt_date"])
		}
	})

	t.Run("null identifier still merges", func(t *testing.T) {
		id := model.ResolvedIdentifier{MatchMethod: model.MatchLookupFailed}

		record, err := merger.Merge("book", testLine(), id)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		meta := record.Fields["resource_metadata"].(map[string]any)
		if _, ok := meta["system_control_number"]; ok {
			t.Fatalf("expected no system_control_number for unresolved line")
		}
	})

	t.Run("merge is deterministic", func(t *testing.T) {
		id := model.ResolvedIdentifier{CatalogID: "ocn123"}

		first, err := merger.Merge("book", testLine(), id)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		second, err := merger.Merge("book", testLine(), id)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		a, _ := json.Marshal(first.Fields)
		b, _ := json.Marshal(second.Fields)
		if !bytes.Equal(a, b) {
			t.Fatalf("expected byte-identical records:\n%s\n%s", a, b)
		}
	})

	t.Run("merge does not mutate the template", func(t *testing.T) {
		id := model.ResolvedIdentifier{CatalogID: "ocn123"}
		if _, err := merger.Merge("book", testLine(), id); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		tmpl, err := merger.store.Get("book")
		if err != nil {
			t.Fatalf("expected template, got %v", err)
		}
		meta := tmpl.Fields["resource_metadata"].(map[string]any)
		if meta["title"] != "" {
			t.Fatalf("template defaults were mutated: %v", meta)
		}
	})

	t.Run("unknown template", func(t *testing.T) {
		_, err := merger.Merge("microfilm", testLine(), model.ResolvedIdentifier{})
		if !errors.Is(err, ErrTemplateNotFound) {
			t.Fatalf("expected ErrTemplateNotFound, got %v", err)
		}
	})

	t.Run("missing mandatory fields aggregate into one error", func(t *testing.T) {
		sparse := Template{Name: "sparse", Fields: map[string]any{
			"vendor": map[string]any{"value": "hacky-m"},
		}}
		m := NewMerger(NewStore(sparse), clock.NewFixed(now))

		_, err := m.Merge("sparse", testLine(), model.ResolvedIdentifier{})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if len(vErr.Issues) < 3 {
			t.Fatalf("expected multiple issues reported, got %v", vErr.Issues)
		}
	})
}
