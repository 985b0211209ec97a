package docgen

import (
	"strings"
	"testing"
	"time"

	"github.com/fieldmate/fieldmate/pkg/fieldmate/store"
)

func fullInvoice() *store.Invoice {
	return &store.Invoice{
		ID:          "a1b2c3d4e5f6",
		ClientName:  "Henderson Build",
		Amount:      1250.50,
		Status:      store.InvoicePending,
		IssueDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:     time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Description: "Bathroom repipe, labour and materials",
	}
}

func TestRenderInvoice(t *testing.T) {
	acct := &store.Account{Name: "Bob's Plumbing", Email: "bob@example.com"}

	html, err := RenderInvoice(fullInvoice(), acct)
	if err != nil {
		t.Fatalf("RenderInvoice: %v", err)
	}
	doc := string(html)

	for _, want := range []string{
		"Bob&#39;s Plumbing",
		"Henderson Build",
		"INV-a1b2c3d4",
		"$1250.50",
		"15 March 2026",
		"Bathroom repipe",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q", want)
		}
	}
	if strings.Contains(doc, "Missing data") {
		t.Error("complete invoice should not carry a missing-data notice")
	}
}

func TestRenderInvoiceMissingFields(t *testing.T) {
	inv := &store.Invoice{ID: "short", Amount: 100, Status: store.InvoicePending}

	html, err := RenderInvoice(inv, nil)
	if err != nil {
		t.Fatalf("RenderInvoice: %v", err)
	}
	doc := string(html)

	if !strings.Contains(doc, "Missing data") {
		t.Fatal("expected missing-data notice")
	}
	for _, want := range []string{"business name", "client name", "issue date", "due date", "work description"} {
		if !strings.Contains(doc, want) {
			t.Errorf("notice missing %q", want)
		}
	}
}

func TestRenderInvoiceLineItems(t *testing.T) {
	inv := fullInvoice()
	inv.Description = ""
	inv.LineItems = []store.LineItem{
		{Description: "Copper pipe", Quantity: 12, UnitAmount: 8.50},
		{Description: "Labour", Quantity: 4, UnitAmount: 95},
	}

	html, err := RenderInvoice(inv, nil)
	if err != nil {
		t.Fatalf("RenderInvoice: %v", err)
	}
	doc := string(html)

	if !strings.Contains(doc, "Copper pipe") || !strings.Contains(doc, "$102.00") {
		t.Error("line item row not rendered with total")
	}
	if strings.Contains(doc, "work description") {
		t.Error("line items should satisfy the work description requirement")
	}
}

func TestRenderInvoiceNil(t *testing.T) {
	if _, err := RenderInvoice(nil, nil); err == nil {
		t.Error("expected error for nil invoice")
	}
}

func TestComplete(t *testing.T) {
	if !Complete(fullInvoice()) {
		t.Error("full invoice should be complete")
	}

	inv := fullInvoice()
	inv.DueDate = time.Time{}
	if Complete(inv) {
		t.Error("invoice without due date should not be complete")
	}

	inv = fullInvoice()
	inv.Description = ""
	if Complete(inv) {
		t.Error("invoice without description or line items should not be complete")
	}
	inv.LineItems = []store.LineItem{{Description: "Labour", Quantity: 1, UnitAmount: 100}}
	if !Complete(inv) {
		t.Error("line items should satisfy the description requirement")
	}

	if Complete(nil) {
		t.Error("nil invoice is never complete")
	}
}
