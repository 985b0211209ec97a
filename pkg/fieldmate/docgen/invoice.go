// Package docgen renders invoice documents for email attachment and chat
// delivery. Missing optional fields never silently truncate the document;
// they are listed in an explicit missing-data notice instead.
package docgen

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/fieldmate/fieldmate/pkg/fieldmate/store"
)

// DocumentMIME is the MIME type of rendered invoice documents.
const DocumentMIME = "text/html"

type invoiceView struct {
	BusinessName  string
	BusinessEmail string
	ClientName    string
	InvoiceRef    string
	Amount        string
	Status        string
	IssueDate     string
	DueDate       string
	Description   string
	LineItems     []lineItemView
	Missing       []string
}

type lineItemView struct {
	Description string
	Quantity    string
	UnitAmount  string
	Total       string
}

var invoiceTemplate = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Invoice {{.InvoiceRef}}</title></head>
<body style="font-family: sans-serif; max-width: 640px; margin: 0 auto;">
<h1>Invoice</h1>
<p><strong>{{.BusinessName}}</strong>{{if .BusinessEmail}}<br>{{.BusinessEmail}}{{end}}</p>
<p>Billed to: <strong>{{.ClientName}}</strong></p>
<table style="width: 100%; border-collapse: collapse;">
<tr><td>Reference</td><td>{{.InvoiceRef}}</td></tr>
<tr><td>Status</td><td>{{.Status}}</td></tr>
<tr><td>Issued</td><td>{{.IssueDate}}</td></tr>
<tr><td>Due</td><td>{{.DueDate}}</td></tr>
</table>
{{if .Description}}<p>{{.Description}}</p>{{end}}
{{if .LineItems}}
<table style="width: 100%; border-collapse: collapse;" border="1" cellpadding="6">
<tr><th>Description</th><th>Qty</th><th>Unit</th><th>Total</th></tr>
{{range .LineItems}}<tr><td>{{.Description}}</td><td>{{.Quantity}}</td><td>{{.UnitAmount}}</td><td>{{.Total}}</td></tr>
{{end}}</table>
{{end}}
<h2>Total due: {{.Amount}}</h2>
{{if .Missing}}
<p style="color: #b00; border: 1px solid #b00; padding: 8px;">
Missing data: this document was generated without {{range $i, $f := .Missing}}{{if $i}}, {{end}}{{$f}}{{end}}.
</p>
{{end}}
</body>
</html>
`))

// RenderInvoice renders an invoice document as bytes. Absent optional fields
// are collected into the document's missing-data notice.
func RenderInvoice(inv *store.Invoice, acct *store.Account) ([]byte, error) {
	if inv == nil {
		return nil, fmt.Errorf("nil invoice")
	}

	view := invoiceView{
		ClientName:  inv.ClientName,
		InvoiceRef:  shortRef(inv.ID),
		Amount:      fmt.Sprintf("$%.2f", inv.Amount),
		Status:      inv.Status,
		Description: inv.Description,
	}
	if acct != nil {
		view.BusinessName = acct.Name
		view.BusinessEmail = acct.Email
	}

	if view.BusinessName == "" {
		view.BusinessName = "FieldMate user"
		view.Missing = append(view.Missing, "business name")
	}
	if inv.ClientName == "" {
		view.ClientName = "(unnamed client)"
		view.Missing = append(view.Missing, "client name")
	}
	if inv.IssueDate.IsZero() {
		view.IssueDate = "-"
		view.Missing = append(view.Missing, "issue date")
	} else {
		view.IssueDate = inv.IssueDate.Format("2 January 2006")
	}
	if inv.DueDate.IsZero() {
		view.DueDate = "-"
		view.Missing = append(view.Missing, "due date")
	} else {
		view.DueDate = inv.DueDate.Format("2 January 2006")
	}
	if inv.Description == "" && len(inv.LineItems) == 0 {
		view.Missing = append(view.Missing, "work description")
	}

	for _, li := range inv.LineItems {
		view.LineItems = append(view.LineItems, lineItemView{
			Description: li.Description,
			Quantity:    fmt.Sprintf("%g", li.Quantity),
			UnitAmount:  fmt.Sprintf("$%.2f", li.UnitAmount),
			Total:       fmt.Sprintf("$%.2f", li.Quantity*li.UnitAmount),
		})
	}

	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render invoice: %w", err)
	}
	return buf.Bytes(), nil
}

// Complete reports whether the invoice has every billing field a client-ready
// document needs. Used to decide the attach-document side effect.
func Complete(inv *store.Invoice) bool {
	return inv != nil && inv.ClientName != "" && inv.Amount > 0 &&
		!inv.IssueDate.IsZero() && !inv.DueDate.IsZero() &&
		(inv.Description != "" || len(inv.LineItems) > 0)
}

func shortRef(id string) string {
	if len(id) >= 8 {
		return "INV-" + id[:8]
	}
	return "INV-" + id
}
