package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const documentTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>{{.Title}} {{.Number}}</title>
  <style>
    * { box-sizing: border-box; }
    body {
      margin: 0;
      padding: 32px;
      font-family: "Helvetica Neue", Arial, sans-serif;
      color: #111827;
      background: #ffffff;
    }
    .document { max-width: 760px; margin: 0 auto; }
    .header {
      display: flex;
      justify-content: space-between;
      border-bottom: 2px solid #0f766e;
      padding-bottom: 16px;
      margin-bottom: 24px;
    }
    .meta { text-align: right; font-size: 14px; }
    .label {
      color: #6b7280;
      text-transform: uppercase;
      letter-spacing: 0.04em;
      font-size: 11px;
    }
    table { width: 100%; border-collapse: collapse; font-size: 14px; }
    th, td {
      padding: 10px;
      border-bottom: 1px solid #e5e7eb;
      text-align: left;
    }
    td.amount { text-align: right; }
    .total-row td { font-weight: 600; border-bottom: none; }
    .footer {
      margin-top: 24px;
      border-top: 1px solid #e5e7eb;
      padding-top: 16px;
      font-size: 12px;
      color: #6b7280;
    }
  </style>
</head>
<body>
  <div class="document">
    <div class="header">
      <div>
        <div><strong>Praxis</strong></div>
        <div>{{.ClientName}}</div>
        <div>{{.ClientEmail}}</div>
      </div>
      <div class="meta">
        <div class="label">{{.Title}}</div>
        <div><strong>{{.Number}}</strong></div>
        <div>Status: {{.Status}}</div>
        <div>Issued: {{formatDate .IssuedAt}}</div>
      </div>
    </div>

    {{if .PeriodStart}}
    <div>
      <div class="label">Billing Period</div>
      <div>{{formatDate .PeriodStart}} - {{formatDate .PeriodEnd}}</div>
    </div>
    {{end}}
    {{if .Rectifies}}
    <div>
      <div class="label">Rectifies</div>
      <div>{{.Rectifies}}</div>
    </div>
    {{end}}

    <table>
      <thead>
        <tr><th>Concept</th><th class="amount">Amount</th></tr>
      </thead>
      <tbody>
        <tr>
          <td>Professional services</td>
          <td class="amount">{{formatMoney .Subtotal .Currency}}</td>
        </tr>
        {{if not .TaxAmount.IsZero}}
        <tr>
          <td>Tax</td>
          <td class="amount">{{formatMoney .TaxAmount .Currency}}</td>
        </tr>
        {{end}}
        <tr class="total-row">
          <td>Total</td>
          <td class="amount">{{formatMoney .Total .Currency}}</td>
        </tr>
      </tbody>
    </table>

    <div class="footer">Generated by Praxis.</div>
  </div>
</body>
</html>
`

type HTMLRenderer struct {
	tpl *template.Template
}

func NewRenderer() Renderer {
	funcs := template.FuncMap{
		"formatMoney": formatMoney,
		"formatDate":  formatDate,
	}
	return &HTMLRenderer{
		tpl: template.Must(template.New("document").Funcs(funcs).Parse(documentTemplate)),
	}
}

func (r *HTMLRenderer) RenderHTML(input Input) (string, error) {
	if input.Title == "" {
		input.Title = "Invoice"
	}
	if input.Number == "" {
		input.Number = "DRAFT"
	}

	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, input); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatMoney(amount decimal.Decimal, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "EUR"
	}
	return fmt.Sprintf("%s %s", currency, amount.StringFixed(2))
}

func formatDate(value *time.Time) string {
	if value == nil || value.IsZero() {
		return "-"
	}
	return value.UTC().Format("2006-01-02")
}
