package email

import (
	"bytes"
	"html/template"

	"github.com/shopspring/decimal"
)

// OrderItem represents an item in an order for email purposes
type OrderItem struct {
	ProductID string
	Name      string
	Quantity  int
	Price     decimal.Decimal
}

func (i OrderItem) Label() string {
	if i.Name == "" {
		return i.ProductID
	}
	return i.Name
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

var funcs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
}

const layout = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: #4f46e5; padding: 24px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 22px;">{{.Title}}</h1>
	</div>
	<div style="background: #fff; padding: 24px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<p style="margin-top: 0;">Order <strong style="font-family: monospace;">{{.OrderID}}</strong></p>
		{{template "content" .}}
		<hr style="border: none; border-top: 1px solid #eee; margin: 24px 0;">
		<p style="font-size: 12px; color: #999; margin-bottom: 0;">This message was sent automatically.</p>
	</div>
</body>
</html>`

const itemsTable = `{{define "items"}}
		<table style="width: 100%; border-collapse: collapse; margin: 16px 0;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 10px; text-align: left;">Item</th>
					<th style="padding: 10px; text-align: center;">Qty</th>
					<th style="padding: 10px; text-align: right;">Price</th>
					<th style="padding: 10px; text-align: right;">Subtotal</th>
				</tr>
			</thead>
			<tbody>
			{{range .Items}}
				<tr>
					<td style="padding: 10px; border-bottom: 1px solid #eee;">{{.Label}}</td>
					<td style="padding: 10px; border-bottom: 1px solid #eee; text-align: center;">{{.Quantity}}</td>
					<td style="padding: 10px; border-bottom: 1px solid #eee; text-align: right;">{{money .Price}}</td>
					<td style="padding: 10px; border-bottom: 1px solid #eee; text-align: right;">{{money .Subtotal}}</td>
				</tr>
			{{end}}
			</tbody>
		</table>
{{end}}`

func mustParse(content string) *template.Template {
	return template.Must(template.New("layout").Funcs(funcs).Parse(layout + itemsTable + content))
}

var (
	confirmationTmpl = mustParse(`{{define "content"}}
		<p>Thank you for your order. Payment method: {{.PaymentMethod}}.</p>
		{{template "items" .}}
		<p style="text-align: right; font-size: 20px; font-weight: bold;">Total {{money .Total}}</p>
{{end}}`)

	cancellationTmpl = mustParse(`{{define "content"}}
		<p>Your order has been cancelled. The following items were released:</p>
		{{template "items" .}}
{{end}}`)

	statusTmpl = mustParse(`{{define "content"}}
		<p>Status changed from <strong>{{.From}}</strong> to <strong>{{.To}}</strong>.</p>
{{end}}`)
)

type confirmationData struct {
	Title         string
	OrderID       string
	PaymentMethod string
	Items         []OrderItem
	Total         decimal.Decimal
}

type cancellationData struct {
	Title   string
	OrderID string
	Items   []OrderItem
}

type statusData struct {
	Title   string
	OrderID string
	From    string
	To      string
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildOrderConfirmationBody builds the HTML body for order confirmation email
func BuildOrderConfirmationBody(orderID, paymentMethod string, total decimal.Decimal, items []OrderItem) (string, error) {
	return render(confirmationTmpl, confirmationData{
		Title:         "Thank you for your order",
		OrderID:       orderID,
		PaymentMethod: paymentMethod,
		Items:         items,
		Total:         total,
	})
}

func BuildCancellationBody(orderID string, items []OrderItem) (string, error) {
	return render(cancellationTmpl, cancellationData{
		Title:   "Your order was cancelled",
		OrderID: orderID,
		Items:   items,
	})
}

func BuildStatusUpdateBody(orderID, from, to string) (string, error) {
	return render(statusTmpl, statusData{
		Title:   "Your order was updated",
		OrderID: orderID,
		From:    from,
		To:      to,
	})
}
