package mail

import (
	"bytes"
	"fmt"
	"html/template"

	"storefront/internal/domain/model"
)

var funcs = template.FuncMap{
	"money": func(d interface{ StringFixed(int32) string }) string { return d.StringFixed(2) },
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
}

var (
	confirmationTmpl = template.Must(template.New("confirmation").Funcs(funcs).Parse(confirmationHTML))
	shippedTmpl      = template.Must(template.New("shipped").Funcs(funcs).Parse(shippedHTML))
)

func RenderOrderConfirmation(o model.OrderWithItems) (string, error) {
	var buf bytes.Buffer
	if err := confirmationTmpl.Execute(&buf, o); err != nil {
		return "", fmt.Errorf("render order confirmation: %w", err)
	}
	return buf.String(), nil
}

func RenderOrderShipped(o model.Order) (string, error) {
	var buf bytes.Buffer
	if err := shippedTmpl.Execute(&buf, o); err != nil {
		return "", fmt.Errorf("render order shipped: %w", err)
	}
	return buf.String(), nil
}

const confirmationHTML = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Order {{.OrderNumber}}</title></head>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Thank you for your order, {{.CustomerName}}</h2>
  <p>Order number: <strong>{{.OrderNumber}}</strong></p>
  <table cellpadding="6" style="border-collapse: collapse;">
    <tr><th align="left">Item</th><th>Qty</th><th align="right">Price</th><th align="right">Total</th></tr>
    {{range .Items}}
    <tr>
      <td>{{.ProductName}}{{if .VariantName}} ({{.VariantName}}){{end}}</td>
      <td align="center">{{.Quantity}}</td>
      <td align="right">{{money .DiscountedPrice}}</td>
      <td align="right">{{money .LineTotal}}</td>
    </tr>
    {{end}}
  </table>
  <p>Subtotal: {{money .Subtotal}} {{.Currency}}<br>
  Shipping: {{money .ShippingCost}} {{.Currency}}<br>
  <strong>Total: {{money .TotalAmount}} {{.Currency}}</strong></p>
  <p>Payment: {{.PaymentMethod}}</p>
  <p>Ship to:<br>{{.ShippingLine1}}{{if .ShippingLine2}}, {{.ShippingLine2}}{{end}}<br>
  {{.ShippingCity}}, {{.ShippingState}} {{.ShippingPostalCode}}<br>{{.ShippingCountry}}</p>
</body>
</html>`

const shippedHTML = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Order {{.OrderNumber}} shipped</title></head>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Your order {{.OrderNumber}} is on its way</h2>
  {{if .CourierName}}<p>Courier: {{deref .CourierName}}</p>{{end}}
  <p>Tracking ID: <strong>{{deref .TrackingID}}</strong></p>
  {{if .TrackingURL}}<p><a href="{{deref .TrackingURL}}">Track your package</a></p>{{end}}
</body>
</html>`
