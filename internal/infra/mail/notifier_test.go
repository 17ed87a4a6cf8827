package mail

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"storefront/internal/domain/model"

	"github.com/jordan-wright/email"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOrder() model.OrderWithItems {
	return model.OrderWithItems{
		Order: model.Order{
			ID:                 1,
			OrderNumber:        "ORD-20260314-000001",
			CustomerName:       "Asha <Rao>",
			CustomerEmail:      "asha@example.com",
			ShippingLine1:      "12 MG Road",
			ShippingCity:       "Bengaluru",
			ShippingState:      "Karnataka",
			ShippingPostalCode: "560001",
			ShippingCountry:    "India",
			Subtotal:           decimal.NewFromInt(160),
			ShippingCost:       decimal.NewFromInt(49),
			TotalAmount:        decimal.NewFromInt(209),
			Currency:           "INR",
			PaymentMethod:      model.PaymentMethodCOD,
		},
		Items: []model.OrderItem{
			{ProductName: "Green Tea", VariantName: "250g", Quantity: 2, DiscountedPrice: decimal.NewFromInt(80), LineTotal: decimal.NewFromInt(160)},
		},
	}
}

func TestRenderOrderConfirmation(t *testing.T) {
	body, err := RenderOrderConfirmation(sampleOrder())
	require.NoError(t, err)

	assert.Contains(t, body, "ORD-20260314-000001")
	assert.Contains(t, body, "Green Tea (250g)")
	assert.Contains(t, body, "80.00")
	assert.Contains(t, body, "Total: 209.00 INR")
	assert.Contains(t, body, "Bengaluru, Karnataka 560001")
	// 名前はエスケープされる
	assert.Contains(t, body, "Asha &lt;Rao&gt;")
	assert.NotContains(t, body, "<Rao>")
}

func TestRenderOrderShipped(t *testing.T) {
	o := sampleOrder().Order
	courier, tracking, url := "BlueDart", "BD123", "https://track.example.com/BD123"
	o.CourierName, o.TrackingID, o.TrackingURL = &courier, &tracking, &url

	body, err := RenderOrderShipped(o)
	require.NoError(t, err)
	assert.Contains(t, body, "Courier: BlueDart")
	assert.Contains(t, body, "<strong>BD123</strong>")
	assert.Contains(t, body, `href="https://track.example.com/BD123"`)

	o.CourierName, o.TrackingURL = nil, nil
	body, err = RenderOrderShipped(o)
	require.NoError(t, err)
	assert.NotContains(t, body, "Courier:")
	assert.NotContains(t, body, "Track your package")
}

func TestSMTPNotifier_SendOrderConfirmation(t *testing.T) {
	var sent *email.Email
	n := &SMTPNotifier{
		from: "Storefront <orders@example.com>",
		send: func(e *email.Email) error { sent = e; return nil },
	}

	require.NoError(t, n.SendOrderConfirmation(context.Background(), sampleOrder()))
	require.NotNil(t, sent)
	assert.Equal(t, "Storefront <orders@example.com>", sent.From)
	assert.Equal(t, []string{"asha@example.com"}, sent.To)
	assert.Equal(t, "Order confirmed: ORD-20260314-000001", sent.Subject)
	assert.Contains(t, string(sent.HTML), "Green Tea")
}

func TestSMTPNotifier_SendOrderShipped_Error(t *testing.T) {
	n := &SMTPNotifier{
		from: "orders@example.com",
		send: func(*email.Email) error { return errors.New("connection refused") },
	}
	tracking := "BD123"
	o := sampleOrder().Order
	o.TrackingID = &tracking

	err := n.SendOrderShipped(context.Background(), o)
	assert.ErrorContains(t, err, "send mail to asha@example.com")
}

func TestSMTPNotifier_CanceledContext(t *testing.T) {
	called := false
	n := &SMTPNotifier{send: func(*email.Email) error { called = true; return nil }}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := n.SendOrderConfirmation(ctx, sampleOrder())
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(zerolog.New(&buf))

	require.NoError(t, n.SendOrderConfirmation(context.Background(), sampleOrder()))
	require.NoError(t, n.SendOrderShipped(context.Background(), sampleOrder().Order))
	assert.Contains(t, buf.String(), `"order_number":"ORD-20260314-000001"`)
	assert.Contains(t, buf.String(), "order shipped (smtp disabled)")
}
