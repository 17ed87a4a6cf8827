package payment

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHMACVerifier(t *testing.T) {
	v := NewHMACVerifier("rzp_secret")
	const want = "5563f19ec4d93d6c7d557cd0c9b3d5ad957214e81bfae70bfd8964b91313abbc"

	assert.Equal(t, want, v.Sign("order_9A33XWu170gUtm", "pay_29QQoUBi66xm2f"))
	assert.True(t, v.Verify("order_9A33XWu170gUtm", "pay_29QQoUBi66xm2f", want))

	assert.False(t, v.Verify("order_9A33XWu170gUtm", "pay_other", want))
	assert.False(t, v.Verify("order_9A33XWu170gUtm", "pay_29QQoUBi66xm2f", "zz-not-hex"))
	assert.False(t, v.Verify("order_9A33XWu170gUtm", "pay_29QQoUBi66xm2f", ""))

	// シークレット未設定なら常にNG
	assert.False(t, NewHMACVerifier("").Verify("order_9A33XWu170gUtm", "pay_29QQoUBi66xm2f", want))
}

type orderAPIStub struct {
	body map[string]interface{}
	err  error
	got  map[string]interface{}
}

func (s *orderAPIStub) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	s.got = data
	return s.body, s.err
}

type paymentAPIStub struct {
	body      map[string]interface{}
	err       error
	paymentID string
	amount    int
}

func (s *paymentAPIStub) Refund(paymentID string, amount int, _ map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	s.paymentID = paymentID
	s.amount = amount
	return s.body, s.err
}

func TestRazorpayGateway_CreateOrder(t *testing.T) {
	orders := &orderAPIStub{body: map[string]interface{}{"id": "order_RZP1", "status": "created"}}
	g := &RazorpayGateway{orders: orders}

	id, err := g.CreateOrder(context.Background(), usecase.GatewayOrderRequest{
		AmountMinor: 20900,
		Currency:    "INR",
		Receipt:     "ORD-20260314-000001",
		Notes:       map[string]string{"order_number": "ORD-20260314-000001"},
	})
	require.NoError(t, err)
	assert.Equal(t, "order_RZP1", id)
	assert.Equal(t, int64(20900), orders.got["amount"])
	assert.Equal(t, "INR", orders.got["currency"])
	assert.Equal(t, "ORD-20260314-000001", orders.got["receipt"])
	assert.Equal(t, map[string]interface{}{"order_number": "ORD-20260314-000001"}, orders.got["notes"])
}

func TestRazorpayGateway_CreateOrder_Errors(t *testing.T) {
	req := usecase.GatewayOrderRequest{AmountMinor: 100, Currency: "INR", Receipt: "r"}

	g := &RazorpayGateway{orders: &orderAPIStub{err: errors.New("BAD_REQUEST_ERROR")}}
	_, err := g.CreateOrder(context.Background(), req)
	assert.ErrorContains(t, err, "razorpay create order")

	g = &RazorpayGateway{orders: &orderAPIStub{body: map[string]interface{}{}}}
	_, err = g.CreateOrder(context.Background(), req)
	assert.ErrorContains(t, err, "response has no id")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stub := &orderAPIStub{body: map[string]interface{}{"id": "order_RZP1"}}
	g = &RazorpayGateway{orders: stub}
	_, err = g.CreateOrder(ctx, req)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, stub.got)
}

func TestRazorpayGateway_Refund(t *testing.T) {
	payments := &paymentAPIStub{body: map[string]interface{}{"id": "rfnd_1"}}
	g := &RazorpayGateway{payments: payments}

	id, err := g.Refund(context.Background(), "pay_1", 20900, map[string]string{"order_number": "ORD-1"})
	require.NoError(t, err)
	assert.Equal(t, "rfnd_1", id)
	assert.Equal(t, "pay_1", payments.paymentID)
	assert.Equal(t, 20900, payments.amount)

	g = &RazorpayGateway{payments: &paymentAPIStub{err: errors.New("refund window closed")}}
	_, err = g.Refund(context.Background(), "pay_1", 20900, nil)
	assert.ErrorContains(t, err, "razorpay refund pay_1")
}

func TestDisabledGateway(t *testing.T) {
	var g usecase.PaymentGateway = DisabledGateway{}

	_, err := g.CreateOrder(context.Background(), usecase.GatewayOrderRequest{})
	assert.ErrorIs(t, err, ErrGatewayDisabled)

	_, err = g.Refund(context.Background(), "pay_1", 100, nil)
	assert.ErrorIs(t, err, ErrGatewayDisabled)
}
