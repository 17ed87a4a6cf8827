package payment

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/usecase"

	razorpay "github.com/razorpay/razorpay-go"
)

var ErrGatewayDisabled = errors.New("payment gateway is not configured")

// razorpay-goのクライアントから使う分だけ
type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type paymentAPI interface {
	Refund(paymentID string, amount int, data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type RazorpayGateway struct {
	orders   orderAPI
	payments paymentAPI
}

func NewRazorpayGateway(keyID, keySecret string) *RazorpayGateway {
	client := razorpay.NewClient(keyID, keySecret)
	return &RazorpayGateway{orders: client.Order, payments: client.Payment}
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, req usecase.GatewayOrderRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	body, err := g.orders.Create(map[string]interface{}{
		"amount":   req.AmountMinor,
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"notes":    notesMap(req.Notes),
	}, nil)
	if err != nil {
		return "", fmt.Errorf("razorpay create order: %w", err)
	}
	id, _ := body["id"].(string)
	if id == "" {
		return "", errors.New("razorpay create order: response has no id")
	}
	return id, nil
}

// 全額返金（amountはpaise）
func (g *RazorpayGateway) Refund(ctx context.Context, paymentID string, amountMinor int64, notes map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	body, err := g.payments.Refund(paymentID, int(amountMinor), map[string]interface{}{
		"notes": notesMap(notes),
	}, nil)
	if err != nil {
		return "", fmt.Errorf("razorpay refund %s: %w", paymentID, err)
	}
	id, _ := body["id"].(string)
	if id == "" {
		return "", errors.New("razorpay refund: response has no id")
	}
	return id, nil
}

func notesMap(n map[string]string) map[string]interface{} {
	m := make(map[string]interface{}, len(n))
	for k, v := range n {
		m[k] = v
	}
	return m
}

// キー未設定の環境用。オンライン決済は502になり、代引きはそのまま使える
type DisabledGateway struct{}

func (DisabledGateway) CreateOrder(context.Context, usecase.GatewayOrderRequest) (string, error) {
	return "", ErrGatewayDisabled
}

func (DisabledGateway) Refund(context.Context, string, int64, map[string]string) (string, error) {
	return "", ErrGatewayDisabled
}
