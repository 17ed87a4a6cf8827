package usecase

import (
	"context"
	"time"
)

// 外部の決済ゲートウェイ（Razorpay）
type GatewayOrderRequest struct {
	AmountMinor int64 // paise
	Receipt     string
	Currency    string
	Notes       map[string]string
}

type PaymentGateway interface {
	// ゲートウェイ側の注文IDを返す
	CreateOrder(ctx context.Context, req GatewayOrderRequest) (string, error)
	// 返金IDを返す
	Refund(ctx context.Context, paymentID string, amountMinor int64, notes map[string]string) (string, error)
}

// 決済コールバックの署名検証
type SignatureVerifier interface {
	Verify(gatewayOrderID string, paymentID string, signature string) bool
}

// 入力DTOのタグ検証（validatorパッケージが実装）
type InputValidator interface {
	Validate(i interface{}) error
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// テストやmainで差し替えない場合の既定
func SystemClock() Clock { return systemClock{} }
