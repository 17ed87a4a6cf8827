package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page          int
	Limit         int
	Status        string
	PaymentStatus string
	UserID        *int64
	Q             string // 注文番号・メール・氏名
	From          *time.Time
	To            *time.Time
}

// nilのフィールドは更新しない
type OrderPatch struct {
	Status            *model.OrderStatus
	PaymentStatus     *model.PaymentStatus
	RazorpayPaymentID *string
	CourierName       *string
	TrackingID        *string
	TrackingURL       *string
	ShippedAt         *time.Time
	AdminNotes        *string
}

func (p OrderPatch) Empty() bool {
	return p.Status == nil && p.PaymentStatus == nil && p.RazorpayPaymentID == nil &&
		p.CourierName == nil && p.TrackingID == nil && p.TrackingURL == nil &&
		p.ShippedAt == nil && p.AdminNotes == nil
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (model.Order, error)
	FindByRazorpayOrderID(ctx context.Context, razorpayOrderID string) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)
	Create(ctx context.Context, order model.Order) (int64, error)

	Update(ctx context.Context, orderID int64, patch OrderPatch) error
	// payment_statusがfromのどれかのときだけ更新する（更新できたらtrue）
	UpdateIfPaymentStatus(ctx context.Context, orderID int64, from []model.PaymentStatus, patch OrderPatch) (bool, error)

	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
}
