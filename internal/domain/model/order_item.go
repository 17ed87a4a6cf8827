package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 注文明細。商品の値はコピーして持つ（後から商品を編集・削除しても変わらない）。
type OrderItem struct {
	ID                 int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID            int64           `gorm:"not null;index" json:"order_id"`
	ProductID          int64           `gorm:"not null;index" json:"product_id"`
	VariantID          *int64          `gorm:"index" json:"variant_id,omitempty"`
	ProductName        string          `gorm:"type:varchar(255);not null" json:"product_name"`
	VariantName        string          `gorm:"type:varchar(255)" json:"variant_name,omitempty"`
	ProductSlug        string          `gorm:"type:varchar(255);not null" json:"product_slug"`
	ProductImage       string          `gorm:"type:varchar(1024)" json:"product_image"`
	UnitPrice          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	DiscountPercentage int             `gorm:"not null" json:"discount_percentage"`
	DiscountedPrice    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"discounted_price"`
	Quantity           int64           `gorm:"not null" json:"quantity"`
	LineTotal          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"line_total"`
	CreatedAt          time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}
