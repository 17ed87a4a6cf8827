package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 商品のSKU（重さ違いなど）。1商品に複数。
// is_defaultは商品ごとに常に1件だけ。
type Variant struct {
	ID             int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID      int64            `gorm:"not null;index" json:"product_id"`
	Name           string           `gorm:"type:varchar(255);not null" json:"name"`
	SKU            string           `gorm:"column:sku;type:varchar(100)" json:"sku"`
	Price          decimal.Decimal  `gorm:"type:numeric(12,2);not null" json:"price"`
	CompareAtPrice *decimal.Decimal `gorm:"type:numeric(12,2)" json:"compare_at_price"`
	StockQuantity  int64            `gorm:"not null;default:0" json:"stock_quantity"`
	IsDefault      bool             `gorm:"not null;default:false" json:"is_default"`
	IsActive       bool             `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time        `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
