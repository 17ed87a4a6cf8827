package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID                 int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	CategoryID         *int64          `gorm:"index" json:"category_id"`
	Name               string          `gorm:"type:varchar(255);not null" json:"name"`
	Slug               string          `gorm:"type:varchar(255);not null;uniqueIndex" json:"slug"`
	Description        string          `gorm:"type:text" json:"description"`
	ImageURL           string          `gorm:"type:varchar(1024)" json:"image_url"`
	Price              decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	DiscountPercentage int             `gorm:"not null;default:0" json:"discount_percentage"`
	StockQuantity      int64           `gorm:"not null;default:0" json:"stock_quantity"`
	IsActive           bool            `gorm:"not null;default:false" json:"is_active"`
	CreatedAt          time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt          gorm.DeletedAt  `gorm:"index" json:"-"`
}

// 割引後の単価
func (p Product) DiscountedPrice() decimal.Decimal {
	return DiscountedPrice(p.Price, p.DiscountPercentage)
}
