package model

import "time"

// カートの明細
// user_id / session_id はどちらか片方だけ入る。価格は保存しない（表示時に商品から再計算）。
type CartItem struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    *int64    `gorm:"index" json:"user_id,omitempty"`
	SessionID *string   `gorm:"type:varchar(128);index" json:"-"`
	ProductID int64     `gorm:"not null;index" json:"product_id"`
	VariantID *int64    `gorm:"index" json:"variant_id,omitempty"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 同じ(product, variant)の行か
func (ci CartItem) SameLine(productID int64, variantID *int64) bool {
	if ci.ProductID != productID {
		return false
	}
	if ci.VariantID == nil || variantID == nil {
		return ci.VariantID == nil && variantID == nil
	}
	return *ci.VariantID == *variantID
}
