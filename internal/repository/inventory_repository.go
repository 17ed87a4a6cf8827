package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 在庫の持ち主。VariantIDがあればバリアントの在庫、なければ商品の在庫。
type StockTarget struct {
	ProductID int64
	VariantID *int64
}

type InventoryRepository interface {
	// 在庫の現在値を設定
	SetStock(ctx context.Context, target StockTarget, newStock int64) error

	// 在庫が足りるときだけ減算（UPDATE ... WHERE stock >= qty）
	DecreaseStockIfEnough(ctx context.Context, target StockTarget, qty int64) (bool, error)

	// 在庫戻し（返金など）
	IncreaseStock(ctx context.Context, target StockTarget, qty int64) error

	// 調整履歴作成
	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
}
