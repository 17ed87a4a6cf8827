package repository

import (
	"context"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

// バリアント指定ならvariants、なければproductsの行
func (r *InventoryGormRepository) stockRow(ctx context.Context, t repo.StockTarget) *gorm.DB {
	if t.VariantID != nil {
		return r.db.WithContext(ctx).Model(&model.Variant{}).Where("id = ? AND product_id = ?", *t.VariantID, t.ProductID)
	}
	return r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", t.ProductID)
}

// 在庫の現在値を設定
func (r *InventoryGormRepository) SetStock(ctx context.Context, t repo.StockTarget, newStock int64) error {
	res := r.stockRow(ctx, t).Update("stock_quantity", newStock)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 在庫が足りるときだけ減らす
func (r *InventoryGormRepository) DecreaseStockIfEnough(ctx context.Context, t repo.StockTarget, qty int64) (bool, error) {
	res := r.stockRow(ctx, t).
		Where("stock_quantity >= ?", qty).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", qty))

	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	return true, nil
}

// 在庫戻し。論理削除済みの商品にも戻す
func (r *InventoryGormRepository) IncreaseStock(ctx context.Context, t repo.StockTarget, qty int64) error {
	res := r.stockRow(ctx, t).Unscoped().
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", qty))

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 調整履歴作成
func (r *InventoryGormRepository) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	if err := r.db.WithContext(ctx).Create(&adj).Error; err != nil {
		return err
	}
	return nil
}
