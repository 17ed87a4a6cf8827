package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type VariantGormRepository struct {
	db *gorm.DB
}

func NewVariantGormRepository(db *gorm.DB) *VariantGormRepository {
	return &VariantGormRepository{db: db}
}

func (r *VariantGormRepository) FindByID(ctx context.Context, id int64) (model.Variant, error) {
	var v model.Variant
	err := r.db.WithContext(ctx).First(&v, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Variant{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Variant{}, err
	}
	return v, nil
}

func (r *VariantGormRepository) ListByProductID(ctx context.Context, productID int64, activeOnly bool) ([]model.Variant, error) {
	q := r.db.WithContext(ctx).Where("product_id = ?", productID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var vs []model.Variant
	if err := q.Order("id asc").Find(&vs).Error; err != nil {
		return []model.Variant{}, err
	}
	return vs, nil
}

func (r *VariantGormRepository) Create(ctx context.Context, v model.Variant) (model.Variant, error) {
	inactive := !v.IsActive
	if err := r.db.WithContext(ctx).Create(&v).Error; err != nil {
		return model.Variant{}, err
	}
	//is_activeはdefault:trueなのでfalseはINSERTで落ちる
	if inactive {
		if err := r.db.WithContext(ctx).Model(&model.Variant{}).Where("id = ?", v.ID).Update("is_active", false).Error; err != nil {
			return model.Variant{}, err
		}
		v.IsActive = false
	}
	return v, nil
}

// is_defaultはSetDefaultでだけ変える
func (r *VariantGormRepository) Update(ctx context.Context, v model.Variant) error {
	res := r.db.WithContext(ctx).Model(&model.Variant{}).Where("id = ?", v.ID).Updates(map[string]interface{}{
		"name":             v.Name,
		"sku":              v.SKU,
		"price":            v.Price,
		"compare_at_price": v.CompareAtPrice,
		"stock_quantity":   v.StockQuantity,
		"is_active":        v.IsActive,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *VariantGormRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&model.Variant{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *VariantGormRepository) SetDefault(ctx context.Context, productID int64, variantID int64) error {
	//1文で全行を書き換える（途中で2件trueになる瞬間を作らない）
	res := r.db.WithContext(ctx).
		Model(&model.Variant{}).
		Where("product_id = ?", productID).
		Update("is_default", gorm.Expr("CASE WHEN id = ? THEN ? ELSE ? END", variantID, true, false))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
