package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

// cart_items の永続化。ユーザー/ゲストの両方をここで扱う。
type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// 持ち主で絞り込む
func ownerScope(owner model.CartOwner) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if owner.IsGuest() {
			return db.Where("session_id = ? AND user_id IS NULL", owner.SessionID)
		}
		return db.Where("user_id = ?", owner.UserID)
	}
}

func (r *CartGormRepository) ListByOwner(ctx context.Context, owner model.CartOwner) ([]model.CartItem, error) {
	var items []model.CartItem
	err := r.db.WithContext(ctx).
		Scopes(ownerScope(owner)).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return []model.CartItem{}, err
	}
	return items, nil
}

func (r *CartGormRepository) FindLine(ctx context.Context, owner model.CartOwner, productID int64, variantID *int64) (model.CartItem, error) {
	q := r.db.WithContext(ctx).
		Scopes(ownerScope(owner)).
		Where("product_id = ?", productID)
	if variantID != nil {
		q = q.Where("variant_id = ?", *variantID)
	} else {
		q = q.Where("variant_id IS NULL")
	}

	var it model.CartItem
	err := q.Order("id asc").First(&it).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CartItem{}, repo.ErrNotFound
	}
	if err != nil {
		return model.CartItem{}, err
	}
	return it, nil
}

func (r *CartGormRepository) FindByIDForOwner(ctx context.Context, cartItemID int64, owner model.CartOwner) (model.CartItem, error) {
	var it model.CartItem
	err := r.db.WithContext(ctx).
		Scopes(ownerScope(owner)).
		Where("id = ?", cartItemID).
		First(&it).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CartItem{}, repo.ErrNotFound
	}
	if err != nil {
		return model.CartItem{}, err
	}
	return it, nil
}

func (r *CartGormRepository) Create(ctx context.Context, item model.CartItem) (model.CartItem, error) {
	if err := r.db.WithContext(ctx).Create(&item).Error; err != nil {
		return model.CartItem{}, err
	}
	return item, nil
}

func (r *CartGormRepository) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("id = ?", cartItemID).
		Update("quantity", qty)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *CartGormRepository) DeleteByID(ctx context.Context, cartItemID int64) error {
	res := r.db.WithContext(ctx).Delete(&model.CartItem{}, cartItemID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 0件でもエラーにしない
func (r *CartGormRepository) DeleteByOwner(ctx context.Context, owner model.CartOwner) error {
	return r.db.WithContext(ctx).
		Scopes(ownerScope(owner)).
		Delete(&model.CartItem{}).Error
}

func (r *CartGormRepository) Reparent(ctx context.Context, cartItemID int64, userID int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("id = ?", cartItemID).
		Updates(map[string]interface{}{
			"user_id":    userID,
			"session_id": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
