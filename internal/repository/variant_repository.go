package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type VariantRepository interface {
	FindByID(ctx context.Context, id int64) (model.Variant, error)
	// id昇順
	ListByProductID(ctx context.Context, productID int64, activeOnly bool) ([]model.Variant, error)

	Create(ctx context.Context, v model.Variant) (model.Variant, error)
	Update(ctx context.Context, v model.Variant) error
	Delete(ctx context.Context, id int64) error

	// 商品のバリアントのうち variantID だけを is_default=true にする
	SetDefault(ctx context.Context, productID int64, variantID int64) error
}
