package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type CartItemRepository interface {
	ListByOwner(ctx context.Context, owner model.CartOwner) ([]model.CartItem, error)
	// 同じ(product, variant)の行。無ければErrNotFound
	FindLine(ctx context.Context, owner model.CartOwner, productID int64, variantID *int64) (model.CartItem, error)
	// 他人の明細はErrNotFound
	FindByIDForOwner(ctx context.Context, cartItemID int64, owner model.CartOwner) (model.CartItem, error)

	Create(ctx context.Context, item model.CartItem) (model.CartItem, error)
	UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error
	DeleteByID(ctx context.Context, cartItemID int64) error
	DeleteByOwner(ctx context.Context, owner model.CartOwner) error

	// ゲストの明細をユーザーに付け替える
	Reparent(ctx context.Context, cartItemID int64, userID int64) error
}
