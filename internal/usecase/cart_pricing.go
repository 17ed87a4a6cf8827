package usecase

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
)

type CartLineOutput struct {
	ID                 int64           `json:"id"`
	ProductID          int64           `json:"product_id"`
	VariantID          *int64          `json:"variant_id,omitempty"`
	Name               string          `json:"name"`
	VariantName        string          `json:"variant_name,omitempty"`
	Slug               string          `json:"slug"`
	ImageURL           string          `json:"image_url"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	DiscountPercentage int             `json:"discount_percentage"`
	DiscountedPrice    decimal.Decimal `json:"discounted_price"`
	Quantity           int64           `json:"quantity"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	StockQuantity      int64           `json:"stock_quantity"`
	// 非公開・削除済みの商品はfalse（合計に含めない）
	Available bool `json:"available"`

	product model.Product
	variant *model.Variant
}

type CartOutput struct {
	Items     []CartLineOutput `json:"items"`
	Subtotal  decimal.Decimal  `json:"subtotal"`
	Discount  decimal.Decimal  `json:"discount"`
	ItemCount int64            `json:"item_count"`
}

// 明細ごとに今の商品行から価格を計算し直す（カートに価格は保存しない）。
// バリアントがあれば価格と在庫はバリアント、割引率は商品のもの。
func priceCart(ctx context.Context, products repo.ProductRepository, variants repo.VariantRepository, items []model.CartItem) (CartOutput, error) {
	out := CartOutput{
		Items:    make([]CartLineOutput, 0, len(items)),
		Subtotal: decimal.Zero,
		Discount: decimal.Zero,
	}
	gross := decimal.Zero

	for _, it := range items {
		line := CartLineOutput{
			ID:        it.ID,
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
		}

		p, err := products.FindByID(ctx, it.ProductID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return CartOutput{}, err
		}
		if err == nil {
			line.product = p
			line.Name = p.Name
			line.Slug = p.Slug
			line.ImageURL = p.ImageURL
			line.UnitPrice = p.Price
			line.DiscountPercentage = model.ClampDiscount(p.DiscountPercentage)
			line.StockQuantity = p.StockQuantity
			line.Available = p.IsActive
		}

		if line.Available && it.VariantID != nil {
			v, err := variants.FindByID(ctx, *it.VariantID)
			if err != nil && !errors.Is(err, repo.ErrNotFound) {
				return CartOutput{}, err
			}
			if err != nil || v.ProductID != p.ID || !v.IsActive {
				line.Available = false
			} else {
				vv := v
				line.variant = &vv
				line.VariantName = v.Name
				line.UnitPrice = v.Price
				line.StockQuantity = v.StockQuantity
			}
		}

		line.DiscountedPrice = model.DiscountedPrice(line.UnitPrice, line.DiscountPercentage)
		line.Subtotal = line.DiscountedPrice.Mul(decimal.NewFromInt(it.Quantity))

		if line.Available {
			out.Subtotal = out.Subtotal.Add(line.Subtotal)
			gross = gross.Add(line.UnitPrice.Mul(decimal.NewFromInt(it.Quantity)))
			out.ItemCount += it.Quantity
		}
		out.Items = append(out.Items, line)
	}

	out.Discount = gross.Sub(out.Subtotal)
	return out, nil
}

func stockTargetOf(productID int64, variantID *int64) repo.StockTarget {
	return repo.StockTarget{ProductID: productID, VariantID: variantID}
}
