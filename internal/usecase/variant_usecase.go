package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// バリアント管理。変更のたびにデフォルトを付け直す。
type VariantUsecase struct {
	tx        repo.TransactionManager
	validator InputValidator
	clock     Clock
	log       zerolog.Logger
}

func NewVariantUsecase(tx repo.TransactionManager, validator InputValidator, log zerolog.Logger) *VariantUsecase {
	return &VariantUsecase{tx: tx, validator: validator, clock: SystemClock(), log: log}
}

type AdminVariantInput struct {
	Name           string           `json:"name" validate:"required,max=255"`
	SKU            string           `json:"sku" validate:"max=100"`
	Price          decimal.Decimal  `json:"price"`
	CompareAtPrice *decimal.Decimal `json:"compare_at_price"`
	StockQuantity  int64            `json:"stock_quantity" validate:"min=0"`
	IsDefault      bool             `json:"is_default"`
	IsActive       *bool            `json:"is_active"`
}

func (u *VariantUsecase) validate(in *AdminVariantInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.SKU = strings.TrimSpace(in.SKU)
	if err := u.validator.Validate(*in); err != nil {
		return NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if in.Price.IsNegative() {
		return NewHTTPError(http.StatusBadRequest, "price must be >= 0")
	}
	if in.CompareAtPrice != nil && in.CompareAtPrice.IsNegative() {
		return NewHTTPError(http.StatusBadRequest, "compare_at_price must be >= 0")
	}
	return nil
}

func (u *VariantUsecase) CreateVariant(ctx context.Context, adminUserID int64, productID int64, in AdminVariantInput) (model.Variant, error) {
	if adminUserID <= 0 {
		return model.Variant{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return model.Variant{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if err := u.validate(&in); err != nil {
		return model.Variant{}, err
	}

	var created model.Variant
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Products().FindByID(ctx, productID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "product not found")
			}
			return errDB()
		}
		before, err := r.Variants().ListByProductID(ctx, productID, false)
		if err != nil {
			return errDB()
		}

		active := true
		if in.IsActive != nil {
			active = *in.IsActive
		}
		now := u.clock.Now()
		v, err := r.Variants().Create(ctx, model.Variant{
			ProductID:      productID,
			Name:           in.Name,
			SKU:            in.SKU,
			Price:          in.Price,
			CompareAtPrice: in.CompareAtPrice,
			StockQuantity:  in.StockQuantity,
			IsActive:       active,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			return errDB()
		}

		var requested *int64
		if in.IsDefault {
			requested = &v.ID
		}
		defaultID, err := rederiveDefault(ctx, r, productID, requested)
		if err != nil {
			return err
		}
		v.IsDefault = defaultID == v.ID
		created = v

		return u.audit(ctx, r, adminUserID, productID, before)
	})
	if err != nil {
		return model.Variant{}, err
	}
	return created, nil
}

func (u *VariantUsecase) UpdateVariant(ctx context.Context, adminUserID int64, variantID int64, in AdminVariantInput) (model.Variant, error) {
	if adminUserID <= 0 {
		return model.Variant{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if variantID <= 0 {
		return model.Variant{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := u.validate(&in); err != nil {
		return model.Variant{}, err
	}

	var updated model.Variant
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cur, err := r.Variants().FindByID(ctx, variantID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "variant not found")
		}
		if err != nil {
			return errDB()
		}
		before, err := r.Variants().ListByProductID(ctx, cur.ProductID, false)
		if err != nil {
			return errDB()
		}

		next := cur
		next.Name = in.Name
		next.SKU = in.SKU
		next.Price = in.Price
		next.CompareAtPrice = in.CompareAtPrice
		next.StockQuantity = in.StockQuantity
		if in.IsActive != nil {
			next.IsActive = *in.IsActive
		}
		if err := r.Variants().Update(ctx, next); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "variant not found")
			}
			return errDB()
		}

		var requested *int64
		if in.IsDefault {
			requested = &next.ID
		}
		defaultID, err := rederiveDefault(ctx, r, cur.ProductID, requested)
		if err != nil {
			return err
		}
		next.IsDefault = defaultID == next.ID
		updated = next

		return u.audit(ctx, r, adminUserID, cur.ProductID, before)
	})
	if err != nil {
		return model.Variant{}, err
	}
	return updated, nil
}

func (u *VariantUsecase) DeleteVariant(ctx context.Context, adminUserID int64, variantID int64) error {
	if adminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if variantID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cur, err := r.Variants().FindByID(ctx, variantID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "variant not found")
		}
		if err != nil {
			return errDB()
		}
		before, err := r.Variants().ListByProductID(ctx, cur.ProductID, false)
		if err != nil {
			return errDB()
		}

		if err := r.Variants().Delete(ctx, variantID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "variant not found")
			}
			return errDB()
		}
		if _, err := rederiveDefault(ctx, r, cur.ProductID, nil); err != nil {
			return err
		}
		return u.audit(ctx, r, adminUserID, cur.ProductID, before)
	})
}

// デフォルトの付け直し。要求があればそれ、なければ既存の1件、それも無ければ最小id。
// バリアントが無ければ0を返す。
func rederiveDefault(ctx context.Context, r repo.TxRepos, productID int64, requested *int64) (int64, error) {
	vs, err := r.Variants().ListByProductID(ctx, productID, false)
	if err != nil {
		return 0, errDB()
	}
	if len(vs) == 0 {
		return 0, nil
	}

	var target int64
	if requested != nil {
		target = *requested
	} else {
		var defaults []int64
		for _, v := range vs {
			if v.IsDefault {
				defaults = append(defaults, v.ID)
			}
		}
		if len(defaults) == 1 {
			return defaults[0], nil
		}
		// id昇順で返ってくる
		target = vs[0].ID
	}

	if err := r.Variants().SetDefault(ctx, productID, target); err != nil {
		return 0, errDB()
	}
	return target, nil
}

func (u *VariantUsecase) audit(ctx context.Context, r repo.TxRepos, adminUserID, productID int64, before []model.Variant) error {
	after, err := r.Variants().ListByProductID(ctx, productID, false)
	if err != nil {
		return errDB()
	}
	return createAudit(ctx, r, model.AuditLog{
		ActorUserID:  adminUserID,
		Action:       model.AuditActionUpdateVariants,
		ResourceType: model.AuditResourceProduct,
		ResourceID:   productID,
		BeforeJSON:   variantsAuditJSON(before),
		AfterJSON:    variantsAuditJSON(after),
		CreatedAt:    u.clock.Now(),
	})
}

func variantsAuditJSON(vs []model.Variant) string {
	b, err := json.Marshal(vs)
	if err != nil {
		return "[]"
	}
	return string(b)
}
