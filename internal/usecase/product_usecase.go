package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type ProductUsecase struct {
	tx         repo.TransactionManager
	products   repo.ProductRepository
	variants   repo.VariantRepository
	categories repo.CategoryRepository
	validator  InputValidator
	clock      Clock
	log        zerolog.Logger
}

// DI
func NewProductUsecase(
	tx repo.TransactionManager,
	products repo.ProductRepository,
	variants repo.VariantRepository,
	categories repo.CategoryRepository,
	validator InputValidator,
	log zerolog.Logger,
) *ProductUsecase {
	return &ProductUsecase{
		tx:         tx,
		products:   products,
		variants:   variants,
		categories: categories,
		validator:  validator,
		clock:      SystemClock(),
		log:        log,
	}
}

// GET /productsの入力DTO
type ListProductsInput struct {
	Page         int
	Limit        int
	Q            string
	CategorySlug string
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
	Sort         string
}

type ProductListOutput struct {
	Items []model.ProductWithCategory `json:"items"`
	Total int64                       `json:"total"`
	Page  int                         `json:"page"`
	Limit int                         `json:"limit"`
}

func (u *ProductUsecase) ListPublicProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	if in.Page < 1 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if len(in.Q) > 100 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "q too long")
	}
	if in.MinPrice != nil && in.MinPrice.IsNegative() {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "min_price must be >= 0")
	}
	if in.MaxPrice != nil && in.MaxPrice.IsNegative() {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "max_price must be >= 0")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && in.MinPrice.GreaterThan(*in.MaxPrice) {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "min_price must be <= max_price")
	}
	switch in.Sort {
	case "", "new", "price_asc", "price_desc":
	default:
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid sort")
	}

	items, total, err := u.products.ListPublic(ctx, repo.ProductListQuery{
		Page:         in.Page,
		Limit:        in.Limit,
		Q:            strings.TrimSpace(in.Q),
		CategorySlug: strings.ToLower(strings.TrimSpace(in.CategorySlug)),
		MinPrice:     in.MinPrice,
		MaxPrice:     in.MaxPrice,
		Sort:         in.Sort,
	})
	if err != nil {
		return ProductListOutput{}, errDB()
	}

	return ProductListOutput{
		Items: items,
		Total: total,
		Page:  in.Page,
		Limit: in.Limit,
	}, nil
}

// 商品詳細（有効なバリアント付き）。非公開は「存在しない扱い」
func (u *ProductUsecase) GetProductDetail(ctx context.Context, productID int64) (model.ProductWithVariants, error) {
	if productID <= 0 {
		return model.ProductWithVariants{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	p, err := u.products.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.ProductWithVariants{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.ProductWithVariants{}, errDB()
	}
	if !p.IsActive {
		return model.ProductWithVariants{}, NewHTTPError(http.StatusNotFound, "not found")
	}

	vs, err := u.variants.ListByProductID(ctx, productID, true)
	if err != nil {
		return model.ProductWithVariants{}, errDB()
	}
	return model.ProductWithVariants{Product: p, Variants: vs}, nil
}

// 管理画面の商品入力。在庫は作成時だけ受け付ける（以降は在庫APIで変える）
type AdminProductInput struct {
	CategoryID         *int64          `json:"category_id" validate:"omitempty,gt=0"`
	Name               string          `json:"name" validate:"required,max=255"`
	Slug               string          `json:"slug" validate:"omitempty,max=255"`
	Description        string          `json:"description" validate:"max=10000"`
	ImageURL           string          `json:"image_url" validate:"omitempty,url,max=1024"`
	Price              decimal.Decimal `json:"price"`
	DiscountPercentage int             `json:"discount_percentage" validate:"min=0,max=100"`
	StockQuantity      int64           `json:"stock_quantity" validate:"min=0"`
	IsActive           bool            `json:"is_active"`
}

func (u *ProductUsecase) validateProduct(in *AdminProductInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if err := u.validator.Validate(*in); err != nil {
		return NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if in.Price.IsNegative() {
		return NewHTTPError(http.StatusBadRequest, "price must be >= 0")
	}
	if in.Slug == "" {
		in.Slug = Slugify(in.Name)
	} else {
		in.Slug = Slugify(in.Slug)
	}
	if in.Slug == "" {
		return NewHTTPError(http.StatusBadRequest, "slug required")
	}
	return nil
}

func (u *ProductUsecase) AdminCreateProduct(ctx context.Context, adminUserID int64, in AdminProductInput) (model.Product, error) {
	if adminUserID <= 0 {
		return model.Product{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err := u.validateProduct(&in); err != nil {
		return model.Product{}, err
	}

	now := u.clock.Now()
	var created model.Product
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().Create(ctx, model.Product{
			CategoryID:         in.CategoryID,
			Name:               in.Name,
			Slug:               in.Slug,
			Description:        in.Description,
			ImageURL:           in.ImageURL,
			Price:              in.Price,
			DiscountPercentage: in.DiscountPercentage,
			StockQuantity:      in.StockQuantity,
			IsActive:           in.IsActive,
			CreatedAt:          now,
			UpdatedAt:          now,
		})
		if errors.Is(err, repo.ErrConflict) {
			return NewHTTPError(http.StatusConflict, "slug already exists")
		}
		if err != nil {
			return errDB()
		}
		created = p

		return createAudit(ctx, r, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionUpdateProductInfo,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   p.ID,
			BeforeJSON:   "{}",
			AfterJSON:    productAuditJSON(p),
			CreatedAt:    now,
		})
	})
	if err != nil {
		return model.Product{}, err
	}
	return created, nil
}

func (u *ProductUsecase) AdminUpdateProduct(ctx context.Context, adminUserID int64, productID int64, in AdminProductInput) (model.Product, error) {
	if adminUserID <= 0 {
		return model.Product{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if err := u.validateProduct(&in); err != nil {
		return model.Product{}, err
	}

	var updated model.Product
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return errDB()
		}

		next := before
		next.CategoryID = in.CategoryID
		next.Name = in.Name
		next.Slug = in.Slug
		next.Description = in.Description
		next.ImageURL = in.ImageURL
		next.Price = in.Price
		next.DiscountPercentage = in.DiscountPercentage
		next.IsActive = in.IsActive

		err = r.Products().Update(ctx, next)
		if errors.Is(err, repo.ErrConflict) {
			return NewHTTPError(http.StatusConflict, "slug already exists")
		}
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return errDB()
		}
		updated = next

		return createAudit(ctx, r, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionUpdateProductInfo,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   productAuditJSON(before),
			AfterJSON:    productAuditJSON(next),
			CreatedAt:    u.clock.Now(),
		})
	})
	if err != nil {
		return model.Product{}, err
	}
	return updated, nil
}

func (u *ProductUsecase) AdminDeleteProduct(ctx context.Context, adminUserID int64, productID int64) error {
	if adminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return errDB()
		}

		//論理削除（注文明細のスナップショットは残る）
		if err := r.Products().SoftDelete(ctx, productID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "not found")
			}
			return errDB()
		}

		return createAudit(ctx, r, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionUpdateProductInfo,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   productAuditJSON(before),
			AfterJSON:    `{"deleted":true}`,
			CreatedAt:    u.clock.Now(),
		})
	})
}

// PUT /admin/inventory/:product_id の入力。VariantIDがあればバリアントの在庫
type AdminInventoryInput struct {
	VariantID *int64 `json:"variant_id" validate:"omitempty,gt=0"`
	Stock     int64  `json:"stock" validate:"min=0"`
	Reason    string `json:"reason" validate:"required,max=255"`
}

func (u *ProductUsecase) AdminUpdateInventory(ctx context.Context, adminUserID int64, productID int64, in AdminInventoryInput) error {
	if adminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	in.Reason = strings.TrimSpace(in.Reason)
	if err := u.validator.Validate(in); err != nil {
		return NewHTTPError(http.StatusBadRequest, err.Error())
	}

	target := stockTargetOf(productID, in.VariantID)
	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//変更前の在庫（before）
		p, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return errDB()
		}
		before := p.StockQuantity
		if in.VariantID != nil {
			v, err := r.Variants().FindByID(ctx, *in.VariantID)
			if errors.Is(err, repo.ErrNotFound) || (err == nil && v.ProductID != productID) {
				return NewHTTPError(http.StatusNotFound, "variant not found")
			}
			if err != nil {
				return errDB()
			}
			before = v.StockQuantity
		}

		//在庫の現在値を更新
		if err := r.Inventory().SetStock(ctx, target, in.Stock); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "not found")
			}
			return errDB()
		}

		//履歴を作成（差分）
		now := u.clock.Now()
		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   productID,
			VariantID:   in.VariantID,
			AdminUserID: adminUserID,
			Delta:       in.Stock - before,
			Reason:      in.Reason,
			CreatedAt:   now,
		}); err != nil {
			return errDB()
		}

		beforeJSON, _ := json.Marshal(map[string]interface{}{"variant_id": in.VariantID, "stock": before})
		afterJSON, _ := json.Marshal(map[string]interface{}{"variant_id": in.VariantID, "stock": in.Stock})
		return createAudit(ctx, r, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionUpdateStock,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   string(beforeJSON),
			AfterJSON:    string(afterJSON),
			CreatedAt:    now,
		})
	})
}

func (u *ProductUsecase) ListCategories(ctx context.Context) ([]model.Category, error) {
	cs, err := u.categories.List(ctx)
	if err != nil {
		return nil, errDB()
	}
	return cs, nil
}

type AdminCategoryInput struct {
	Name string `json:"name" validate:"required,max=255"`
	Slug string `json:"slug" validate:"omitempty,max=255"`
}

func (u *ProductUsecase) AdminCreateCategory(ctx context.Context, adminUserID int64, in AdminCategoryInput) (model.Category, error) {
	if adminUserID <= 0 {
		return model.Category{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := u.validator.Validate(in); err != nil {
		return model.Category{}, NewHTTPError(http.StatusBadRequest, err.Error())
	}
	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(in.Name)
	}
	if slug == "" {
		return model.Category{}, NewHTTPError(http.StatusBadRequest, "slug required")
	}

	c, err := u.categories.Create(ctx, model.Category{Name: in.Name, Slug: slug, CreatedAt: u.clock.Now()})
	if errors.Is(err, repo.ErrConflict) {
		return model.Category{}, NewHTTPError(http.StatusConflict, "slug already exists")
	}
	if err != nil {
		return model.Category{}, errDB()
	}
	return c, nil
}

// 英数字以外はハイフンにまとめる（"Basmati Rice 5kg" → "basmati-rice-5kg"）
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

type productAuditState struct {
	Name               string          `json:"name"`
	Slug               string          `json:"slug"`
	CategoryID         *int64          `json:"category_id,omitempty"`
	Price              decimal.Decimal `json:"price"`
	DiscountPercentage int             `json:"discount_percentage"`
	IsActive           bool            `json:"is_active"`
}

func productAuditJSON(p model.Product) string {
	b, err := json.Marshal(productAuditState{
		Name:               p.Name,
		Slug:               p.Slug,
		CategoryID:         p.CategoryID,
		Price:              p.Price,
		DiscountPercentage: p.DiscountPercentage,
		IsActive:           p.IsActive,
	})
	if err != nil {
		return "{}"
	}
	return string(b)
}
