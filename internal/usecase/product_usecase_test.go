package usecase_test

import (
	"context"
	"net/http"
	"testing"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"
	"storefront/internal/validator"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProductUsecase(r testRepos) *usecase.ProductUsecase {
	return usecase.NewProductUsecase(r.tx, r.products, r.variants, r.categories, validator.NewInputValidator(), zerolog.Nop())
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "basmati-rice-5kg", usecase.Slugify("Basmati Rice 5kg"))
	assert.Equal(t, "tea-coffee", usecase.Slugify("  Tea & Coffee!! "))
	assert.Equal(t, "a-b", usecase.Slugify("a---b"))
	assert.Equal(t, "", usecase.Slugify("***"))
}

func TestProductUsecase_ListPublicProducts_InvalidInput(t *testing.T) {
	uc := newProductUsecase(newTestRepos(newTestDB(t)))
	ctx := context.Background()

	_, err := uc.ListPublicProducts(ctx, usecase.ListProductsInput{Page: 0, Limit: 20})
	assertErrContains(t, err, "invalid page")

	_, err = uc.ListPublicProducts(ctx, usecase.ListProductsInput{Page: 1, Limit: 101})
	assertErrContains(t, err, "invalid limit")

	_, err = uc.ListPublicProducts(ctx, usecase.ListProductsInput{Page: 1, Limit: 20, Sort: "random"})
	assertErrContains(t, err, "invalid sort")

	lo, hi := decimal.NewFromInt(500), decimal.NewFromInt(100)
	_, err = uc.ListPublicProducts(ctx, usecase.ListProductsInput{Page: 1, Limit: 20, MinPrice: &lo, MaxPrice: &hi})
	assertErrContains(t, err, "min_price must be <= max_price")
}

func TestProductUsecase_ListPublicProducts_FiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	r := newTestRepos(gdb)
	uc := newProductUsecase(r)

	bev, err := r.categories.Create(ctx, model.Category{Name: "Beverages", Slug: "beverages"})
	require.NoError(t, err)

	tea := seedProduct(t, gdb, "green-tea", "120", 0, 5)
	coffee := seedProduct(t, gdb, "coffee", "300", 10, 5)
	seedProduct(t, gdb, "rice", "80", 0, 5)
	hidden := seedProduct(t, gdb, "hidden-tea", "100", 0, 5)
	require.NoError(t, gdb.Model(&model.Product{}).Where("id IN ?", []int64{tea.ID, coffee.ID}).Update("category_id", bev.ID).Error)
	require.NoError(t, gdb.Model(&model.Product{}).Where("id = ?", hidden.ID).Update("is_active", false).Error)

	out, err := uc.ListPublicProducts(ctx, usecase.ListProductsInput{Page: 1, Limit: 20, Sort: "price_asc"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), out.Total)
	require.Len(t, out.Items, 3)
	assert.Equal(t, "rice", out.Items[0].Slug)
	assert.Equal(t, "coffee", out.Items[2].Slug)

	out, err = uc.ListPublicProducts(ctx, usecase.ListProductsInput{Page: 1, Limit: 20, CategorySlug: "Beverages", Q: "TEA"})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "green-tea", out.Items[0].Slug)
	assert.Equal(t, "Beverages", out.Items[0].CategoryName)

	floor := decimal.NewFromInt(100)
	out, err = uc.ListPublicProducts(ctx, usecase.ListProductsInput{Page: 1, Limit: 20, MinPrice: &floor, Sort: "price_desc"})
	require.NoError(t, err)
	require.Len(t, out.Items, 2)
	assert.Equal(t, "coffee", out.Items[0].Slug)
}

func TestProductUsecase_GetProductDetail(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	r := newTestRepos(gdb)
	uc := newProductUsecase(r)

	p := seedProduct(t, gdb, "beans", "500", 0, 0)
	seedVariant(t, gdb, p.ID, "250g", "150", 5, true)
	off := seedVariant(t, gdb, p.ID, "5kg", "2000", 0, false)
	require.NoError(t, gdb.Model(&model.Variant{}).Where("id = ?", off.ID).Update("is_active", false).Error)

	got, err := uc.GetProductDetail(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Variants, 1)
	assert.Equal(t, "250g", got.Variants[0].Name)

	require.NoError(t, gdb.Model(&model.Product{}).Where("id = ?", p.ID).Update("is_active", false).Error)
	_, err = uc.GetProductDetail(ctx, p.ID)
	assertHTTPError(t, err, http.StatusNotFound, usecase.CodeNotFound)
}

func TestProductUsecase_AdminCreateProduct(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	r := newTestRepos(gdb)
	uc := newProductUsecase(r)

	in := usecase.AdminProductInput{
		Name:               "Basmati Rice 5kg",
		Price:              decimal.NewFromInt(650),
		DiscountPercentage: 5,
		StockQuantity:      40,
		IsActive:           true,
	}
	p, err := uc.AdminCreateProduct(ctx, 1, in)
	require.NoError(t, err)
	assert.Equal(t, "basmati-rice-5kg", p.Slug)
	assert.Equal(t, int64(40), p.StockQuantity)

	_, err = uc.AdminCreateProduct(ctx, 1, in)
	assertHTTPError(t, err, http.StatusConflict, usecase.CodeConflict)

	in.Slug = "other"
	in.DiscountPercentage = 120
	_, err = uc.AdminCreateProduct(ctx, 1, in)
	assertErrContains(t, err, "discount_percentage must be <= 100")

	var logs []model.AuditLog
	require.NoError(t, gdb.Where("resource_id = ?", p.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, model.AuditActionUpdateProductInfo, logs[0].Action)
}

func TestProductUsecase_AdminUpdateProduct_KeepsStock(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	r := newTestRepos(gdb)
	uc := newProductUsecase(r)

	p := seedProduct(t, gdb, "tea", "100", 0, 7)

	updated, err := uc.AdminUpdateProduct(ctx, 1, p.ID, usecase.AdminProductInput{
		Name:          "Tea Premium",
		Price:         decimal.NewFromInt(140),
		StockQuantity: 999,
		IsActive:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, "tea-premium", updated.Slug)
	assert.Equal(t, int64(7), stockOf(t, gdb, p.ID))
}

func TestProductUsecase_AdminDeleteProduct_Soft(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	r := newTestRepos(gdb)
	uc := newProductUsecase(r)

	p := seedProduct(t, gdb, "tea", "100", 0, 7)
	require.NoError(t, uc.AdminDeleteProduct(ctx, 1, p.ID))

	_, err := uc.GetProductDetail(ctx, p.ID)
	assertHTTPError(t, err, http.StatusNotFound, usecase.CodeNotFound)

	// 行は残っている
	var n int64
	require.NoError(t, gdb.Unscoped().Model(&model.Product{}).Where("id = ?", p.ID).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	err = uc.AdminDeleteProduct(ctx, 1, p.ID)
	assertHTTPError(t, err, http.StatusNotFound, usecase.CodeNotFound)
}

func TestProductUsecase_AdminUpdateInventory(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	r := newTestRepos(gdb)
	uc := newProductUsecase(r)

	p := seedProduct(t, gdb, "beans", "500", 0, 10)
	v := seedVariant(t, gdb, p.ID, "1kg", "900", 4, true)
	other := seedProduct(t, gdb, "tea", "100", 0, 1)

	require.NoError(t, uc.AdminUpdateInventory(ctx, 1, p.ID, usecase.AdminInventoryInput{Stock: 3, Reason: "stock take"}))
	assert.Equal(t, int64(3), stockOf(t, gdb, p.ID))

	require.NoError(t, uc.AdminUpdateInventory(ctx, 1, p.ID, usecase.AdminInventoryInput{VariantID: &v.ID, Stock: 12, Reason: "restock"}))
	var got model.Variant
	require.NoError(t, gdb.First(&got, v.ID).Error)
	assert.Equal(t, int64(12), got.StockQuantity)

	var adj []model.InventoryAdjustment
	require.NoError(t, gdb.Order("id asc").Find(&adj).Error)
	require.Len(t, adj, 2)
	assert.Equal(t, int64(-7), adj[0].Delta)
	assert.Nil(t, adj[0].VariantID)
	assert.Equal(t, int64(8), adj[1].Delta)

	// 他の商品のバリアントは指定できない
	err := uc.AdminUpdateInventory(ctx, 1, other.ID, usecase.AdminInventoryInput{VariantID: &v.ID, Stock: 1, Reason: "x"})
	assertHTTPError(t, err, http.StatusNotFound, usecase.CodeNotFound)

	err = uc.AdminUpdateInventory(ctx, 1, p.ID, usecase.AdminInventoryInput{Stock: -1, Reason: "oops"})
	assertErrContains(t, err, "stock must be >= 0")

	err = uc.AdminUpdateInventory(ctx, 1, p.ID, usecase.AdminInventoryInput{Stock: 1})
	assertErrContains(t, err, "reason is required")
}

func TestProductUsecase_Categories(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	uc := newProductUsecase(newTestRepos(gdb))

	c, err := uc.AdminCreateCategory(ctx, 1, usecase.AdminCategoryInput{Name: "Dry Fruits"})
	require.NoError(t, err)
	assert.Equal(t, "dry-fruits", c.Slug)

	_, err = uc.AdminCreateCategory(ctx, 1, usecase.AdminCategoryInput{Name: "Dry fruits!"})
	assertHTTPError(t, err, http.StatusConflict, usecase.CodeConflict)

	cs, err := uc.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cs, 1)
}
