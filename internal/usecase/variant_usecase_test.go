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
	"gorm.io/gorm"
)

func defaultsOf(t *testing.T, gdb *gorm.DB, productID int64) []int64 {
	t.Helper()
	var ids []int64
	require.NoError(t, gdb.Model(&model.Variant{}).
		Where("product_id = ? AND is_default = ?", productID, true).
		Order("id asc").
		Pluck("id", &ids).Error)
	return ids
}

func variantInput(name string, isDefault bool) usecase.AdminVariantInput {
	return usecase.AdminVariantInput{
		Name:          name,
		Price:         decimal.NewFromInt(250),
		StockQuantity: 5,
		IsDefault:     isDefault,
	}
}

func TestVariantUsecase_DefaultAlwaysSingle(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	r := newTestRepos(gdb)
	uc := usecase.NewVariantUsecase(r.tx, validator.NewInputValidator(), zerolog.Nop())

	p := seedProduct(t, gdb, "beans", "500", 0, 0)

	// 最初の1件はデフォルトになる
	small, err := uc.CreateVariant(ctx, 1, p.ID, variantInput("250g", false))
	require.NoError(t, err)
	assert.True(t, small.IsDefault)
	assert.Equal(t, []int64{small.ID}, defaultsOf(t, gdb, p.ID))

	// 指定が無ければ既存のデフォルトのまま
	medium, err := uc.CreateVariant(ctx, 1, p.ID, variantInput("500g", false))
	require.NoError(t, err)
	assert.False(t, medium.IsDefault)
	assert.Equal(t, []int64{small.ID}, defaultsOf(t, gdb, p.ID))

	// 指定したものが勝つ
	large, err := uc.CreateVariant(ctx, 1, p.ID, variantInput("1kg", true))
	require.NoError(t, err)
	assert.True(t, large.IsDefault)
	assert.Equal(t, []int64{large.ID}, defaultsOf(t, gdb, p.ID))

	// デフォルトを消したら一番小さいidへ
	require.NoError(t, uc.DeleteVariant(ctx, 1, large.ID))
	assert.Equal(t, []int64{small.ID}, defaultsOf(t, gdb, p.ID))

	// 更新でデフォルト指定
	updated, err := uc.UpdateVariant(ctx, 1, medium.ID, variantInput("500g pack", true))
	require.NoError(t, err)
	assert.True(t, updated.IsDefault)
	assert.Equal(t, "500g pack", updated.Name)
	assert.Equal(t, []int64{medium.ID}, defaultsOf(t, gdb, p.ID))

	// 全部消すとデフォルトは無い
	require.NoError(t, uc.DeleteVariant(ctx, 1, medium.ID))
	require.NoError(t, uc.DeleteVariant(ctx, 1, small.ID))
	assert.Empty(t, defaultsOf(t, gdb, p.ID))

	var audits int64
	require.NoError(t, gdb.Model(&model.AuditLog{}).Where("action = ?", model.AuditActionUpdateVariants).Count(&audits).Error)
	assert.Equal(t, int64(7), audits)
}

func TestVariantUsecase_CreateVariant_Validation(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	r := newTestRepos(gdb)
	uc := usecase.NewVariantUsecase(r.tx, validator.NewInputValidator(), zerolog.Nop())

	p := seedProduct(t, gdb, "beans", "500", 0, 0)

	in := variantInput("", false)
	_, err := uc.CreateVariant(ctx, 1, p.ID, in)
	assertErrContains(t, err, "name is required")

	in = variantInput("250g", false)
	in.Price = decimal.NewFromInt(-1)
	_, err = uc.CreateVariant(ctx, 1, p.ID, in)
	assertErrContains(t, err, "price must be >= 0")

	_, err = uc.CreateVariant(ctx, 1, 9999, variantInput("250g", false))
	assertHTTPError(t, err, http.StatusNotFound, usecase.CodeNotFound)

	_, err = uc.CreateVariant(ctx, 0, p.ID, variantInput("250g", false))
	assertHTTPError(t, err, http.StatusUnauthorized, usecase.CodeUnauthorized)
}

func TestVariantUsecase_DeleteVariant_NotFound(t *testing.T) {
	gdb := newTestDB(t)
	r := newTestRepos(gdb)
	uc := usecase.NewVariantUsecase(r.tx, validator.NewInputValidator(), zerolog.Nop())

	err := uc.DeleteVariant(context.Background(), 1, 404)
	assertHTTPError(t, err, http.StatusNotFound, usecase.CodeNotFound)
}
