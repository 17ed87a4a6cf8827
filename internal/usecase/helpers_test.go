package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/infra/db"
	infra "storefront/internal/infra/repository"
	"storefront/internal/usecase"
	"storefront/internal/validator"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// =====================
// DB（sqliteのメモリDB。テストごとに別DB）
// =====================

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// 接続1本で直列化（トランザクション内はtx側のrepoだけを使う）
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, gdb.AutoMigrate(db.Models()...))
	return gdb
}

// repo一式
type testRepos struct {
	tx         *infra.TxManagerGorm
	products   *infra.ProductGormRepository
	categories *infra.CategoryGormRepository
	variants   *infra.VariantGormRepository
	cartItems  *infra.CartGormRepository
	orders     *infra.OrderGormRepository
	orderItems *infra.OrderItemGormRepository
	outbox     *infra.OutboxGormRepository
	counters   *infra.CounterGormRepository
	audits     *infra.AuditLogGormRepository
}

func newTestRepos(gdb *gorm.DB) testRepos {
	return testRepos{
		tx:         infra.NewTxManagerGorm(gdb),
		products:   infra.NewProductGormRepository(gdb),
		categories: infra.NewCategoryGormRepository(gdb),
		variants:   infra.NewVariantGormRepository(gdb),
		cartItems:  infra.NewCartGormRepository(gdb),
		orders:     infra.NewOrderGormRepository(gdb),
		orderItems: infra.NewOrderItemGormRepository(gdb),
		outbox:     infra.NewOutboxGormRepository(gdb),
		counters:   infra.NewCounterGormRepository(gdb),
		audits:     infra.NewAuditLogGormRepository(gdb),
	}
}

func seedProduct(t *testing.T, gdb *gorm.DB, slug string, price string, discount int, stock int64) model.Product {
	t.Helper()
	p := model.Product{
		Name:               strings.ToUpper(slug[:1]) + slug[1:],
		Slug:               slug,
		Price:              decimal.RequireFromString(price),
		DiscountPercentage: discount,
		StockQuantity:      stock,
		IsActive:           true,
	}
	require.NoError(t, gdb.Create(&p).Error)
	return p
}

func seedVariant(t *testing.T, gdb *gorm.DB, productID int64, name string, price string, stock int64, isDefault bool) model.Variant {
	t.Helper()
	v := model.Variant{
		ProductID:     productID,
		Name:          name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsDefault:     isDefault,
		IsActive:      true,
	}
	require.NoError(t, gdb.Create(&v).Error)
	return v
}

func seedCartLine(t *testing.T, gdb *gorm.DB, owner model.CartOwner, productID int64, variantID *int64, qty int64) model.CartItem {
	t.Helper()
	it := model.CartItem{ProductID: productID, VariantID: variantID, Quantity: qty}
	if owner.IsGuest() {
		sid := owner.SessionID
		it.SessionID = &sid
	} else {
		uid := owner.UserID
		it.UserID = &uid
	}
	require.NoError(t, gdb.Create(&it).Error)
	return it
}

func stockOf(t *testing.T, gdb *gorm.DB, productID int64) int64 {
	t.Helper()
	var p model.Product
	require.NoError(t, gdb.Unscoped().First(&p, productID).Error)
	return p.StockQuantity
}

func countRows(t *testing.T, gdb *gorm.DB, m interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, gdb.Model(m).Count(&n).Error)
	return n
}

// =====================
// fakes
// =====================

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

type gatewayStub struct {
	mu         sync.Mutex
	orderID    string
	createErr  error
	refundID   string
	refundErr  error
	created    []usecase.GatewayOrderRequest
	refundedTo []string
}

func (g *gatewayStub) CreateOrder(_ context.Context, req usecase.GatewayOrderRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, req)
	if g.createErr != nil {
		return "", g.createErr
	}
	return g.orderID, nil
}

func (g *gatewayStub) Refund(_ context.Context, paymentID string, _ int64, _ map[string]string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refundedTo = append(g.refundedTo, paymentID)
	if g.refundErr != nil {
		return "", g.refundErr
	}
	return g.refundID, nil
}

var errGatewayDown = errors.New("gateway down")

// sig == "good" のときだけ通す
type verifierStub struct{}

func (verifierStub) Verify(_, _, signature string) bool { return signature == "good" }

func newOrderUsecase(r testRepos, gw usecase.PaymentGateway) *usecase.OrderUsecase {
	return usecase.NewOrderUsecase(usecase.OrderDeps{
		Tx:         r.tx,
		CartItems:  r.cartItems,
		Products:   r.products,
		Variants:   r.variants,
		Orders:     r.orders,
		OrderItems: r.orderItems,
		Counters:   r.counters,
		Gateway:    gw,
		Validator:  validator.NewInputValidator(),
		Clock:      fixedClock{testNow},
	}, usecase.CheckoutConfig{
		Currency:          "INR",
		CODShippingFee:    decimal.NewFromInt(49),
		OnlineShippingFee: decimal.Zero,
		RazorpayKeyID:     "rzp_test_key",
	}, zerolog.Nop())
}

func validCheckout(method string) usecase.CheckoutInput {
	return usecase.CheckoutInput{
		CustomerName:  "Asha Rao",
		CustomerEmail: "asha@example.com",
		CustomerPhone: "9876543210",
		ShippingAddress: usecase.ShippingAddressInput{
			Line1:      "12 MG Road",
			City:       "Bengaluru",
			State:      "KA",
			PostalCode: "560001",
			Country:    "IN",
		},
		PaymentMethod: method,
	}
}

// =====================
// Helper: error
// =====================

func assertErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, strings.Contains(err.Error(), wantSubstr), "err=%q want contains %q", err.Error(), wantSubstr)
	}
}

func assertHTTPError(t *testing.T, err error, status int, code string) *usecase.HTTPError {
	t.Helper()
	he, ok := usecase.AsHTTPError(err)
	if !assert.True(t, ok, "want HTTPError, got %v", err) {
		return nil
	}
	assert.Equal(t, status, he.Status)
	if code != "" {
		assert.Equal(t, code, he.Code)
	}
	return he
}

func ptr[T any](v T) *T { return &v }
