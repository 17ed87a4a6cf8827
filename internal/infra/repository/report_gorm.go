package repository

import (
	"context"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 売上に数える注文: 支払い済み、または代引きで配達済み。返金・キャンセルは除く
const revenueCondition = "orders.status <> 'cancelled' AND orders.payment_status <> 'refunded' AND " +
	"(orders.payment_status = 'paid' OR (orders.payment_method = 'cod' AND orders.status = 'delivered'))"

type ReportGormRepository struct {
	db *gorm.DB
}

func NewReportGormRepository(db *gorm.DB) *ReportGormRepository {
	return &ReportGormRepository{db: db}
}

func (r *ReportGormRepository) ordersIn(ctx context.Context, f repo.ReportFilter) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("orders.created_at >= ? AND orders.created_at < ?", f.From, f.To)
}

func (r *ReportGormRepository) Summary(ctx context.Context, f repo.ReportFilter) (model.SalesSummary, error) {
	var out model.SalesSummary

	if err := r.ordersIn(ctx, f).Count(&out.OrderCount).Error; err != nil {
		return model.SalesSummary{}, err
	}

	var rev struct {
		Revenue decimal.Decimal
		Orders  int64
	}
	err := r.ordersIn(ctx, f).
		Select("COALESCE(SUM(orders.total_amount), 0) AS revenue, COUNT(*) AS orders").
		Where(revenueCondition).
		Scan(&rev).Error
	if err != nil {
		return model.SalesSummary{}, err
	}
	out.Revenue = rev.Revenue
	out.AverageOrderValue = decimal.Zero
	if rev.Orders > 0 {
		out.AverageOrderValue = rev.Revenue.Div(decimal.NewFromInt(rev.Orders)).Round(2)
	}

	err = r.ordersIn(ctx, f).
		Joins("JOIN order_items ON order_items.order_id = orders.id").
		Where(revenueCondition).
		Select("COALESCE(SUM(order_items.quantity), 0)").
		Scan(&out.UnitsSold).Error
	if err != nil {
		return model.SalesSummary{}, err
	}

	out.ByStatus = []model.StatusCount{}
	if err := r.ordersIn(ctx, f).
		Select("orders.status AS status, COUNT(*) AS count").
		Group("orders.status").
		Order("orders.status").
		Scan(&out.ByStatus).Error; err != nil {
		return model.SalesSummary{}, err
	}

	out.ByPaymentStatus = []model.StatusCount{}
	if err := r.ordersIn(ctx, f).
		Select("orders.payment_status AS status, COUNT(*) AS count").
		Group("orders.payment_status").
		Order("orders.payment_status").
		Scan(&out.ByPaymentStatus).Error; err != nil {
		return model.SalesSummary{}, err
	}

	return out, nil
}

// 明細のスナップショットで集計する（商品が消えていても名前が出る）
func (r *ReportGormRepository) TopProducts(ctx context.Context, f repo.ReportFilter, limit int) ([]model.ProductSales, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	rows := []model.ProductSales{}
	err := r.ordersIn(ctx, f).
		Joins("JOIN order_items ON order_items.order_id = orders.id").
		Where(revenueCondition).
		Select("order_items.product_id AS product_id, MAX(order_items.product_name) AS product_name, " +
			"SUM(order_items.quantity) AS units_sold, SUM(order_items.line_total) AS revenue").
		Group("order_items.product_id").
		Order("units_sold desc").
		Order("product_id asc").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return []model.ProductSales{}, err
	}
	return rows, nil
}

func (r *ReportGormRepository) Daily(ctx context.Context, f repo.ReportFilter) ([]model.DailySales, error) {
	day := "to_char(orders.created_at, 'YYYY-MM-DD')"
	if r.db.Dialector.Name() == "sqlite" {
		day = "strftime('%Y-%m-%d', orders.created_at)"
	}

	rows := []model.DailySales{}
	err := r.ordersIn(ctx, f).
		Where(revenueCondition).
		Select(day + " AS day, COUNT(*) AS order_count, COALESCE(SUM(orders.total_amount), 0) AS revenue").
		Group("day").
		Order("day asc").
		Scan(&rows).Error
	if err != nil {
		return []model.DailySales{}, err
	}
	return rows, nil
}
