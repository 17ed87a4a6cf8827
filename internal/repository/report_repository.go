package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

// [From, To) の期間
type ReportFilter struct {
	From time.Time
	To   time.Time
}

// 集計は読み取り専用
type ReportRepository interface {
	Summary(ctx context.Context, f ReportFilter) (model.SalesSummary, error)
	TopProducts(ctx context.Context, f ReportFilter, limit int) ([]model.ProductSales, error)
	Daily(ctx context.Context, f ReportFilter) ([]model.DailySales, error)
}
