package model

import "github.com/shopspring/decimal"

// 一覧用: 商品＋カテゴリ名
type ProductWithCategory struct {
	Product
	CategoryName string `json:"category_name"`
	CategorySlug string `json:"category_slug"`
}

// 商品詳細: 商品＋有効なバリアント
type ProductWithVariants struct {
	Product
	Variants []Variant `json:"variants"`
}

// 注文＋明細
type OrderWithItems struct {
	Order
	Items []OrderItem `json:"items"`
}

// 売上サマリ
type SalesSummary struct {
	OrderCount        int64           `json:"order_count"`
	Revenue           decimal.Decimal `json:"revenue"`
	UnitsSold         int64           `json:"units_sold"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	ByStatus          []StatusCount   `json:"by_status"`
	ByPaymentStatus   []StatusCount   `json:"by_payment_status"`
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

type ProductSales struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitsSold   int64           `json:"units_sold"`
	Revenue     decimal.Decimal `json:"revenue"`
}

type DailySales struct {
	Day        string          `json:"day"` // YYYY-MM-DD
	OrderCount int64           `json:"order_count"`
	Revenue    decimal.Decimal `json:"revenue"`
}
