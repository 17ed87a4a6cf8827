package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const orderNumberCounter = "order_number"

type CheckoutConfig struct {
	Currency          string
	CODShippingFee    decimal.Decimal
	OnlineShippingFee decimal.Decimal
	RazorpayKeyID     string
}

type OrderUsecase struct {
	tx        repo.TransactionManager
	cartItems repo.CartItemRepository
	products  repo.ProductRepository
	variants  repo.VariantRepository
	orders    repo.OrderRepository
	items     repo.OrderItemRepository
	counters  repo.CounterRepository
	gateway   PaymentGateway
	validator InputValidator
	clock     Clock
	cfg       CheckoutConfig
	log       zerolog.Logger
}

type OrderDeps struct {
	Tx         repo.TransactionManager
	CartItems  repo.CartItemRepository
	Products   repo.ProductRepository
	Variants   repo.VariantRepository
	Orders     repo.OrderRepository
	OrderItems repo.OrderItemRepository
	Counters   repo.CounterRepository
	Gateway    PaymentGateway
	Validator  InputValidator
	Clock      Clock
}

func NewOrderUsecase(d OrderDeps, cfg CheckoutConfig, log zerolog.Logger) *OrderUsecase {
	if d.Clock == nil {
		d.Clock = SystemClock()
	}
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return &OrderUsecase{
		tx:        d.Tx,
		cartItems: d.CartItems,
		products:  d.Products,
		variants:  d.Variants,
		orders:    d.Orders,
		items:     d.OrderItems,
		counters:  d.Counters,
		gateway:   d.Gateway,
		validator: d.Validator,
		clock:     d.Clock,
		cfg:       cfg,
		log:       log,
	}
}

type ShippingAddressInput struct {
	Line1      string `json:"line1" validate:"required,max=255"`
	Line2      string `json:"line2" validate:"max=255"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"required,max=100"`
	PostalCode string `json:"postalCode" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,max=100"`
}

// POST /orders の入力
type CheckoutInput struct {
	CustomerName    string               `json:"customerName" validate:"required,max=255"`
	CustomerEmail   string               `json:"customerEmail" validate:"required,email,max=255"`
	CustomerPhone   string               `json:"customerPhone" validate:"required,min=7,max=20"`
	ShippingAddress ShippingAddressInput `json:"shippingAddress"`
	PaymentMethod   string               `json:"paymentMethod" validate:"required,oneof=cod online"`
	Notes           string               `json:"notes" validate:"max=1000"`
}

type CheckoutOutput struct {
	OrderID         int64           `json:"orderId"`
	OrderNumber     string          `json:"orderNumber"`
	Amount          decimal.Decimal `json:"amount"`
	AmountMinor     int64           `json:"amountMinor"`
	Currency        string          `json:"currency"`
	RazorpayOrderID *string         `json:"razorpayOrderId,omitempty"`
	RazorpayKeyID   string          `json:"razorpayKeyId,omitempty"`
}

type OrderListOutput struct {
	Items []model.Order `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// 注文の合計。total = subtotal − discount + shipping + tax
type orderTotals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

func (u *OrderUsecase) computeTotals(cart CartOutput, method model.PaymentMethod) orderTotals {
	t := orderTotals{
		Subtotal: cart.Subtotal,
		// 商品ごとの割引は明細（discounted_price）とsubtotalに反映済み。注文単位の割引は今のところ無い
		Discount: decimal.Zero,
		Shipping: u.cfg.OnlineShippingFee,
		// 税込み価格
		Tax: decimal.Zero,
	}
	if method == model.PaymentMethodCOD {
		t.Shipping = u.cfg.CODShippingFee
	}
	t.Total = t.Subtotal.Sub(t.Discount).Add(t.Shipping).Add(t.Tax)
	return t
}

// CreateOrder はカートから注文を作る。
// 注文・明細・在庫減算・カート削除・通知イベントは1トランザクションで、どれか失敗したら全部戻す。
func (u *OrderUsecase) CreateOrder(ctx context.Context, owner model.CartOwner, in CheckoutInput) (CheckoutOutput, error) {
	if !owner.Valid() {
		return CheckoutOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	in.PaymentMethod = strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	in.CustomerEmail = strings.TrimSpace(in.CustomerEmail)
	if err := u.validator.Validate(in); err != nil {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, err.Error())
	}
	method := model.PaymentMethod(in.PaymentMethod)

	//カートを読み直す（表示時の値は信用しない）
	lines, err := u.cartItems.ListByOwner(ctx, owner)
	if err != nil {
		return CheckoutOutput{}, errDB()
	}
	if len(lines) == 0 {
		return CheckoutOutput{}, newCodedError(http.StatusBadRequest, CodeEmptyCart, "cart is empty")
	}
	cart, err := priceCart(ctx, u.products, u.variants, lines)
	if err != nil {
		return CheckoutOutput{}, errDB()
	}

	//全明細の在庫・公開状態チェック（1つでもダメなら注文しない）
	for _, l := range cart.Items {
		if !l.Available {
			name := l.Name
			if name == "" {
				name = "product #" + strconv.FormatInt(l.ProductID, 10)
			}
			return CheckoutOutput{}, errUnavailable(name)
		}
		if l.Quantity > l.StockQuantity {
			return CheckoutOutput{}, errInsufficientStock(lineName(l), l.StockQuantity)
		}
	}

	totals := u.computeTotals(cart, method)
	now := u.clock.Now()

	seq, err := u.counters.Next(ctx, orderNumberCounter)
	if err != nil {
		return CheckoutOutput{}, errDB()
	}
	orderNumber := fmt.Sprintf("ORD-%s-%06d", now.Format("20060102"), seq)

	//オンライン決済はゲートウェイ側の注文を先に作る（失敗したら何も保存しない）
	var gatewayOrderID *string
	if method == model.PaymentMethodOnline {
		id, err := u.gateway.CreateOrder(ctx, GatewayOrderRequest{
			AmountMinor: model.ToMinorUnits(totals.Total),
			Receipt:     orderNumber,
			Currency:    u.cfg.Currency,
			Notes: map[string]string{
				"order_number":   orderNumber,
				"customer_email": in.CustomerEmail,
			},
		})
		if err != nil {
			u.log.Error().Err(err).Str("order_number", orderNumber).Msg("payment gateway order failed")
			return CheckoutOutput{}, newCodedError(http.StatusBadGateway, CodePaymentGateway, "could not initiate payment, please try again")
		}
		gatewayOrderID = &id
	}

	order := model.Order{
		OrderNumber:        orderNumber,
		CustomerName:       strings.TrimSpace(in.CustomerName),
		CustomerEmail:      in.CustomerEmail,
		CustomerPhone:      strings.TrimSpace(in.CustomerPhone),
		ShippingLine1:      in.ShippingAddress.Line1,
		ShippingLine2:      in.ShippingAddress.Line2,
		ShippingCity:       in.ShippingAddress.City,
		ShippingState:      in.ShippingAddress.State,
		ShippingPostalCode: in.ShippingAddress.PostalCode,
		ShippingCountry:    in.ShippingAddress.Country,
		Subtotal:           totals.Subtotal,
		DiscountAmount:     totals.Discount,
		ShippingCost:       totals.Shipping,
		TaxAmount:          totals.Tax,
		TotalAmount:        totals.Total,
		Currency:           u.cfg.Currency,
		Status:             model.OrderStatusPending,
		PaymentStatus:      model.PaymentStatusPending,
		PaymentMethod:      method,
		RazorpayOrderID:    gatewayOrderID,
		Notes:              in.Notes,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if owner.UserID > 0 {
		uid := owner.UserID
		order.UserID = &uid
	}

	var orderID int64
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		id, err := r.Orders().Create(ctx, order)
		if err != nil {
			return errDB()
		}
		orderID = id

		//スナップショット
		items := make([]model.OrderItem, 0, len(cart.Items))
		for _, l := range cart.Items {
			items = append(items, model.OrderItem{
				ProductID:          l.ProductID,
				VariantID:          l.VariantID,
				ProductName:        l.Name,
				VariantName:        l.VariantName,
				ProductSlug:        l.Slug,
				ProductImage:       l.ImageURL,
				UnitPrice:          l.UnitPrice,
				DiscountPercentage: l.DiscountPercentage,
				DiscountedPrice:    l.DiscountedPrice,
				Quantity:           l.Quantity,
				LineTotal:          l.Subtotal,
				CreatedAt:          now,
			})
		}
		if err := r.OrderItems().CreateBulk(ctx, orderID, items); err != nil {
			return errDB()
		}

		//在庫減算（足りないならトランザクションごと戻す）
		for _, l := range cart.Items {
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, stockTargetOf(l.ProductID, l.VariantID), l.Quantity)
			if err != nil {
				return errDB()
			}
			if !ok {
				return errInsufficientStock(lineName(l), currentStock(ctx, r, l))
			}
		}

		if err := r.CartItems().DeleteByOwner(ctx, owner); err != nil {
			return errDB()
		}

		ev, err := newOrderEvent(model.EventOrderConfirmed, orderID, orderNumber, now)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "internal error")
		}
		if err := r.Outbox().Create(ctx, ev); err != nil {
			return errDB()
		}
		return nil
	})
	if err != nil {
		if he, ok := AsHTTPError(err); ok && he.Code == CodeInsufficientStock {
			u.log.Warn().Str("order_number", orderNumber).Msg("checkout lost stock race")
		}
		return CheckoutOutput{}, err
	}

	u.log.Info().
		Str("order_number", orderNumber).
		Str("payment_method", string(method)).
		Str("total", totals.Total.StringFixed(2)).
		Msg("order created")

	out := CheckoutOutput{
		OrderID:         orderID,
		OrderNumber:     orderNumber,
		Amount:          totals.Total,
		AmountMinor:     model.ToMinorUnits(totals.Total),
		Currency:        u.cfg.Currency,
		RazorpayOrderID: gatewayOrderID,
	}
	if gatewayOrderID != nil {
		out.RazorpayKeyID = u.cfg.RazorpayKeyID
	}
	return out, nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64, page int, limit int) (OrderListOutput, error) {
	if userID <= 0 {
		return OrderListOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if page < 1 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if limit < 1 || limit > 100 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	orders, total, err := u.orders.ListByUserID(ctx, userID, page, limit)
	if err != nil {
		return OrderListOutput{}, errDB()
	}
	return OrderListOutput{Items: orders, Total: total, Page: page, Limit: limit}, nil
}

// 注文詳細。本人の注文か、注文時のメールアドレスが一致するときだけ返す。
func (u *OrderUsecase) GetOrder(ctx context.Context, userID int64, email string, orderNumber string) (model.OrderWithItems, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return model.OrderWithItems{}, NewHTTPError(http.StatusBadRequest, "invalid order number")
	}
	if userID <= 0 && strings.TrimSpace(email) == "" {
		return model.OrderWithItems{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	o, err := u.orders.FindByOrderNumber(ctx, orderNumber)
	if errors.Is(err, repo.ErrNotFound) {
		return model.OrderWithItems{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.OrderWithItems{}, errDB()
	}

	owned := userID > 0 && o.UserID != nil && *o.UserID == userID
	if !owned && !strings.EqualFold(strings.TrimSpace(email), o.CustomerEmail) {
		//他人の注文は「存在しない扱い」にする
		return model.OrderWithItems{}, NewHTTPError(http.StatusNotFound, "not found")
	}

	items, err := u.items.ListByOrderID(ctx, o.ID)
	if err != nil {
		return model.OrderWithItems{}, errDB()
	}
	return model.OrderWithItems{Order: o, Items: items}, nil
}

func lineName(l CartLineOutput) string {
	if l.VariantName != "" {
		return l.Name + " (" + l.VariantName + ")"
	}
	return l.Name
}

// エラーメッセージ用。読めなければ0
func currentStock(ctx context.Context, r repo.TxRepos, l CartLineOutput) int64 {
	if l.VariantID != nil {
		v, err := r.Variants().FindByID(ctx, *l.VariantID)
		if err != nil {
			return 0
		}
		return v.StockQuantity
	}
	p, err := r.Products().FindByID(ctx, l.ProductID)
	if err != nil {
		return 0
	}
	return p.StockQuantity
}
