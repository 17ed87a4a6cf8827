package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/rs/zerolog"
)

// 決済の結果を注文の payment_status に反映する。
type PaymentUsecase struct {
	tx       repo.TransactionManager
	orders   repo.OrderRepository
	gateway  PaymentGateway
	verifier SignatureVerifier
	clock    Clock
	log      zerolog.Logger
}

func NewPaymentUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	gateway PaymentGateway,
	verifier SignatureVerifier,
	log zerolog.Logger,
) *PaymentUsecase {
	return &PaymentUsecase{
		tx:       tx,
		orders:   orders,
		gateway:  gateway,
		verifier: verifier,
		clock:    SystemClock(),
		log:      log,
	}
}

type VerifyPaymentInput struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

// 署名が合わなければ何も変えない。同じpayment_idで2回呼ばれても結果は同じ。
func (u *PaymentUsecase) VerifyPayment(ctx context.Context, in VerifyPaymentInput) (model.Order, error) {
	orderID := strings.TrimSpace(in.RazorpayOrderID)
	paymentID := strings.TrimSpace(in.RazorpayPaymentID)
	sig := strings.TrimSpace(in.RazorpaySignature)
	if orderID == "" || paymentID == "" || sig == "" {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "razorpay_order_id, razorpay_payment_id and razorpay_signature are required")
	}

	if !u.verifier.Verify(orderID, paymentID, sig) {
		u.log.Warn().Str("razorpay_order_id", orderID).Str("razorpay_payment_id", paymentID).Msg("payment signature mismatch")
		return model.Order{}, newCodedError(http.StatusBadRequest, CodeInvalidSignature, "payment verification failed, please contact support")
	}

	o, err := u.orders.FindByRazorpayOrderID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, NewHTTPError(http.StatusNotFound, "order not found")
	}
	if err != nil {
		return model.Order{}, errDB()
	}

	switch o.PaymentStatus {
	case model.PaymentStatusPaid:
		if o.RazorpayPaymentID != nil && *o.RazorpayPaymentID == paymentID {
			return o, nil
		}
		return model.Order{}, NewHTTPError(http.StatusConflict, "order is already paid")
	case model.PaymentStatusRefunded:
		return model.Order{}, newCodedError(http.StatusConflict, CodeAlreadyRefunded, "order is already refunded")
	}

	paid := model.PaymentStatusPaid
	ok, err := u.orders.UpdateIfPaymentStatus(ctx, o.ID,
		[]model.PaymentStatus{model.PaymentStatusPending, model.PaymentStatusFailed},
		repo.OrderPatch{PaymentStatus: &paid, RazorpayPaymentID: &paymentID},
	)
	if err != nil {
		return model.Order{}, errDB()
	}
	if !ok {
		//同時に別のコールバックが通った。同じpayment_idなら成功扱い
		cur, err := u.orders.FindByID(ctx, o.ID)
		if err != nil {
			return model.Order{}, errDB()
		}
		if cur.PaymentStatus == model.PaymentStatusPaid && cur.RazorpayPaymentID != nil && *cur.RazorpayPaymentID == paymentID {
			return cur, nil
		}
		return model.Order{}, NewHTTPError(http.StatusConflict, "payment status changed, please retry")
	}

	u.log.Info().Str("order_number", o.OrderNumber).Str("razorpay_payment_id", paymentID).Msg("payment verified")

	o.PaymentStatus = paid
	o.RazorpayPaymentID = &paymentID
	return o, nil
}

type PaymentFailureInput struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	Reason            string `json:"reason"`
}

// 決済失敗の通知。pendingのときだけfailedにする（後から成功すればpaidに上書きされる）
func (u *PaymentUsecase) ReportPaymentFailure(ctx context.Context, in PaymentFailureInput) error {
	orderID := strings.TrimSpace(in.RazorpayOrderID)
	if orderID == "" {
		return NewHTTPError(http.StatusBadRequest, "razorpay_order_id is required")
	}

	o, err := u.orders.FindByRazorpayOrderID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "order not found")
	}
	if err != nil {
		return errDB()
	}

	failed := model.PaymentStatusFailed
	changed, err := u.orders.UpdateIfPaymentStatus(ctx, o.ID,
		[]model.PaymentStatus{model.PaymentStatusPending},
		repo.OrderPatch{PaymentStatus: &failed},
	)
	if err != nil {
		return errDB()
	}
	if changed {
		u.log.Warn().
			Str("order_number", o.OrderNumber).
			Str("razorpay_payment_id", in.RazorpayPaymentID).
			Str("reason", in.Reason).
			Msg("payment failed")
	}
	return nil
}

// 返金。paidのときだけ。ゲートウェイで返金できたら refunded/cancelled にして在庫を戻す。
func (u *PaymentUsecase) RefundOrder(ctx context.Context, actorAdminUserID int64, orderID int64) (model.Order, error) {
	if actorAdminUserID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.Order{}, errDB()
	}

	switch {
	case o.PaymentStatus == model.PaymentStatusRefunded:
		return model.Order{}, newCodedError(http.StatusConflict, CodeAlreadyRefunded, "order is already refunded")
	case o.PaymentStatus != model.PaymentStatusPaid:
		return model.Order{}, newCodedError(http.StatusConflict, CodeNotPaid, "only paid orders can be refunded")
	case o.RazorpayPaymentID == nil || *o.RazorpayPaymentID == "":
		return model.Order{}, newCodedError(http.StatusConflict, CodeMissingPaymentID, "no gateway payment id on record for this order")
	}

	refundID, err := u.gateway.Refund(ctx, *o.RazorpayPaymentID, model.ToMinorUnits(o.TotalAmount), map[string]string{
		"order_number": o.OrderNumber,
	})
	if err != nil {
		u.log.Error().Err(err).Str("order_number", o.OrderNumber).Msg("gateway refund failed")
		return model.Order{}, newCodedError(http.StatusBadGateway, CodePaymentGateway, "refund could not be processed by the payment gateway")
	}

	refunded := model.PaymentStatusRefunded
	cancelled := model.OrderStatusCancelled
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Orders().UpdateIfPaymentStatus(ctx, o.ID,
			[]model.PaymentStatus{model.PaymentStatusPaid},
			repo.OrderPatch{PaymentStatus: &refunded, Status: &cancelled},
		)
		if err != nil {
			return errDB()
		}
		if !ok {
			return newCodedError(http.StatusConflict, CodeAlreadyRefunded, "order is already refunded")
		}

		//在庫戻し（減算の逆）
		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return errDB()
		}
		for _, it := range items {
			if err := r.Inventory().IncreaseStock(ctx, stockTargetOf(it.ProductID, it.VariantID), it.Quantity); err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					//バリアントが削除済みなど。戻し先が無いので記録だけ
					u.log.Error().Str("order_number", o.OrderNumber).Int64("product_id", it.ProductID).Msg("restock target missing")
					continue
				}
				return errDB()
			}
		}

		before, _ := json.Marshal(map[string]string{"status": string(o.Status), "payment_status": string(o.PaymentStatus)})
		after, _ := json.Marshal(map[string]string{"status": string(cancelled), "payment_status": string(refunded), "refund_id": refundID})
		return createAudit(ctx, r, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionRefundOrder,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   o.ID,
			BeforeJSON:   string(before),
			AfterJSON:    string(after),
			CreatedAt:    u.clock.Now(),
		})
	})
	if err != nil {
		//ゲートウェイでは返金済み。手で照合できるように残す
		u.log.Error().Err(err).Str("order_number", o.OrderNumber).Str("refund_id", refundID).Msg("refund succeeded at gateway but order update failed")
		return model.Order{}, err
	}

	u.log.Info().Str("order_number", o.OrderNumber).Str("refund_id", refundID).Msg("order refunded")

	o.PaymentStatus = refunded
	o.Status = cancelled
	o.UpdatedAt = u.clock.Now()
	return o, nil
}

func createAudit(ctx context.Context, r repo.TxRepos, log model.AuditLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	if err := r.AuditLogs().Create(ctx, log); err != nil {
		return errDB()
	}
	return nil
}
