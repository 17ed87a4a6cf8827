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
)

type AdminOrderUsecase struct {
	tx    repo.TransactionManager
	clock Clock
	log   zerolog.Logger
}

func NewAdminOrderUsecase(tx repo.TransactionManager, clock Clock, log zerolog.Logger) *AdminOrderUsecase {
	if clock == nil {
		clock = SystemClock()
	}
	return &AdminOrderUsecase{tx: tx, clock: clock, log: log}
}

// PATCH /admin/orders/:id の入力。nilは変更なし
type AdminUpdateOrderInput struct {
	Status        *string
	PaymentStatus *string
	TrackingID    *string
	TrackingURL   *string
	CourierName   *string
	AdminNotes    *string
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) (OrderListOutput, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if f.Status != "" && !model.OrderStatus(f.Status).Valid() {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}
	if f.PaymentStatus != "" && !model.PaymentStatus(f.PaymentStatus).Valid() {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid payment_status")
	}

	var out OrderListOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return errDB()
		}
		out = OrderListOutput{Items: orders, Total: total, Page: f.Page, Limit: f.Limit}
		return nil
	})
	if err != nil {
		return OrderListOutput{}, err
	}
	return out, nil
}

func (u *AdminOrderUsecase) Get(ctx context.Context, orderID int64) (model.OrderWithItems, error) {
	if orderID <= 0 {
		return model.OrderWithItems{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out model.OrderWithItems
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return errDB()
		}
		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return errDB()
		}
		out = model.OrderWithItems{Order: o, Items: items}
		return nil
	})
	if err != nil {
		return model.OrderWithItems{}, err
	}
	return out, nil
}

// 管理者による注文更新。
// 遷移表は持たない（管理者の判断で戻すこともできる）。例外は2つだけ:
//   - 追跡番号を入れたら status は shipped になる
//   - payment_status=refunded は paid からだけ
func (u *AdminOrderUsecase) Update(ctx context.Context, actorAdminUserID int64, orderID int64, in AdminUpdateOrderInput) (model.Order, error) {
	if actorAdminUserID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var patch repo.OrderPatch
	if in.Status != nil {
		s := model.OrderStatus(strings.ToLower(strings.TrimSpace(*in.Status)))
		if !s.Valid() {
			return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid status")
		}
		patch.Status = &s
	}
	if in.PaymentStatus != nil {
		ps := model.PaymentStatus(strings.ToLower(strings.TrimSpace(*in.PaymentStatus)))
		if !ps.Valid() {
			return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid payment_status")
		}
		patch.PaymentStatus = &ps
	}
	patch.TrackingURL = trimmedPtr(in.TrackingURL)
	patch.CourierName = trimmedPtr(in.CourierName)
	patch.AdminNotes = in.AdminNotes
	tracking := trimmedPtr(in.TrackingID)
	if tracking != nil && *tracking != "" {
		patch.TrackingID = tracking
	}
	if patch.Empty() {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "nothing to update")
	}

	var updated model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return errDB()
		}

		if patch.PaymentStatus != nil && *patch.PaymentStatus == model.PaymentStatusRefunded &&
			o.PaymentStatus != model.PaymentStatusPaid && o.PaymentStatus != model.PaymentStatusRefunded {
			return newCodedError(http.StatusConflict, CodeNotPaid, "only paid orders can be marked refunded")
		}

		//追跡番号が新しく入ったら出荷済みにして、出荷メールを積む
		newTracking := patch.TrackingID != nil && (o.TrackingID == nil || *o.TrackingID != *patch.TrackingID)
		//同じ追跡番号の再送なら明示されたstatusをそのまま使う
		if newTracking {
			shipped := model.OrderStatusShipped
			patch.Status = &shipped
			if o.ShippedAt == nil {
				now := u.clock.Now()
				patch.ShippedAt = &now
			}
		}

		if err := r.Orders().Update(ctx, orderID, patch); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "not found")
			}
			return errDB()
		}

		if newTracking {
			ev, err := newOrderEvent(model.EventOrderShipped, o.ID, o.OrderNumber, u.clock.Now())
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "internal error")
			}
			if err := r.Outbox().Create(ctx, ev); err != nil {
				return errDB()
			}
		}

		updated, err = r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return errDB()
		}

		//監査ログ（変更前後）
		return createAudit(ctx, r, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionUpdateOrder,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   orderAuditJSON(o),
			AfterJSON:    orderAuditJSON(updated),
			CreatedAt:    u.clock.Now(),
		})
	})
	if err != nil {
		return model.Order{}, err
	}

	u.log.Info().
		Int64("admin_id", actorAdminUserID).
		Str("order_number", updated.OrderNumber).
		Str("status", string(updated.Status)).
		Str("payment_status", string(updated.PaymentStatus)).
		Msg("order updated by admin")
	return updated, nil
}

type orderAuditState struct {
	Status        model.OrderStatus   `json:"status"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
	CourierName   *string             `json:"courier_name,omitempty"`
	TrackingID    *string             `json:"tracking_id,omitempty"`
	TrackingURL   *string             `json:"tracking_url,omitempty"`
	AdminNotes    string              `json:"admin_notes,omitempty"`
}

func orderAuditJSON(o model.Order) string {
	b, err := json.Marshal(orderAuditState{
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		CourierName:   o.CourierName,
		TrackingID:    o.TrackingID,
		TrackingURL:   o.TrackingURL,
		AdminNotes:    o.AdminNotes,
	})
	if err != nil {
		return "{}"
	}
	return string(b)
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
