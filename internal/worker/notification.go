package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/rs/zerolog"
)

// 注文メールの送信（infra/mail が実装）
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, o model.OrderWithItems) error
	SendOrderShipped(ctx context.Context, o model.Order) error
}

// イベントの種類ごとにメールを送る。Sinkとしてそのまま使える
type NotificationDispatcher struct {
	orders   repo.OrderRepository
	items    repo.OrderItemRepository
	notifier Notifier
	log      zerolog.Logger
}

func NewNotificationDispatcher(orders repo.OrderRepository, items repo.OrderItemRepository, notifier Notifier, log zerolog.Logger) *NotificationDispatcher {
	return &NotificationDispatcher{orders: orders, items: items, notifier: notifier, log: log}
}

func (d *NotificationDispatcher) Deliver(ctx context.Context, ev model.OutboxEvent) error {
	var p model.OrderEventPayload
	if err := json.Unmarshal([]byte(ev.Payload), &p); err != nil {
		return fmt.Errorf("decode payload of %s: %w", ev.ID, err)
	}

	o, err := d.orders.FindByID(ctx, p.OrderID)
	if err != nil {
		return fmt.Errorf("load order %d: %w", p.OrderID, err)
	}

	switch ev.EventType {
	case model.EventOrderConfirmed:
		items, err := d.items.ListByOrderID(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("load items of order %d: %w", o.ID, err)
		}
		return d.notifier.SendOrderConfirmation(ctx, model.OrderWithItems{Order: o, Items: items})
	case model.EventOrderShipped:
		return d.notifier.SendOrderShipped(ctx, o)
	default:
		// 知らない種類は再試行しても無駄なので捨てる
		d.log.Warn().Str("event_id", ev.ID).Str("event_type", string(ev.EventType)).Msg("unknown outbox event type")
		return nil
	}
}
