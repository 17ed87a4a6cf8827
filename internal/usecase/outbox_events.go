package usecase

import (
	"encoding/json"
	"time"

	"storefront/internal/domain/model"

	"github.com/google/uuid"
)

// 通知用のoutboxイベントを作る。保存は呼び出し側のトランザクションで行う
func newOrderEvent(t model.OutboxEventType, orderID int64, orderNumber string, now time.Time) (model.OutboxEvent, error) {
	payload, err := json.Marshal(model.OrderEventPayload{
		OrderID:     orderID,
		OrderNumber: orderNumber,
	})
	if err != nil {
		return model.OutboxEvent{}, err
	}
	return model.OutboxEvent{
		ID:            uuid.NewString(),
		EventType:     t,
		AggregateID:   orderID,
		Payload:       string(payload),
		Status:        model.OutboxStatusPending,
		NextAttemptAt: now,
	}, nil
}
