package model

import "time"

type OutboxEventType string

const (
	EventOrderConfirmed OutboxEventType = "order.confirmed"
	EventOrderShipped   OutboxEventType = "order.shipped"
)

type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusDone    OutboxStatus = "done"
	OutboxStatusDead    OutboxStatus = "dead"
)

// 業務の更新と同じトランザクションで書く通知イベント。
// relayが拾って配送する（失敗したら next_attempt_at をずらして再試行）。
type OutboxEvent struct {
	ID            string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	EventType     OutboxEventType `gorm:"type:varchar(50);not null" json:"event_type"`
	AggregateID   int64           `gorm:"not null;index" json:"aggregate_id"`
	Payload       string          `gorm:"type:text;not null" json:"payload"`
	Status        OutboxStatus    `gorm:"type:varchar(20);not null;index:idx_outbox_due,priority:1" json:"status"`
	Attempts      int             `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt time.Time       `gorm:"not null;index:idx_outbox_due,priority:2" json:"next_attempt_at"`
	LastError     string          `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt     time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// order.confirmed / order.shipped のペイロード
type OrderEventPayload struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
}
