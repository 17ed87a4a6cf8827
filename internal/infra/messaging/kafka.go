package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"storefront/internal/domain/model"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// kafkaに流すときの形
type envelope struct {
	ID          string                `json:"id"`
	EventType   model.OutboxEventType `json:"event_type"`
	AggregateID int64                 `json:"aggregate_id"`
	Payload     json.RawMessage       `json:"payload"`
	CreatedAt   time.Time             `json:"created_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// outboxのイベントをKafkaへ書く（relayのSink）
type KafkaSink struct {
	writer messageWriter
}

func NewKafkaSink(cfg KafkaConfig) *KafkaSink {
	return &KafkaSink{writer: &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

func (s *KafkaSink) Deliver(ctx context.Context, ev model.OutboxEvent) error {
	payload := json.RawMessage(ev.Payload)
	if !json.Valid(payload) {
		return fmt.Errorf("event %s has invalid payload", ev.ID)
	}
	value, err := json.Marshal(envelope{
		ID:          ev.ID,
		EventType:   ev.EventType,
		AggregateID: ev.AggregateID,
		Payload:     payload,
		CreatedAt:   ev.CreatedAt,
	})
	if err != nil {
		return err
	}

	// 同じ注文のイベントは同じパーティションへ
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.AggregateID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.EventType)},
		},
	})
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// 受け取ったイベントの処理（worker.NotificationDispatcher）
type Handler interface {
	Deliver(ctx context.Context, ev model.OutboxEvent) error
}

// トピックを読んでHandlerに渡す。
// 失敗は数回やり直し、それでもダメならログに残してコミットする（パーティションを止めない）
type KafkaConsumer struct {
	reader   messageReader
	handler  Handler
	attempts int
	backoff  time.Duration
	log      zerolog.Logger
}

func NewKafkaConsumer(cfg KafkaConfig, handler Handler, log zerolog.Logger) *KafkaConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
	return &KafkaConsumer{reader: r, handler: handler, attempts: 3, backoff: time.Second, log: log}
}

func (c *KafkaConsumer) Run(ctx context.Context) error {
	c.log.Info().Msg("kafka consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.log.Info().Msg("kafka consumer stopped")
				return nil
			}
			return fmt.Errorf("kafka fetch: %w", err)
		}

		if err := c.handle(ctx, msg); err != nil {
			c.log.Error().Err(err).
				Str("topic", msg.Topic).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("kafka message dropped")
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			return fmt.Errorf("kafka commit: %w", err)
		}
	}
}

func (c *KafkaConsumer) handle(ctx context.Context, msg kafka.Message) error {
	var env envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	ev := model.OutboxEvent{
		ID:          env.ID,
		EventType:   env.EventType,
		AggregateID: env.AggregateID,
		Payload:     string(env.Payload),
		CreatedAt:   env.CreatedAt,
	}

	var err error
	for i := 0; i < c.attempts; i++ {
		if err = c.handler.Deliver(ctx, ev); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff * time.Duration(i+1)):
		}
	}
	return err
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
