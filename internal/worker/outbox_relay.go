package worker

import (
	"context"
	"math"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/rs/zerolog"
)

// outboxのイベントを届ける先（メール送信 or Kafka）
type Sink interface {
	Deliver(ctx context.Context, ev model.OutboxEvent) error
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	// 1回の送信に許す時間。過ぎたら他のrelayが拾い直す
	ClaimLease time.Duration
}

const maxBackoff = 10 * time.Minute

// 期限の来たpendingイベントを拾ってSinkに渡す。
// 失敗したら 2^n 秒後に再試行、MaxAttempts回でdead。
type OutboxRelay struct {
	outbox repo.OutboxRepository
	sink   Sink
	cfg    RelayConfig
	now    func() time.Time
	log    zerolog.Logger
}

func NewOutboxRelay(outbox repo.OutboxRepository, sink Sink, cfg RelayConfig, log zerolog.Logger) *OutboxRelay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = 5 * time.Minute
	}
	return &OutboxRelay{outbox: outbox, sink: sink, cfg: cfg, now: time.Now, log: log}
}

// ctxが終わるまでポーリングする
func (r *OutboxRelay) Run(ctx context.Context) error {
	t := time.NewTicker(r.cfg.PollInterval)
	defer t.Stop()

	r.log.Info().Dur("interval", r.cfg.PollInterval).Msg("outbox relay started")
	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.log.Error().Err(err).Msg("outbox poll failed")
		}
		select {
		case <-ctx.Done():
			r.log.Info().Msg("outbox relay stopped")
			return nil
		case <-t.C:
		}
	}
}

// 1回分の処理。届けられた件数を返す
func (r *OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	events, err := r.outbox.ClaimDue(ctx, r.now(), r.cfg.ClaimLease, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, ev := range events {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		if err := r.sink.Deliver(ctx, ev); err != nil {
			r.fail(ctx, ev, err)
			continue
		}
		if err := r.outbox.MarkDone(ctx, ev.ID); err != nil {
			// 次のポーリングでもう一度送られる
			r.log.Error().Err(err).Str("event_id", ev.ID).Msg("outbox mark done failed")
			continue
		}
		delivered++
	}
	return delivered, nil
}

func (r *OutboxRelay) fail(ctx context.Context, ev model.OutboxEvent, cause error) {
	attempts := ev.Attempts + 1
	dead := attempts >= r.cfg.MaxAttempts
	next := r.now().Add(Backoff(attempts))

	lg := r.log.Warn()
	if dead {
		lg = r.log.Error()
	}
	lg.Err(cause).
		Str("event_id", ev.ID).
		Str("event_type", string(ev.EventType)).
		Int64("aggregate_id", ev.AggregateID).
		Int("attempts", attempts).
		Bool("dead", dead).
		Msg("outbox delivery failed")

	if err := r.outbox.MarkFailed(ctx, ev.ID, attempts, next, cause.Error(), dead); err != nil {
		r.log.Error().Err(err).Str("event_id", ev.ID).Msg("outbox mark failed failed")
	}
}

// 2^attempts 秒（上限10分）
func Backoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts >= 10 {
		return maxBackoff
	}
	d := time.Duration(math.Pow(2, float64(attempts))) * time.Second
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
