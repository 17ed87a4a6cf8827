package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strconv"

	"storefront/internal/domain/model"

	"github.com/jordan-wright/email"
	"github.com/rs/zerolog"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// 注文メールをSMTPで送る
type SMTPNotifier struct {
	from string
	send func(e *email.Email) error
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPNotifier{
		from: cfg.From,
		send: func(e *email.Email) error { return e.Send(addr, auth) },
	}
}

func (n *SMTPNotifier) SendOrderConfirmation(ctx context.Context, o model.OrderWithItems) error {
	body, err := RenderOrderConfirmation(o)
	if err != nil {
		return err
	}
	return n.deliver(ctx, o.CustomerEmail, fmt.Sprintf("Order confirmed: %s", o.OrderNumber), body)
}

func (n *SMTPNotifier) SendOrderShipped(ctx context.Context, o model.Order) error {
	body, err := RenderOrderShipped(o)
	if err != nil {
		return err
	}
	return n.deliver(ctx, o.CustomerEmail, fmt.Sprintf("Your order %s has shipped", o.OrderNumber), body)
}

func (n *SMTPNotifier) deliver(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := email.NewEmail()
	e.From = n.from
	e.To = []string{to}
	e.Subject = subject
	e.HTML = []byte(html)
	if err := n.send(e); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// SMTP未設定の環境用。送ったことだけログに残す
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendOrderConfirmation(_ context.Context, o model.OrderWithItems) error {
	n.log.Info().Str("to", o.CustomerEmail).Str("order_number", o.OrderNumber).Int("items", len(o.Items)).Msg("order confirmation (smtp disabled)")
	return nil
}

func (n *LogNotifier) SendOrderShipped(_ context.Context, o model.Order) error {
	n.log.Info().Str("to", o.CustomerEmail).Str("order_number", o.OrderNumber).Msg("order shipped (smtp disabled)")
	return nil
}
