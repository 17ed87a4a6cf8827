package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/infra/cache"
	"storefront/internal/infra/db"
	"storefront/internal/infra/mail"
	"storefront/internal/infra/messaging"
	"storefront/internal/infra/payment"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/middleware"
	"storefront/internal/server"
	"storefront/internal/usecase"
	"storefront/internal/validator"
	"storefront/internal/worker"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load(".env", "../.env")
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("load config")
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.IsProd() {
		return zerolog.New(os.Stdout).With().Timestamp().Str("service", "storefront").Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	//DB接続
	gormDB, err := db.Connect(db.Options{DSN: cfg.DSN(), Debug: cfg.LogLevel == "debug"})
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB, cfg.DSN(), cfg.Migrations); err != nil {
		return err
	}

	//Repository（GORM実装）生成
	txm := infraRepo.NewTxManagerGorm(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	categoryRepo := infraRepo.NewCategoryGormRepository(gormDB)
	variantRepo := infraRepo.NewVariantGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	orderItemRepo := infraRepo.NewOrderItemGormRepository(gormDB)
	outboxRepo := infraRepo.NewOutboxGormRepository(gormDB)
	counterRepo := infraRepo.NewCounterGormRepository(gormDB)
	reportRepo := infraRepo.NewReportGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)

	//外部サービス
	var gateway usecase.PaymentGateway = payment.DisabledGateway{}
	if cfg.PaymentsEnabled() {
		gateway = payment.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	} else {
		log.Warn().Msg("razorpay keys not set, online payments disabled")
	}
	verifier := payment.NewHMACVerifier(cfg.RazorpayKeySecret)
	inputValidator := validator.NewInputValidator()

	//Usecase生成
	productUC := usecase.NewProductUsecase(txm, productRepo, variantRepo, categoryRepo, inputValidator, log)
	variantUC := usecase.NewVariantUsecase(txm, inputValidator, log)
	auditUC := usecase.NewAuditLogUsecase(auditRepo)
	cartUC := usecase.NewCartUsecase(txm, cartRepo, productRepo, variantRepo, log)
	orderUC := usecase.NewOrderUsecase(usecase.OrderDeps{
		Tx:         txm,
		CartItems:  cartRepo,
		Products:   productRepo,
		Variants:   variantRepo,
		Orders:     orderRepo,
		OrderItems: orderItemRepo,
		Counters:   counterRepo,
		Gateway:    gateway,
		Validator:  inputValidator,
	}, usecase.CheckoutConfig{
		Currency:          cfg.Currency,
		CODShippingFee:    cfg.ShippingCODFee,
		OnlineShippingFee: cfg.ShippingOnlineFee,
		RazorpayKeyID:     cfg.RazorpayKeyID,
	}, log)
	paymentUC := usecase.NewPaymentUsecase(txm, orderRepo, gateway, verifier, log)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, nil, log)
	reportUC := usecase.NewReportUsecase(reportRepo, nil)

	//ミドルウェア
	guest := middleware.NewGuestSession(cfg.GuestSessionKey, cfg.CookieSecure)
	var limiter middleware.RateLimiter
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, 0)
		if err != nil {
			//起動は続ける（制限なし）
			log.Warn().Err(err).Msg("redis unavailable, rate limiting disabled")
		} else {
			defer rdb.Close()
			limiter = newLimiter(rdb, cfg)
		}
	}
	mw := handler.Middlewares{
		Auth:         middleware.AuthJWT(cfg.JWTSecret),
		OptionalAuth: middleware.OptionalAuthJWT(cfg.JWTSecret),
		Admin:        middleware.AdminRoleGuard(),
		Guest:        guest.Middleware(),
		RateLimit: func(group string) echo.MiddlewareFunc {
			return middleware.RateLimit(limiter, group, log)
		},
	}

	//Handler生成
	e := server.New(log)
	server.RegisterRoutes(e, gormDB, server.Handlers{
		Products:      handler.NewProductHandler(productUC),
		AdminProducts: handler.NewAdminProductHandler(productUC, variantUC, auditUC),
		Cart:          handler.NewCartHandler(cartUC, guest),
		Orders:        handler.NewOrderHandler(orderUC),
		Payments:      handler.NewPaymentHandler(paymentUC),
		AdminOrders:   handler.NewAdminOrderHandler(adminOrderUC, paymentUC),
		Reports:       handler.NewReportHandler(reportUC),
	}, mw)

	//通知（outbox → メール or Kafka）
	var notifier worker.Notifier = mail.NewLogNotifier(log)
	if cfg.SMTPHost != "" {
		notifier = mail.NewSMTPNotifier(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	}
	dispatcher := worker.NewNotificationDispatcher(orderRepo, orderItemRepo, notifier, log)
	relayCfg := worker.RelayConfig{
		PollInterval: cfg.OutboxPollInterval,
		MaxAttempts:  cfg.OutboxMaxAttempts,
		ClaimLease:   cfg.OutboxClaimLease,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx, e, ":"+cfg.Port, log)
	})

	if len(cfg.KafkaBrokers) > 0 {
		kcfg := messaging.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic, GroupID: cfg.KafkaGroupID}
		sink := messaging.NewKafkaSink(kcfg)
		consumer := messaging.NewKafkaConsumer(kcfg, dispatcher, log)
		relay := worker.NewOutboxRelay(outboxRepo, sink, relayCfg, log)
		g.Go(func() error {
			defer sink.Close()
			return relay.Run(gctx)
		})
		g.Go(func() error {
			defer consumer.Close()
			return consumer.Run(gctx)
		})
	} else {
		relay := worker.NewOutboxRelay(outboxRepo, dispatcher, relayCfg, log)
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}

	return g.Wait()
}

func newLimiter(rdb *redis.Client, cfg config.Config) middleware.RateLimiter {
	return cache.NewFixedWindowLimiter(rdb, cfg.RateLimitRequests, cfg.RateLimitWindow)
}
