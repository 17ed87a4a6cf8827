package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Configはアプリ全体の設定
type Config struct {
	Port     string `mapstructure:"PORT"`      // サーバーポート（8080）
	GoEnv    string `mapstructure:"GO_ENV"`    // dev/prod
	LogLevel string `mapstructure:"LOG_LEVEL"` // debug/info/warn/error

	DatabaseURL      string `mapstructure:"DATABASE_URL"` // あれば最優先
	PostgresUser     string `mapstructure:"POSTGRES_USER"`
	PostgresPassword string `mapstructure:"POSTGRES_PASSWORD"`
	PostgresDB       string `mapstructure:"POSTGRES_DB"`
	PostgresHost     string `mapstructure:"POSTGRES_HOST"`
	PostgresPort     int    `mapstructure:"POSTGRES_PORT"`
	PostgresSSLMode  string `mapstructure:"POSTGRES_SSLMODE"`
	Migrations       bool   `mapstructure:"MIGRATIONS"` // trueならSQLマイグレーション、falseならAutoMigrate

	JWTSecret       string `mapstructure:"JWT_SECRET"`        // 外部認証基盤と共有
	GuestSessionKey string `mapstructure:"GUEST_SESSION_KEY"` // ゲストcookieのハッシュ鍵
	CookieSecure    bool   `mapstructure:"COOKIE_SECURE"`

	Currency          string          `mapstructure:"CURRENCY"`
	ShippingCODFeeRaw string          `mapstructure:"SHIPPING_COD_FEE"`
	ShippingOnlineRaw string          `mapstructure:"SHIPPING_ONLINE_FEE"`
	ShippingCODFee    decimal.Decimal `mapstructure:"-"`
	ShippingOnlineFee decimal.Decimal `mapstructure:"-"`

	RazorpayKeyID     string `mapstructure:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret string `mapstructure:"RAZORPAY_KEY_SECRET"`

	RedisAddr         string        `mapstructure:"REDIS_ADDR"` // 空ならレート制限なし
	RedisPassword     string        `mapstructure:"REDIS_PASSWORD"`
	RateLimitRequests int64         `mapstructure:"RATE_LIMIT_REQUESTS"`
	RateLimitWindow   time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`

	SMTPHost     string `mapstructure:"SMTP_HOST"` // 空ならメールはログだけ
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	MailFrom     string `mapstructure:"MAIL_FROM"`

	KafkaBrokersRaw string   `mapstructure:"KAFKA_BROKERS"` // 空ならrelayが直接メールを送る
	KafkaBrokers    []string `mapstructure:"-"`
	KafkaTopic      string   `mapstructure:"KAFKA_TOPIC"`
	KafkaGroupID    string   `mapstructure:"KAFKA_GROUP"`

	OutboxPollInterval time.Duration `mapstructure:"OUTBOX_POLL_INTERVAL"`
	OutboxMaxAttempts  int           `mapstructure:"OUTBOX_MAX_ATTEMPTS"`
	OutboxClaimLease   time.Duration `mapstructure:"OUTBOX_CLAIM_LEASE"`
}

var keys = []string{
	"PORT", "GO_ENV", "LOG_LEVEL",
	"DATABASE_URL", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB", "POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_SSLMODE", "MIGRATIONS",
	"JWT_SECRET", "GUEST_SESSION_KEY", "COOKIE_SECURE",
	"CURRENCY", "SHIPPING_COD_FEE", "SHIPPING_ONLINE_FEE",
	"RAZORPAY_KEY_ID", "RAZORPAY_KEY_SECRET",
	"REDIS_ADDR", "REDIS_PASSWORD", "RATE_LIMIT_REQUESTS", "RATE_LIMIT_WINDOW",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "MAIL_FROM",
	"KAFKA_BROKERS", "KAFKA_TOPIC", "KAFKA_GROUP",
	"OUTBOX_POLL_INTERVAL", "OUTBOX_MAX_ATTEMPTS", "OUTBOX_CLAIM_LEASE",
}

// Loadは .env（あれば）と環境変数から読む。環境変数が優先
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		//無くてもよい
		_ = godotenv.Load(f)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	//AutomaticEnvだけだとUnmarshalで拾えないのでキーを登録しておく
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config unmarshal: %w", err)
	}
	if err := cfg.finish(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("GO_ENV", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_DB", "storefront")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("MIGRATIONS", false)
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("CURRENCY", "INR")
	v.SetDefault("SHIPPING_COD_FEE", "49")
	v.SetDefault("SHIPPING_ONLINE_FEE", "0")
	v.SetDefault("RATE_LIMIT_REQUESTS", 30)
	v.SetDefault("RATE_LIMIT_WINDOW", time.Minute)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("KAFKA_TOPIC", "storefront.orders")
	v.SetDefault("KAFKA_GROUP", "storefront-notifier")
	v.SetDefault("OUTBOX_POLL_INTERVAL", 2*time.Second)
	v.SetDefault("OUTBOX_MAX_ATTEMPTS", 8)
	v.SetDefault("OUTBOX_CLAIM_LEASE", 5*time.Minute)
}

func (c *Config) finish() error {
	//必須チェック
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.GuestSessionKey == "" {
		if c.IsProd() {
			return fmt.Errorf("GUEST_SESSION_KEY is required")
		}
		c.GuestSessionKey = c.JWTSecret
	}
	if c.DatabaseURL == "" && c.PostgresPassword == "" {
		return fmt.Errorf("DATABASE_URL or POSTGRES_PASSWORD is required")
	}

	var err error
	if c.ShippingCODFee, err = parseFee("SHIPPING_COD_FEE", c.ShippingCODFeeRaw); err != nil {
		return err
	}
	if c.ShippingOnlineFee, err = parseFee("SHIPPING_ONLINE_FEE", c.ShippingOnlineRaw); err != nil {
		return err
	}

	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
	if len(c.Currency) != 3 {
		return fmt.Errorf("CURRENCY must be a 3-letter code")
	}
	if c.RateLimitRequests < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be >= 1")
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.OutboxMaxAttempts < 1 {
		return fmt.Errorf("OUTBOX_MAX_ATTEMPTS must be >= 1")
	}
	if c.OutboxClaimLease <= 0 {
		return fmt.Errorf("OUTBOX_CLAIM_LEASE must be > 0")
	}
	if c.SMTPHost != "" && c.MailFrom == "" {
		return fmt.Errorf("MAIL_FROM is required when SMTP_HOST is set")
	}

	c.KafkaBrokers = nil
	for _, b := range strings.Split(c.KafkaBrokersRaw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			c.KafkaBrokers = append(c.KafkaBrokers, b)
		}
	}
	return nil
}

func parseFee(key, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be number: %w", key, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must be >= 0", key)
	}
	return d, nil
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod" || c.GoEnv == "production"
}

func (c Config) PaymentsEnabled() bool {
	return c.RazorpayKeyID != "" && c.RazorpayKeySecret != ""
}

// golang-migrateでも使えるURL形式
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:     fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:     "/" + c.PostgresDB,
		RawQuery: "sslmode=" + url.QueryEscape(c.PostgresSSLMode),
	}
	return u.String()
}
