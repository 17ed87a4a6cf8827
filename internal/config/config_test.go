package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 実行環境の変数に影響されないように全キーを消す（終了時に戻る）
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("POSTGRES_PASSWORD", "pw")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "INR", cfg.Currency)
	assert.True(t, cfg.ShippingCODFee.Equal(decimal.NewFromInt(49)))
	assert.True(t, cfg.ShippingOnlineFee.IsZero())
	assert.Equal(t, int64(30), cfg.RateLimitRequests)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	assert.Equal(t, 8, cfg.OutboxMaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.OutboxClaimLease)
	assert.Equal(t, "secret", cfg.GuestSessionKey)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.PaymentsEnabled())
	assert.False(t, cfg.IsProd())
	assert.Equal(t, "postgres://postgres:pw@localhost:5432/storefront?sslmode=disable", cfg.DSN())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "postgres://app:pw@db:5432/shop?sslmode=require")
	t.Setenv("CURRENCY", " usd ")
	t.Setenv("SHIPPING_COD_FEE", "59.50")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,,")
	t.Setenv("RAZORPAY_KEY_ID", "rzp_test_key")
	t.Setenv("RAZORPAY_KEY_SECRET", "rzp_secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "USD", cfg.Currency)
	assert.True(t, cfg.ShippingCODFee.Equal(decimal.RequireFromString("59.5")))
	assert.Equal(t, 30*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.PaymentsEnabled())
	assert.Equal(t, "postgres://app:pw@db:5432/shop?sslmode=require", cfg.DSN())
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=from-file\nDATABASE_URL=postgres://x@y/z\nPORT=9090\n"), 0o600))

	// 無いファイルは無視する
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"), path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, "9090", cfg.Port)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "no jwt secret",
			env:  map[string]string{"POSTGRES_PASSWORD": "pw"},
			want: "JWT_SECRET is required",
		},
		{
			name: "no database",
			env:  map[string]string{"JWT_SECRET": "s"},
			want: "DATABASE_URL or POSTGRES_PASSWORD is required",
		},
		{
			name: "negative fee",
			env:  map[string]string{"JWT_SECRET": "s", "POSTGRES_PASSWORD": "pw", "SHIPPING_COD_FEE": "-1"},
			want: "SHIPPING_COD_FEE must be >= 0",
		},
		{
			name: "fee not a number",
			env:  map[string]string{"JWT_SECRET": "s", "POSTGRES_PASSWORD": "pw", "SHIPPING_ONLINE_FEE": "free"},
			want: "SHIPPING_ONLINE_FEE must be number",
		},
		{
			name: "bad currency",
			env:  map[string]string{"JWT_SECRET": "s", "POSTGRES_PASSWORD": "pw", "CURRENCY": "RUPEE"},
			want: "CURRENCY must be a 3-letter code",
		},
		{
			name: "prod needs guest key",
			env:  map[string]string{"JWT_SECRET": "s", "POSTGRES_PASSWORD": "pw", "GO_ENV": "prod"},
			want: "GUEST_SESSION_KEY is required",
		},
		{
			name: "smtp without sender",
			env:  map[string]string{"JWT_SECRET": "s", "POSTGRES_PASSWORD": "pw", "SMTP_HOST": "smtp.example.com"},
			want: "MAIL_FROM is required when SMTP_HOST is set",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
