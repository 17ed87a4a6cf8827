package db

import (
	"fmt"
	"time"

	"storefront/internal/domain/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Options struct {
	DSN   string
	Debug bool // SQLをログに出す
}

// Connect はDBに接続して *gorm.DB を返す。起動直後はDBが未準備のことがあるので数回やり直す
func Connect(opt Options) (*gorm.DB, error) {
	level := logger.Warn
	if opt.Debug {
		level = logger.Info
	}
	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	}

	var (
		gdb *gorm.DB
		err error
	)
	for i := 0; i < 5; i++ {
		gdb, err = gorm.Open(postgres.Open(opt.DSN), cfg)
		if err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return gdb, nil
}

// 全テーブル（AutoMigrate用・テスト用）
func Models() []interface{} {
	return []interface{}{
		&model.Category{},
		&model.Product{},
		&model.Variant{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.InventoryAdjustment{},
		&model.AuditLog{},
		&model.OutboxEvent{},
		&model.Counter{},
	}
}
