package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

// 管理画面の監査ログ検索。nil・空は絞り込まない
type AuditLogFilter struct {
	ActorUserID *int64
	Actions     []model.AuditAction // どれかに一致
	Resource    *model.AuditResourceType
	ResourceID  *int64
	From        *time.Time // [From, To)
	To          *time.Time
	Limit       int
	Offset      int
}

// 監査ログは追記のみ。更新・削除は持たない
type AuditLogRepository interface {
	Create(ctx context.Context, entry model.AuditLog) error
	// 新しい順の1ページ分と、条件に合う総件数
	Search(ctx context.Context, f AuditLogFilter) ([]model.AuditLog, int64, error)
}
