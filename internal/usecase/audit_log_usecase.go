package usecase

import (
	"context"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// 監査ログの閲覧（GET /admin/audit-logs）
type AuditLogUsecase struct {
	logs repo.AuditLogRepository
}

func NewAuditLogUsecase(logs repo.AuditLogRepository) *AuditLogUsecase {
	return &AuditLogUsecase{logs: logs}
}

type AuditLogQuery struct {
	ActorUserID *int64
	// カンマ区切りで複数可（例: update_order,refund_order）
	Action       string
	ResourceType string
	ResourceID   *int64
	From         *time.Time
	To           *time.Time
	Page         int
	Limit        int
}

type AuditLogPage struct {
	Items []model.AuditLog `json:"items"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

func (u *AuditLogUsecase) List(ctx context.Context, q AuditLogQuery) (AuditLogPage, error) {
	if q.Page < 1 {
		return AuditLogPage{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if q.Limit < 1 || q.Limit > 200 {
		return AuditLogPage{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if q.From != nil && q.To != nil && !q.From.Before(*q.To) {
		return AuditLogPage{}, NewHTTPError(http.StatusBadRequest, "from must be before to")
	}

	f := repo.AuditLogFilter{
		ActorUserID: q.ActorUserID,
		ResourceID:  q.ResourceID,
		From:        q.From,
		To:          q.To,
		Limit:       q.Limit,
		Offset:      (q.Page - 1) * q.Limit,
	}
	for _, a := range strings.Split(q.Action, ",") {
		a = strings.ToUpper(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		action := model.AuditAction(a)
		if !action.Valid() {
			return AuditLogPage{}, NewHTTPError(http.StatusBadRequest, "invalid action")
		}
		f.Actions = append(f.Actions, action)
	}
	if t := strings.ToLower(strings.TrimSpace(q.ResourceType)); t != "" {
		rt := model.AuditResourceType(t)
		if !rt.Valid() {
			return AuditLogPage{}, NewHTTPError(http.StatusBadRequest, "invalid resource_type")
		}
		f.Resource = &rt
	}

	logs, total, err := u.logs.Search(ctx, f)
	if err != nil {
		return AuditLogPage{}, errDB()
	}
	return AuditLogPage{Items: logs, Total: total, Page: q.Page, Limit: q.Limit}, nil
}
