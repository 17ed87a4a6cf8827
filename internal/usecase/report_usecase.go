package usecase

import (
	"context"
	"net/http"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

const (
	defaultReportDays = 30
	maxReportDays     = 366
)

// 管理画面の売上レポート（読み取りだけ）
type ReportUsecase struct {
	reports repo.ReportRepository
	clock   Clock
}

func NewReportUsecase(reports repo.ReportRepository, clock Clock) *ReportUsecase {
	if clock == nil {
		clock = SystemClock()
	}
	return &ReportUsecase{reports: reports, clock: clock}
}

// 期間の指定。nilなら直近30日
type ReportRangeInput struct {
	From *time.Time
	To   *time.Time
}

func (u *ReportUsecase) resolve(in ReportRangeInput) (repo.ReportFilter, error) {
	to := u.clock.Now()
	if in.To != nil {
		to = *in.To
	}
	from := to.AddDate(0, 0, -defaultReportDays)
	if in.From != nil {
		from = *in.From
	}
	if !from.Before(to) {
		return repo.ReportFilter{}, NewHTTPError(http.StatusBadRequest, "from must be before to")
	}
	if to.Sub(from) > maxReportDays*24*time.Hour {
		return repo.ReportFilter{}, NewHTTPError(http.StatusBadRequest, "range too long")
	}
	return repo.ReportFilter{From: from.UTC(), To: to.UTC()}, nil
}

func (u *ReportUsecase) Summary(ctx context.Context, in ReportRangeInput) (model.SalesSummary, error) {
	f, err := u.resolve(in)
	if err != nil {
		return model.SalesSummary{}, err
	}
	s, err := u.reports.Summary(ctx, f)
	if err != nil {
		return model.SalesSummary{}, errDB()
	}
	return s, nil
}

func (u *ReportUsecase) TopProducts(ctx context.Context, in ReportRangeInput, limit int) ([]model.ProductSales, error) {
	if limit == 0 {
		limit = 10
	}
	if limit < 1 || limit > 100 {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	f, err := u.resolve(in)
	if err != nil {
		return nil, err
	}
	rows, err := u.reports.TopProducts(ctx, f, limit)
	if err != nil {
		return nil, errDB()
	}
	return rows, nil
}

func (u *ReportUsecase) Daily(ctx context.Context, in ReportRangeInput) ([]model.DailySales, error) {
	f, err := u.resolve(in)
	if err != nil {
		return nil, err
	}
	rows, err := u.reports.Daily(ctx, f)
	if err != nil {
		return nil, errDB()
	}
	return rows, nil
}
