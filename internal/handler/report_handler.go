package handler

import (
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /admin/reports
type ReportHandler struct {
	uc *usecase.ReportUsecase
}

func NewReportHandler(uc *usecase.ReportUsecase) *ReportHandler {
	return &ReportHandler{uc: uc}
}

func (h *ReportHandler) RegisterRoutes(e *echo.Echo, mw Middlewares) {
	g := e.Group("/admin/reports")
	g.Use(mw.Auth)
	g.Use(mw.Admin)

	g.GET("/summary", h.summary)
	g.GET("/top-products", h.topProducts)
	g.GET("/daily", h.daily)
}

func rangeFrom(c echo.Context) (usecase.ReportRangeInput, bool) {
	from, ok := queryTimePtr(c, "from")
	if !ok {
		return usecase.ReportRangeInput{}, false
	}
	to, ok := queryTimePtr(c, "to")
	if !ok {
		return usecase.ReportRangeInput{}, false
	}
	return usecase.ReportRangeInput{From: from, To: to}, true
}

func (h *ReportHandler) summary(c echo.Context) error {
	r, ok := rangeFrom(c)
	if !ok {
		return badRequest(c, "invalid from/to")
	}
	out, err := h.uc.Summary(c.Request().Context(), r)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ReportHandler) topProducts(c echo.Context) error {
	r, ok := rangeFrom(c)
	if !ok {
		return badRequest(c, "invalid from/to")
	}
	limit, ok := queryInt(c, "limit", 10)
	if !ok {
		return badRequest(c, "invalid limit")
	}
	out, err := h.uc.TopProducts(c.Request().Context(), r, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": out})
}

func (h *ReportHandler) daily(c echo.Context) error {
	r, ok := rangeFrom(c)
	if !ok {
		return badRequest(c, "invalid from/to")
	}
	out, err := h.uc.Daily(c.Request().Context(), r)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": out})
}
