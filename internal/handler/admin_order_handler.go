package handler

import (
	"net/http"

	repo "storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminOrderHandler struct {
	orders   *usecase.AdminOrderUsecase
	payments *usecase.PaymentUsecase
}

func NewAdminOrderHandler(orders *usecase.AdminOrderUsecase, payments *usecase.PaymentUsecase) *AdminOrderHandler {
	return &AdminOrderHandler{orders: orders, payments: payments}
}

// PATCH /admin/orders/:id。送られたフィールドだけ変える
type OrderUpdateRequest struct {
	Status        *string `json:"status"`
	PaymentStatus *string `json:"payment_status"`
	TrackingID    *string `json:"tracking_id"`
	TrackingURL   *string `json:"tracking_url"`
	CourierName   *string `json:"courier_name"`
	AdminNotes    *string `json:"admin_notes"`
}

func (h *AdminOrderHandler) RegisterRoutes(e *echo.Echo, mw Middlewares) {
	admin := e.Group("/admin")
	admin.Use(mw.Auth)
	admin.Use(mw.Admin)

	admin.GET("/orders", h.list)
	admin.GET("/orders/:id", h.get)
	admin.PATCH("/orders/:id", h.update)
	admin.POST("/orders/:id/refund", h.refund)
}

func (h *AdminOrderHandler) list(c echo.Context) error {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return badRequest(c, "invalid page")
	}
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return badRequest(c, "invalid limit")
	}
	userID, ok := queryInt64Ptr(c, "user_id")
	if !ok {
		return badRequest(c, "invalid user_id")
	}
	from, ok := queryTimePtr(c, "from")
	if !ok {
		return badRequest(c, "invalid from")
	}
	to, ok := queryTimePtr(c, "to")
	if !ok {
		return badRequest(c, "invalid to")
	}

	out, err := h.orders.List(c.Request().Context(), repo.AdminOrderListFilter{
		Page:          page,
		Limit:         limit,
		Status:        c.QueryParam("status"),
		PaymentStatus: c.QueryParam("payment_status"),
		UserID:        userID,
		Q:             c.QueryParam("q"),
		From:          from,
		To:            to,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.orders.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) update(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req OrderUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	o, err := h.orders.Update(c.Request().Context(), adminID, id, usecase.AdminUpdateOrderInput{
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
		TrackingID:    req.TrackingID,
		TrackingURL:   req.TrackingURL,
		CourierName:   req.CourierName,
		AdminNotes:    req.AdminNotes,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *AdminOrderHandler) refund(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	o, err := h.payments.RefundOrder(c.Request().Context(), adminID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, o)
}
