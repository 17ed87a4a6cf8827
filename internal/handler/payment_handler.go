package handler

import (
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 決済コールバック（フロントのRazorpay Checkoutから呼ばれる）
type PaymentHandler struct {
	uc *usecase.PaymentUsecase
}

func NewPaymentHandler(uc *usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, mw Middlewares) {
	g := e.Group("/payments")
	g.Use(mw.limit("payments"))

	g.POST("/verify", h.verify)
	g.POST("/failure", h.failure)
}

func (h *PaymentHandler) verify(c echo.Context) error {
	var req usecase.VerifyPaymentInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	o, err := h.uc.VerifyPayment(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":        true,
		"order_number":   o.OrderNumber,
		"payment_status": o.PaymentStatus,
	})
}

func (h *PaymentHandler) failure(c echo.Context) error {
	var req usecase.PaymentFailureInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	if err := h.uc.ReportPaymentFailure(c.Request().Context(), req); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
