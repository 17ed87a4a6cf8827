package server

import (
	"net/http"

	"storefront/internal/handler"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type Handlers struct {
	Products      *handler.ProductHandler
	AdminProducts *handler.AdminProductHandler
	Cart          *handler.CartHandler
	Orders        *handler.OrderHandler
	Payments      *handler.PaymentHandler
	AdminOrders   *handler.AdminOrderHandler
	Reports       *handler.ReportHandler
}

func RegisterRoutes(e *echo.Echo, db *gorm.DB, h Handlers, mw handler.Middlewares) {
	e.GET("/healthz", healthz(db))

	h.Products.RegisterRoutes(e, mw)
	h.Cart.RegisterRoutes(e, mw)
	h.Orders.RegisterRoutes(e, mw)
	h.Payments.RegisterRoutes(e, mw)
	h.AdminProducts.RegisterRoutes(e, mw)
	h.AdminOrders.RegisterRoutes(e, mw)
	h.Reports.RegisterRoutes(e, mw)
}

// DBに届くかだけ見る
func healthz(db *gorm.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request().Context())
		}
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "db unavailable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}
