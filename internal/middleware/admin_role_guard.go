package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

//contextに入っているroleがADMINかどうかを確認します。AuthJWTの後に置く

func AdminRoleGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxUserRoleKey).(string)
			if !ok || role == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized", "UNAUTHORIZED"))
			}

			//ADMINだけ許可（大文字小文字は区別しない）
			if !strings.EqualFold(role, "ADMIN") {
				return c.JSON(http.StatusForbidden, errorJSON("admin only", "FORBIDDEN"))
			}

			return next(c)
		}
	}
}
