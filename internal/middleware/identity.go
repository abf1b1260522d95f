package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
)

// UserID returns the authenticated user id, or false for anonymous callers.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxUserID).(uint64)
	return id, ok && id != 0
}

// Role returns the role claim of the authenticated user, or "" when absent.
func Role(c echo.Context) model.Role {
	r, _ := c.Get(ctxRole).(string)
	return model.Role(r)
}

// userKey identifies the caller for rate limiting.
func userKey(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
