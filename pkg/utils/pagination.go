package utils

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// ListParams extracts limit/offset query parameters from a list request.
// The limit falls back to defaultLimit and is clamped to 100; a malformed or
// negative offset is treated as 0.
func ListParams(c echo.Context, defaultLimit int) (limit, offset int) {
	limit = defaultLimit

	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 100 {
		limit = 100
	}

	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return limit, offset
}
