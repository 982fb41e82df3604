package api

import (
	"strconv"

	echo "github.com/labstack/echo/v5"
)

// defaultLimit/maxLimit bound every listing endpoint's page size so a
// dashboard client can never force a full-table scan by omitting limit,
// per §4.H's pagination requirement.
const (
	defaultLimit = 50
	maxLimit     = 500
)

// pageParams parses limit/offset query params with defaults and bounds.
func pageParams(c *echo.Context) (limit, offset int) {
	limit = defaultLimit
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset = 0
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
