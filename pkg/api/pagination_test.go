package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
)

func TestPageParams(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"defaults when absent", "", defaultLimit, 0},
		{"explicit limit and offset", "?limit=10&offset=20", 10, 20},
		{"limit clamped to max", "?limit=10000", maxLimit, 0},
		{"non-numeric limit falls back to default", "?limit=abc", defaultLimit, 0},
		{"negative offset falls back to zero", "?offset=-5", defaultLimit, 0},
		{"zero limit falls back to default", "?limit=0", defaultLimit, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/test"+tt.query, nil)
			c := e.NewContext(req, httptest.NewRecorder())

			limit, offset := pageParams(c)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}
