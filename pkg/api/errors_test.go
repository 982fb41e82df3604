package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEnvelope(t *testing.T) {
	env := newEnvelope("rate_limit_error", "too many requests")
	assert.Equal(t, "rate_limit_error", env.Error.Type)
	assert.Equal(t, "too many requests", env.Error.Message)
}
