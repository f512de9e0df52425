package observability

import (
	"testing"

	"utopai/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestNewLogger_DisabledIsNoop(t *testing.T) {
	logger := NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	assert.NotNil(t, logger)

	logger = NewLogger(nil)
	assert.NotNil(t, logger)
}

func TestUserField(t *testing.T) {
	fields := UserField(42)
	assert.Equal(t, map[string]interface{}{"user_id": 42}, fields)
}

func TestUserErrorField(t *testing.T) {
	fields := UserErrorField(7, assert.AnError)
	assert.Equal(t, 7, fields["user_id"])
	assert.Equal(t, assert.AnError.Error(), fields["error"])
}

func TestMergeFields(t *testing.T) {
	merged := mergeFields(
		map[string]interface{}{"a": 1},
		nil,
		map[string]interface{}{"b": 2, "a": 3},
	)
	assert.Equal(t, map[string]interface{}{"a": 3, "b": 2}, merged)

	assert.Empty(t, mergeFields())
	assert.Empty(t, mergeFields(nil))
}
