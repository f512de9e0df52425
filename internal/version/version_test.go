package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersion_Variables(t *testing.T) {
	assert.NotEmpty(t, Version)
	assert.NotEmpty(t, Commit)
	assert.NotEmpty(t, BuildTime)
}

func TestVersion_DefaultValues(t *testing.T) {
	// Defaults before ldflags substitution at build time
	assert.Equal(t, "dev", Version)
	assert.Equal(t, "dev", Commit)
	assert.Equal(t, "unknown", BuildTime)
}
