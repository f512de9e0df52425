package contextutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidUsername(t *testing.T) {
	assert.True(t, IsValidUsername("emma_10"))
	assert.True(t, IsValidUsername("abc"))
	assert.False(t, IsValidUsername("ab"))
	assert.False(t, IsValidUsername("har mellemrum"))
	assert.False(t, IsValidUsername("æble"))
	assert.False(t, IsValidUsername(""))
}

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("far@example.com"))
	assert.False(t, IsValidEmail("ikke-en-email"))
	assert.False(t, IsValidEmail(""))
}
