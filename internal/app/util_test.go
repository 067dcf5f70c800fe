package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortID(t *testing.T) {
	assert.Equal(t, "short", shortID("short"))
	assert.Equal(t, "12345678901234", shortID("12345678901234"))
	assert.Equal(t, "1A1zP1…vfNa", shortID("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"))
}
