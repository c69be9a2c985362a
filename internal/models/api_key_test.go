package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "****", MaskKey(""))
	assert.Equal(t, "****", MaskKey("abcd"))
	assert.Equal(t, "****cdef", MaskKey("live_abcdef"))

	k := &UserKey{APIKey: "key-123456"}
	assert.Equal(t, "****3456", k.MaskedKey())
}
