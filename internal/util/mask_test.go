package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "+91******3210", MaskPhone("+919876543210"))
	assert.Equal(t, "******3210", MaskPhone("9876543210"))
	assert.Equal(t, "***", MaskPhone("123"))
	assert.Equal(t, "", MaskPhone("  "))
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "w…@h….edu", MaskEmail("Warden@hostel.edu"))
	assert.Equal(t, "***", MaskEmail("abc"))
}
