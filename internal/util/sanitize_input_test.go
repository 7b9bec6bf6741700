package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFourDigitPIN(t *testing.T) {
	cases := map[string]bool{
		"1234":  true,
		"0000":  true,
		"12345": false,
		"123":   false,
		"12a4":  false,
		"":      false,
		" 123":  false,
		"１２３４":  false,
	}
	for input, want := range cases {
		assert.Equal(t, want, IsFourDigitPIN(input), "input %q", input)
	}
}

func TestSanitizeDeviceName(t *testing.T) {
	assert.Equal(t, "Living Room", SanitizeDeviceName("  Living Room \n"))
	assert.Equal(t, "TV1", SanitizeDeviceName("TV\x001"))
	assert.Equal(t, "", SanitizeDeviceName("   "))

	long := strings.Repeat("Quarto de hóspedes ", 4) + "Living Room TV"
	assert.Equal(t, long, SanitizeDeviceName(long))
}
