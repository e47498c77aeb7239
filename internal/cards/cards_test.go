package cards

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLuhnValid(t *testing.T) {
	t.Run("valid numbers", func(t *testing.T) {
		valid := []string{
			"4111111111111111",
			"5555555555554444",
			"378282246310005",
			"6011111111111117",
			"3530111333300000",
			"4111 1111 1111 1111",
			"4111-1111-1111-1111",
		}
		for _, num := range valid {
			assert.True(t, LuhnValid(num), "expected %q to be Luhn-valid", num)
		}
	})

	t.Run("last digit tamper fails", func(t *testing.T) {
		assert.False(t, LuhnValid("4111111111111112"))
	})

	t.Run("length bounds", func(t *testing.T) {
		assert.False(t, LuhnValid("411111111111"))          // 12 digits
		assert.False(t, LuhnValid("41111111111111111111")) // 20 digits
		assert.False(t, LuhnValid(""))
	})

	t.Run("non-digits are stripped before validation", func(t *testing.T) {
		assert.True(t, LuhnValid("4111a1111b1111c1111"))
	})
}

func TestDetectNetwork(t *testing.T) {
	tests := []struct {
		name   string
		number string
		want   Network
	}{
		{"visa 16", "4111111111111111", NetworkVisa},
		{"visa 13", "4222222222222", NetworkVisa},
		{"visa 19", "4111111111111111111", NetworkVisa},
		{"mastercard 51", "5105105105105100", NetworkMastercard},
		{"mastercard 55", "5555555555554444", NetworkMastercard},
		{"mastercard 2-series low", "2221000000000009", NetworkMastercard},
		{"mastercard 2-series high", "2720990000000007", NetworkMastercard},
		{"amex 34", "340000000000009", NetworkAmex},
		{"amex 37", "378282246310005", NetworkAmex},
		{"discover 6011", "6011111111111117", NetworkDiscover},
		{"discover 65", "6500000000000002", NetworkDiscover},
		{"discover 644", "6445644564456445", NetworkDiscover},
		{"jcb is unclassified", "3530111333300000", NetworkNone},
		{"2-series out of range", "2121000000000000", NetworkNone},
		{"mastercard wrong length", "51051051051051", NetworkNone},
		{"amex wrong length", "3400000000000000", NetworkNone},
		{"too short", "411111111111", NetworkNone},
		{"with separators", "4111 1111 1111 1111", NetworkVisa},
		{"tab separators", "4111\t1111\t1111\t1111", NetworkVisa},
		{"non-breaking space separators", "4111\u00a01111\u00a01111\u00a01111", NetworkVisa},
		{"letters rejected", "4111a11111111111", NetworkNone},
		{"empty", "", NetworkNone},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectNetwork(tc.number))
		})
	}
}

// Classification and checksum validity are independent properties: a number
// can be Luhn-valid on an unlisted network, or BIN-classifiable with a bad
// check digit.
func TestLuhnAndNetworkAreIndependent(t *testing.T) {
	assert.True(t, LuhnValid("3530111333300000"))
	assert.Equal(t, NetworkNone, DetectNetwork("3530111333300000"))

	assert.False(t, LuhnValid("4111111111111112"))
	assert.Equal(t, NetworkVisa, DetectNetwork("4111111111111112"))
}
