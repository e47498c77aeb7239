package cards

import (
	"strings"
	"unicode"
)

// Network identifies the card network a number belongs to, derived from its
// BIN range. NetworkNone covers anything outside the four supported ranges,
// including Luhn-valid numbers on unlisted networks (JCB, UnionPay, ...).
type Network string

const (
	NetworkNone       Network = "none"
	NetworkVisa       Network = "visa"
	NetworkMastercard Network = "mastercard"
	NetworkAmex       Network = "amex"
	NetworkDiscover   Network = "discover"
)

// DetectNetwork classifies a card number by its BIN range. Whitespace of any
// kind and hyphens are tolerated as separators; any other character makes
// the input unclassifiable. Classification is independent of Luhn validity.
func DetectNetwork(s string) Network {
	cleaned := strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	if len(cleaned) < 13 || len(cleaned) > 19 {
		return NetworkNone
	}
	for i := 0; i < len(cleaned); i++ {
		if cleaned[i] < '0' || cleaned[i] > '9' {
			return NetworkNone
		}
	}

	n := len(cleaned)

	if cleaned[0] == '4' && (n == 13 || n == 16 || n == 19) {
		return NetworkVisa
	}

	if n == 16 {
		if cleaned[0] == '5' && cleaned[1] >= '1' && cleaned[1] <= '5' {
			return NetworkMastercard
		}
		// Mastercard 2-series: 4-digit prefixes 2221 through 2720.
		prefix := prefixValue(cleaned, 4)
		if prefix >= 2221 && prefix <= 2720 {
			return NetworkMastercard
		}
	}

	if n == 15 && cleaned[0] == '3' && (cleaned[1] == '4' || cleaned[1] == '7') {
		return NetworkAmex
	}

	if n == 16 {
		if strings.HasPrefix(cleaned, "6011") {
			return NetworkDiscover
		}
		if strings.HasPrefix(cleaned, "65") {
			return NetworkDiscover
		}
		p := prefixValue(cleaned, 3)
		if p >= 644 && p <= 649 {
			return NetworkDiscover
		}
	}

	return NetworkNone
}

func prefixValue(digits string, n int) int {
	v := 0
	for i := 0; i < n; i++ {
		v = v*10 + int(digits[i]-'0')
	}
	return v
}
