package cards

// LuhnValid reports whether the digits in s form a valid Luhn checksum.
// Non-digit characters are stripped first. Card numbers outside the
// 13-19 digit range are rejected outright rather than treated as an error.
func LuhnValid(s string) bool {
	digits := stripNonDigits(s)
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}

	return sum%10 == 0
}

func stripNonDigits(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
