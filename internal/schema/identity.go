package schema

import (
	"regexp"
	"strings"
	"time"
)

var commonPasswords = map[string]bool{
	"password1!":   true,
	"password123!": true,
	"qwerty123!":   true,
	"welcome123!":  true,
	"admin123!":    true,
}

var usStates = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true,
	"CO": true, "CT": true, "DE": true, "FL": true, "GA": true,
	"HI": true, "ID": true, "IL": true, "IN": true, "IA": true,
	"KS": true, "KY": true, "LA": true, "ME": true, "MD": true,
	"MA": true, "MI": true, "MN": true, "MS": true, "MO": true,
	"MT": true, "NE": true, "NV": true, "NH": true, "NJ": true,
	"NM": true, "NY": true, "NC": true, "ND": true, "OH": true,
	"OK": true, "OR": true, "PA": true, "RI": true, "SC": true,
	"SD": true, "TN": true, "TX": true, "UT": true, "VT": true,
	"VA": true, "WA": true, "WV": true, "WI": true, "WY": true,
}

var (
	emailRegex  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRegex  = regexp.MustCompile(`^[2-9]\d{2}[2-9]\d{2}\d{4}$`)
	ssnRegex    = regexp.MustCompile(`^\d{9}$`)
	zipRegex    = regexp.MustCompile(`^\d{5}$`)
	letterRegex = regexp.MustCompile(`^[A-Za-z]{2}$`)
)

// ValidateEmail trims and lowercases the address, then checks its shape.
// A ".con" suffix is treated as a typo for ".com" rather than a valid TLD.
// Returns the normalized address on success.
func ValidateEmail(raw string) (string, FieldErrors) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if !emailRegex.MatchString(email) {
		return "", FieldErrors{}.add("email", "Invalid email address")
	}
	if strings.HasSuffix(email, ".con") {
		return "", FieldErrors{}.add("email", "Email domain looks incorrect. Did you mean '.com'?")
	}
	return email, nil
}

// ValidatePassword reports every violated rule simultaneously.
func ValidatePassword(password string) FieldErrors {
	var errs FieldErrors

	if len(password) < 8 {
		errs = errs.add("password", "Password must be at least 8 characters long")
	}
	if !strings.ContainsFunc(password, func(r rune) bool { return r >= 'A' && r <= 'Z' }) {
		errs = errs.add("password", "Password must contain at least one uppercase letter")
	}
	if !strings.ContainsFunc(password, func(r rune) bool { return r >= 'a' && r <= 'z' }) {
		errs = errs.add("password", "Password must contain at least one lowercase letter")
	}
	if !strings.ContainsFunc(password, func(r rune) bool { return r >= '0' && r <= '9' }) {
		errs = errs.add("password", "Password must contain at least one number")
	}
	hasSpecial := strings.ContainsFunc(password, func(r rune) bool {
		return !(r >= 'A' && r <= 'Z') && !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	if !hasSpecial {
		errs = errs.add("password", "Password must contain at least one special character")
	}
	if commonPasswords[strings.ToLower(password)] {
		errs = errs.add("password", "Password is too common")
	}

	return errs
}

// ValidateDateOfBirth parses a YYYY-MM-DD date and requires the holder to be
// at least 18 years old as of today. The reference time is injected so tests
// can pin it.
func ValidateDateOfBirth(raw string, today time.Time) FieldErrors {
	parts := strings.Split(raw, "-")
	if len(parts) != 3 {
		return FieldErrors{}.add("dateOfBirth", "Invalid date of birth")
	}

	year, okY := parseInt(parts[0])
	month, okM := parseInt(parts[1])
	day, okD := parseInt(parts[2])
	if !okY || !okM || !okD || year == 0 || month == 0 || day == 0 {
		return FieldErrors{}.add("dateOfBirth", "Invalid date of birth")
	}

	// time.Date normalizes out-of-range components (month 13 becomes January
	// of the next year); re-deriving and comparing catches impossible dates.
	dob := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if dob.Year() != year || dob.Month() != time.Month(month) || dob.Day() != day {
		return FieldErrors{}.add("dateOfBirth", "Invalid date of birth")
	}

	todayDate := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if dob.After(todayDate) {
		return FieldErrors{}.add("dateOfBirth", "Date of birth cannot be in the future")
	}

	age := todayDate.Year() - dob.Year()
	if todayDate.Month() < dob.Month() ||
		(todayDate.Month() == dob.Month() && todayDate.Day() < dob.Day()) {
		age--
	}
	if age < 18 {
		return FieldErrors{}.add("dateOfBirth", "You must be at least 18 years old")
	}

	return nil
}

// ValidatePhone enforces NANP digit patterns: the area code and exchange
// must each start with 2-9.
func ValidatePhone(phone string) FieldErrors {
	if !phoneRegex.MatchString(phone) {
		return FieldErrors{}.add("phoneNumber", "Phone number must follow NXX-NXX-XXXX format")
	}
	return nil
}

func ValidateSSN(ssn string) FieldErrors {
	if !ssnRegex.MatchString(ssn) {
		return FieldErrors{}.add("ssn", "SSN must be 9 digits")
	}
	return nil
}

// ValidateState normalizes to uppercase and requires one of the 50 US state
// postal codes. Returns the normalized code on success.
func ValidateState(raw string) (string, FieldErrors) {
	if !letterRegex.MatchString(raw) {
		return "", FieldErrors{}.add("state", "Invalid state code")
	}
	state := strings.ToUpper(raw)
	if !usStates[state] {
		return "", FieldErrors{}.add("state", "Enter a valid 2-letter state code")
	}
	return state, nil
}

func ValidateZip(zip string) FieldErrors {
	if !zipRegex.MatchString(zip) {
		return FieldErrors{}.add("zipCode", "ZIP code must be 5 digits")
	}
	return nil
}

func parseInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
		n = n*10 + int(s[i]-'0')
	}
	return n, true
}
