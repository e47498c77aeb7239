package schema

import (
	"strings"
	"time"
)

// SignupInput is the full identity payload checked on signup. Validation
// normalizes Email (lowercase) and State (uppercase) in place.
type SignupInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
	DateOfBirth string `json:"dateOfBirth"`
	SSN         string `json:"ssn"`
	Address     string `json:"address"`
	City        string `json:"city"`
	State       string `json:"state"`
	ZipCode     string `json:"zipCode"`
}

// ValidateSignup runs every field validator and accumulates all failures so
// a client can fix the whole form in one round trip.
func ValidateSignup(in *SignupInput, today time.Time) FieldErrors {
	var errs FieldErrors

	email, emailErrs := ValidateEmail(in.Email)
	if len(emailErrs) > 0 {
		errs = append(errs, emailErrs...)
	} else {
		in.Email = email
	}

	errs = append(errs, ValidatePassword(in.Password)...)

	if strings.TrimSpace(in.FirstName) == "" {
		errs = errs.add("firstName", "First name is required")
	}
	if strings.TrimSpace(in.LastName) == "" {
		errs = errs.add("lastName", "Last name is required")
	}

	errs = append(errs, ValidatePhone(in.PhoneNumber)...)
	errs = append(errs, ValidateDateOfBirth(in.DateOfBirth, today)...)
	errs = append(errs, ValidateSSN(in.SSN)...)

	if strings.TrimSpace(in.Address) == "" {
		errs = errs.add("address", "Address is required")
	}
	if strings.TrimSpace(in.City) == "" {
		errs = errs.add("city", "City is required")
	}

	state, stateErrs := ValidateState(in.State)
	if len(stateErrs) > 0 {
		errs = append(errs, stateErrs...)
	} else {
		in.State = state
	}

	errs = append(errs, ValidateZip(in.ZipCode)...)

	return errs
}
