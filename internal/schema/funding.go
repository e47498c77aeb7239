package schema

import (
	"github.com/clearledger/backend/internal/cards"
)

// Funding source types accepted by the funding validator.
const (
	FundingTypeCard = "card"
	FundingTypeBank = "bank"
)

// FundingSourceInput is the transient payment instrument attached to a
// deposit. It is validated and then discarded; only its Type survives into
// the transaction description.
type FundingSourceInput struct {
	Type          string `json:"type"`
	AccountNumber string `json:"accountNumber"`
	RoutingNumber string `json:"routingNumber,omitempty"`
}

// ValidateFundingSource checks an instrument against the rules for its
// declared type. Card numbers are validated on length and Luhn checksum
// only: network classification is a client-side nicety, and a Luhn-valid
// number on an unrecognized network is accepted here.
func ValidateFundingSource(in FundingSourceInput) FieldErrors {
	var errs FieldErrors

	switch in.Type {
	case FundingTypeCard:
		digits := digitsOnly(in.AccountNumber)
		if len(digits) < 13 || len(digits) > 19 {
			return errs.add("accountNumber", "Card number is not the right amount of digits.")
		}
		if !cards.LuhnValid(digits) {
			errs = errs.add("accountNumber", "Invalid card number")
		}

	case FundingTypeBank:
		if in.RoutingNumber == "" {
			return errs.add("routingNumber", "Routing number is required for bank transfers")
		}
		if len(digitsOnly(in.RoutingNumber)) != 9 {
			errs = errs.add("routingNumber", "Routing number must be 9 digits")
		}

	default:
		errs = errs.add("type", "Funding type must be card or bank")
	}

	return errs
}

func digitsOnly(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
