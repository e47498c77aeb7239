package models

import "time"

// User is the identity record created on signup. Password and SSN hold
// one-way hashes and are never serialized into API responses.
type User struct {
	ID          int       `json:"id" db:"id"`
	Email       string    `json:"email" db:"email"` // unique, lowercase-normalized
	Password    string    `json:"-" db:"password"`
	FirstName   string    `json:"firstName" db:"first_name"`
	LastName    string    `json:"lastName" db:"last_name"`
	PhoneNumber string    `json:"phoneNumber" db:"phone_number"`
	DateOfBirth string    `json:"dateOfBirth" db:"date_of_birth"`
	SSN         string    `json:"-" db:"ssn"`
	Address     string    `json:"address" db:"address"`
	City        string    `json:"city" db:"city"`
	State       string    `json:"state" db:"state"`
	ZipCode     string    `json:"zipCode" db:"zip_code"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}
