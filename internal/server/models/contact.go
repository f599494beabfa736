package models

import "time"

// Contact belongs to exactly one user and is never visible to others.
// The email is unique per owner, not globally. Only the month and day of
// BirthDate are meaningful for the birthday window; the year may be a
// placeholder.
type Contact struct {
	ID             int64
	FirstName      string
	LastName       string
	Email          string
	PhoneNumber    string
	BirthDate      time.Time
	AdditionalInfo string
	OwnerID        int64
}
