package models

import "time"

// User is an account row. Password holds the bcrypt hash, never the plain
// password. RefreshToken is the currently valid refresh JWT (empty when the
// user is logged out). Confirmed flips to true exactly once, via the emailed
// confirmation token.
type User struct {
	ID           int64
	Username     string
	Email        string
	Password     string
	CreatedAt    time.Time
	Avatar       string
	RefreshToken string
	Confirmed    bool
}
