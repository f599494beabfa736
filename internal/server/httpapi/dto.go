package httpapi

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"contactbook/internal/server/models"
)

// dateOnly is a JSON date without a time component, "2006-01-02" on the wire.
type dateOnly struct {
	time.Time
}

func (d dateOnly) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(time.DateOnly))
}

func (d *dateOnly) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// UserResponse is the public view of a user row. The password hash and the
// stored refresh token never leave the server.
type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	Avatar    string    `json:"avatar"`
}

func newUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		Avatar:    u.Avatar,
	}
}

// SignupRequest is the body of POST /api/auth/signup.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *SignupRequest) validate() error {
	if r.Username == "" || r.Password == "" {
		return errors.New("username and password are required")
	}
	if !strings.Contains(r.Email, "@") {
		return errors.New("a valid email is required")
	}
	return nil
}

// SignupResponse is the body of a successful signup.
type SignupResponse struct {
	User   UserResponse `json:"user"`
	Detail string       `json:"detail"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a freshly minted token pair.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// EmailRequest is the body of POST /api/auth/request_email.
type EmailRequest struct {
	Email string `json:"email"`
}

// ContactPayload is the body of contact create and update requests.
type ContactPayload struct {
	FirstName      string   `json:"first_name"`
	LastName       string   `json:"last_name"`
	Email          string   `json:"email"`
	PhoneNumber    string   `json:"phone_number"`
	BirthDate      dateOnly `json:"birth_date"`
	AdditionalInfo string   `json:"additional_info"`
}

func (p *ContactPayload) validate() error {
	if p.FirstName == "" || p.LastName == "" {
		return errors.New("first_name and last_name are required")
	}
	if !strings.Contains(p.Email, "@") {
		return errors.New("a valid email is required")
	}
	if p.BirthDate.IsZero() {
		return errors.New("birth_date is required")
	}
	return nil
}

func (p *ContactPayload) toModel(ownerID int64) *models.Contact {
	return &models.Contact{
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Email:          p.Email,
		PhoneNumber:    p.PhoneNumber,
		BirthDate:      p.BirthDate.Time,
		AdditionalInfo: p.AdditionalInfo,
		OwnerID:        ownerID,
	}
}

// ContactResponse is the public view of a contact row.
type ContactResponse struct {
	ID             int64    `json:"id"`
	FirstName      string   `json:"first_name"`
	LastName       string   `json:"last_name"`
	Email          string   `json:"email"`
	PhoneNumber    string   `json:"phone_number"`
	BirthDate      dateOnly `json:"birth_date"`
	AdditionalInfo string   `json:"additional_info"`
	OwnerID        int64    `json:"owner_id"`
}

func newContactResponse(c *models.Contact) ContactResponse {
	return ContactResponse{
		ID:             c.ID,
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		Email:          c.Email,
		PhoneNumber:    c.PhoneNumber,
		BirthDate:      dateOnly{c.BirthDate},
		AdditionalInfo: c.AdditionalInfo,
		OwnerID:        c.OwnerID,
	}
}

func newContactList(contacts []*models.Contact) []ContactResponse {
	out := make([]ContactResponse, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, newContactResponse(c))
	}
	return out
}
