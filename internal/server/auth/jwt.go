// Package auth issues and validates the HS256 JWTs used by the service.
// Three token kinds share one claims shape and are told apart by Scope:
// short-lived access tokens, long-lived refresh tokens, and the tokens
// embedded in email-confirmation links.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"contactbook/internal/common"
)

// Token scopes.
const (
	ScopeAccess  = "access"
	ScopeRefresh = "refresh"
	ScopeEmail   = "email"
)

// Claims carries the registered claims plus the user identity and the
// token's scope.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Scope  string `json:"scope"`
}

// GenerateToken mints a signed token for the user with the given scope and
// validity duration.
func GenerateToken(userID int64, email, scope string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   email,
		},
		UserID: userID,
		Email:  email,
		Scope:  scope,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken validates the signature and expiry and returns the claims.
// Expired tokens yield common.ErrTokenExpired; anything else invalid yields
// common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, common.ErrInvalidToken
		}
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// ParseScopedToken is ParseToken plus a scope check: a syntactically valid
// token presented in the wrong place (e.g. a refresh token on an access
// endpoint) is rejected as invalid.
func ParseScopedToken(tokenString, scope string, secretKey []byte) (*Claims, error) {
	claims, err := ParseToken(tokenString, secretKey)
	if err != nil {
		return nil, err
	}
	if claims.Scope != scope {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}
