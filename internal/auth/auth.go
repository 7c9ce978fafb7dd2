// Package auth verifies client credentials and maps them to a user identity.
// Tokens are HS256 JWTs; the subject is the user id.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/ovstage/stagehub/internal/domain"
)

var ErrInvalidCredential = errors.New("invalid credential")

// Claims carried by a stagehub token beyond the registered set.
type Claims struct {
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a token, returning the authenticated user id
// and the token claims. All failures collapse to ErrInvalidCredential; the
// caller does not need to distinguish why a credential is bad.
func (v *Verifier) Verify(token string) (domain.UserID, *Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", nil, ErrInvalidCredential
	}
	return domain.UserID(claims.Subject), claims, nil
}

// Issue mints a token for a user. Used by the dev endpoint and tests.
func (v *Verifier) Issue(userID domain.UserID, displayName string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
