package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carries the principal the token was issued for.
type Claims struct {
	UserID   string `json:"userID"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 tokens minted by the identity service.
type Verifier struct {
	secret []byte
	ttl    time.Duration
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), ttl: 24 * time.Hour}
}

// Issue mints a token for userID. The identity service owns issuance in production;
// this exists for local tooling and tests.
func (v *Verifier) Issue(userID uuid.UUID, username string) (string, error) {
	claims := &Claims{
		UserID:   userID.String(),
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(v.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Verify parses tokenString and returns its claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Principal resolves tokenString to the user ID it identifies.
func (v *Verifier) Principal(tokenString string) (uuid.UUID, error) {
	id, _, err := v.Identify(tokenString)
	return id, err
}

// Identify resolves tokenString to the user ID and display name it carries.
func (v *Verifier) Identify(tokenString string) (uuid.UUID, string, error) {
	claims, err := v.Verify(tokenString)
	if err != nil {
		return uuid.Nil, "", err
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, "", fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return id, claims.Username, nil
}
