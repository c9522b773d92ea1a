package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier("s3cret")
	user := uuid.New()

	token, err := v.Issue(user, "ada")
	require.NoError(t, err)

	got, err := v.Principal(token)
	require.NoError(t, err)
	require.Equal(t, user, got)

	id, name, err := v.Identify(token)
	require.NoError(t, err)
	require.Equal(t, user, id)
	require.Equal(t, "ada", name)
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier("s3cret")

	other, err := NewVerifier("different").Issue(uuid.New(), "")
	require.NoError(t, err)
	_, err = v.Principal(other)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Principal("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = v.Principal(signed)
	require.ErrorIs(t, err, ErrInvalidToken)

	badSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: "bob"})
	signed, err = badSubject.SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = v.Principal(signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}
