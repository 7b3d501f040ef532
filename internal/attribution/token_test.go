package attribution

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackSigner_RoundTrip(t *testing.T) {
	s := NewCallbackSigner("secret", time.Minute)

	token, err := s.Sign(42)
	require.NoError(t, err)

	id, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestCallbackSigner_Rejects(t *testing.T) {
	s := NewCallbackSigner("secret", time.Minute)
	token, err := s.Sign(42)
	require.NoError(t, err)

	other, err := NewCallbackSigner("other", time.Minute).Sign(42)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	forgedClaims, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "7"}).SignedString([]byte("x"))
	require.NoError(t, err)
	tampered := parts[0] + "." + strings.Split(forgedClaims, ".")[1] + "." + parts[2]

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "42",
		Audience:  jwt.ClaimStrings{callbackAudience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"empty":     "",
		"garbage":   "not-a-token",
		"other key": other,
		"tampered":  tampered,
		"unsigned":  unsigned,
	} {
		_, err := s.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidCallbackToken, name)
	}
}

func TestCallbackSigner_Expired(t *testing.T) {
	s := NewCallbackSigner("secret", time.Minute)
	issued := time.Now()
	s.now = func() time.Time { return issued }

	token, err := s.Sign(42)
	require.NoError(t, err)

	s.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = s.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidCallbackToken)
}

func TestCallbackSigner_NoKey(t *testing.T) {
	s := NewCallbackSigner("", 0)

	_, err := s.Sign(1)
	assert.Error(t, err)

	_, err = s.Verify("anything")
	assert.ErrorIs(t, err, ErrInvalidCallbackToken)
}
