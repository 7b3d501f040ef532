package attribution

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultCallbackTokenTTL bounds how long a rendered fallback fragment may
// post its click id.
const DefaultCallbackTokenTTL = 30 * time.Minute

const callbackAudience = "impact-clickid"

// ErrInvalidCallbackToken is returned for tokens that are malformed, expired
// or not signed with the current key.
var ErrInvalidCallbackToken = errors.New("invalid callback token")

// CallbackSigner binds the click id callback to the customer the fallback
// fragment was rendered for.
type CallbackSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewCallbackSigner creates a signer using key. A non-positive ttl selects
// DefaultCallbackTokenTTL.
func NewCallbackSigner(key string, ttl time.Duration) *CallbackSigner {
	if ttl <= 0 {
		ttl = DefaultCallbackTokenTTL
	}
	return &CallbackSigner{key: []byte(key), ttl: ttl, now: time.Now}
}

// Sign issues a token for customerID.
func (s *CallbackSigner) Sign(customerID int64) (string, error) {
	if len(s.key) == 0 {
		return "", errors.New("callback signing key is not configured")
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(customerID, 10),
		Audience:  jwt.ClaimStrings{callbackAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign callback token: %w", err)
	}
	return token, nil
}

// Verify returns the customer id carried by a token issued by Sign.
func (s *CallbackSigner) Verify(token string) (int64, error) {
	if len(s.key) == 0 || token == "" {
		return 0, ErrInvalidCallbackToken
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(callbackAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return 0, ErrInvalidCallbackToken
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidCallbackToken
	}
	return id, nil
}
