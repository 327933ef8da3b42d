package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer = "rewards-ledger"
	tokenTTL    = 24 * time.Hour
)

var (
	ErrSigningKeyMissing = errors.New("account token signing key not configured")
	ErrInvalidToken      = errors.New("invalid account token")
)

var signingKey []byte

// SetSigningKey sets the HMAC key for account session tokens
func SetSigningKey(secret string) {
	signingKey = []byte(secret)
}

// AccountClaims is the body of an account session token. The account id is
// the subject.
type AccountClaims struct {
	Wallet string `json:"wallet"`
	jwt.RegisteredClaims
}

// AccountID returns the account the token was issued to
func (c *AccountClaims) AccountID() string {
	return c.Subject
}

// IssueAccountToken signs a session token for an account logged in at now
func IssueAccountToken(accountID, wallet string, now time.Time) (string, time.Time, error) {
	if len(signingKey) == 0 {
		return "", time.Time{}, ErrSigningKeyMissing
	}

	expiresAt := now.Add(tokenTTL)
	claims := &AccountClaims{
		Wallet: wallet,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign account token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseAccountToken verifies a session token and returns its claims
func ParseAccountToken(raw string) (*AccountClaims, error) {
	if len(signingKey) == 0 {
		return nil, ErrSigningKeyMissing
	}

	claims := &AccountClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.AccountID() == "" {
		return nil, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return claims, nil
}
