package auth

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/mr-tron/base58"

	"rewards-ledger/internal/stellar"
)

// LoginWindow is how far a signed login message may be from server time
const LoginWindow = 5 * time.Minute

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrStaleLogin       = errors.New("login message expired")
)

// LoginMessage is the text a wallet signs to log in
func LoginMessage(walletAddress string, issuedAt int64) string {
	return fmt.Sprintf("Sign this message to log in to Stellar Rewards\nWallet: %s\nIssued: %d", walletAddress, issuedAt)
}

// DecodeSignature accepts the encodings produced by common Stellar wallets:
// base64 (Freighter), hex, and base58.
func DecodeSignature(sig string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(sig); err == nil && len(b) == 64 {
		return b, nil
	}
	if b, err := hex.DecodeString(sig); err == nil && len(b) == 64 {
		return b, nil
	}
	if b, err := base58.Decode(sig); err == nil && len(b) == 64 {
		return b, nil
	}
	return nil, ErrInvalidSignature
}

// VerifyLogin checks a signed login message for walletAddress
func VerifyLogin(walletAddress, signature string, issuedAt int64, now time.Time) error {
	issued := time.Unix(issuedAt, 0)
	if issued.Before(now.Add(-LoginWindow)) || issued.After(now.Add(LoginWindow)) {
		return ErrStaleLogin
	}

	sig, err := DecodeSignature(signature)
	if err != nil {
		return err
	}

	ok, err := stellar.VerifySignature(walletAddress, []byte(LoginMessage(walletAddress, issuedAt)), sig)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidSignature
	}
	return nil
}
