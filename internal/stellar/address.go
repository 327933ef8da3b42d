// Package stellar decodes Stellar account addresses and verifies wallet
// signatures used for login.
package stellar

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"
)

var ErrInvalidAddress = errors.New("invalid stellar address")

// DecodeAccountID returns the ed25519 public key encoded in a G... address
func DecodeAccountID(address string) (ed25519.PublicKey, error) {
	raw, err := strkey.Decode(strkey.VersionByteAccountID, address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, ErrInvalidAddress
	}
	return ed25519.PublicKey(raw), nil
}

// EncodeAccountID returns the G... address of an ed25519 public key
func EncodeAccountID(pub ed25519.PublicKey) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	return strkey.Encode(strkey.VersionByteAccountID, pub)
}

// IsValidAddress reports whether address is a well-formed account address
func IsValidAddress(address string) bool {
	_, err := DecodeAccountID(address)
	return err == nil
}

// VerifySignature checks sig over message against the key of address. A
// malformed address is an error; a wrong signature is (false, nil).
func VerifySignature(address string, message, sig []byte) (bool, error) {
	kp, err := keypair.ParseAddress(address)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if err := kp.Verify(message, sig); err != nil {
		if errors.Is(err, keypair.ErrInvalidSignature) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
