package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"

	"rewards-ledger/internal/models"
)

const referralAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var referralCodeRe = regexp.MustCompile(models.ReferralCodePattern)

// IsValidReferralCode reports whether code has the exact referral code format
func IsValidReferralCode(code string) bool {
	return referralCodeRe.MatchString(code)
}

// GenerateReferralCode returns a random candidate code. Uniqueness is the
// caller's concern: insert it and retry on a unique-constraint conflict.
func GenerateReferralCode() (string, error) {
	max := big.NewInt(int64(len(referralAlphabet)))
	buf := make([]byte, models.ReferralCodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate referral code: %w", err)
		}
		buf[i] = referralAlphabet[n.Int64()]
	}
	return string(buf), nil
}
