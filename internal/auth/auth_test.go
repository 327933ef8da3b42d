package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rewards-ledger/internal/stellar"
)

func TestIssueAndParseAccountToken(t *testing.T) {
	SetSigningKey("test-secret")
	now := time.Now()

	token, expiresAt, err := IssueAccountToken("account-1", "GWALLET", now)
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(24*time.Hour), expiresAt, time.Second)

	claims, err := ParseAccountToken(token)
	require.NoError(t, err)
	assert.Equal(t, "account-1", claims.AccountID())
	assert.Equal(t, "GWALLET", claims.Wallet)
	assert.Equal(t, "rewards-ledger", claims.Issuer)

	SetSigningKey("other-secret")
	_, err = ParseAccountToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccountTokenRejects(t *testing.T) {
	SetSigningKey("test-secret")

	expired, _, err := IssueAccountToken("account-1", "GWALLET", time.Now().Add(-48*time.Hour))
	require.NoError(t, err)
	_, err = ParseAccountToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	anonymous, _, err := IssueAccountToken("", "GWALLET", time.Now())
	require.NoError(t, err)
	_, err = ParseAccountToken(anonymous)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// same key, foreign issuer
	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &AccountClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "account-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = ParseAccountToken(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	SetSigningKey("")
	_, _, err = IssueAccountToken("account-1", "GWALLET", time.Now())
	assert.ErrorIs(t, err, ErrSigningKeyMissing)
}

func TestRequireAccount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	SetSigningKey("test-secret")
	token, _, err := IssueAccountToken("account-1", "GWALLET", time.Now())
	require.NoError(t, err)

	router := gin.New()
	router.GET("/me", RequireAccount(), func(c *gin.Context) {
		id, ok := AccountID(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": id})
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + token, http.StatusOK},
		{"lowercase scheme", "bearer " + token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Token " + token, http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"garbage", "Bearer abc", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Contains(t, w.Body.String(), "account-1")
			}
		})
	}
}

func TestVerifyLogin(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	wallet, err := stellar.EncodeAccountID(pub)
	require.NoError(t, err)

	now := time.Now()
	issued := now.Unix()
	sig := ed25519.Sign(priv, []byte(LoginMessage(wallet, issued)))

	for name, encoded := range map[string]string{
		"base64": base64.StdEncoding.EncodeToString(sig),
		"hex":    hex.EncodeToString(sig),
		"base58": base58.Encode(sig),
	} {
		assert.NoError(t, VerifyLogin(wallet, encoded, issued, now), name)
	}

	encoded := base64.StdEncoding.EncodeToString(sig)
	assert.ErrorIs(t, VerifyLogin(wallet, encoded, issued+1, now), ErrInvalidSignature)
	assert.ErrorIs(t, VerifyLogin(wallet, encoded, issued, now.Add(10*time.Minute)), ErrStaleLogin)
	assert.ErrorIs(t, VerifyLogin(wallet, "not-a-signature", issued, now), ErrInvalidSignature)

	_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	forged := ed25519.Sign(otherPriv, []byte(LoginMessage(wallet, issued)))
	assert.ErrorIs(t, VerifyLogin(wallet, hex.EncodeToString(forged), issued, now), ErrInvalidSignature)
}
