package handlers

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rewards-ledger/internal/auth"
	"rewards-ledger/internal/database"
	"rewards-ledger/internal/models"
	"rewards-ledger/internal/repository"
	"rewards-ledger/internal/services"
	"rewards-ledger/internal/stellar"
)

type testServer struct {
	router  *gin.Engine
	store   services.Store
	closeDB func() error
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth.SetSigningKey("test-secret")

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.MigrateModels(db))

	store := services.NewStore(repository.NewRepository(db))
	log := zerolog.Nop()
	accounts := services.NewAccountService(store, "testnet", log)
	referrals := services.NewReferralService(store, nil, services.ReferralConfig{MaxAttempts: 3, AttemptTimeout: 5 * time.Second}, log)
	points := services.NewPointsService(store, 3, log)
	demos := services.NewDemoService(store, 3, log)

	router := gin.New()
	RegisterRoutes(router, &Handlers{
		Auth:     NewAuthHandler(accounts, referrals, log),
		Account:  NewAccountHandler(accounts),
		Referral: NewReferralHandler(referrals),
		Points:   NewPointsHandler(points),
		Demo:     NewDemoHandler(demos),
	})
	return &testServer{router: router, store: store, closeDB: sqlDB.Close}
}

func (s *testServer) account(t *testing.T, id, code string) (*models.Account, string) {
	t.Helper()
	acct := &models.Account{ID: id, WalletAddress: "WALLET-" + id, ReferralCode: code, Level: 1, Active: true}
	require.NoError(t, s.store.CreateAccount(context.Background(), acct))
	token, _, err := auth.IssueAccountToken(acct.ID, acct.WalletAddress, time.Now())
	require.NoError(t, err)
	return acct, token
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestApplyReferralCodeEndpoint(t *testing.T) {
	srv := setupTestServer(t)
	srv.account(t, "account-a", "AAAA1111")
	_, tokenB := srv.account(t, "account-b", "BBBB2222")

	w, body := srv.do(t, http.MethodPost, "/api/referral/apply", tokenB, gin.H{"code": "AAAA1111"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(50), body["bonusEarned"])
	assert.Equal(t, "AAAA1111", body["referralCode"])
	assert.NotEmpty(t, body["referrerName"])

	// a duplicate click is a neutral outcome
	w, body = srv.do(t, http.MethodPost, "/api/referral/apply", tokenB, gin.H{"code": "AAAA1111"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "AlreadyReferred", body["errorKind"])

	w, body = srv.do(t, http.MethodGet, "/api/referral/status", tokenB, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "activated", data["status"])

	w, body = srv.do(t, http.MethodGet, "/api/points/reconcile", tokenB, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	data = body["data"].(map[string]interface{})
	assert.Equal(t, true, data["consistent"])
	assert.Equal(t, float64(50), data["ledger_sum"])
}

func TestApplyReferralCodeEndpointErrors(t *testing.T) {
	srv := setupTestServer(t)
	_, tokenA := srv.account(t, "account-a", "AAAA1111")

	tests := []struct {
		code   string
		status int
		kind   string
	}{
		{"short", http.StatusBadRequest, "InvalidFormat"},
		{"ZZZZ9999", http.StatusNotFound, "CodeNotFound"},
		{"AAAA1111", http.StatusBadRequest, "SelfReferral"},
	}
	for _, tt := range tests {
		w, body := srv.do(t, http.MethodPost, "/api/referral/apply", tokenA, gin.H{"code": tt.code})
		assert.Equal(t, tt.status, w.Code, tt.code)
		assert.Equal(t, false, body["success"], tt.code)
		assert.Equal(t, tt.kind, body["errorKind"], tt.code)
		assert.NotEmpty(t, body["message"], tt.code)
	}

	w, _ := srv.do(t, http.MethodPost, "/api/referral/apply", tokenA, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = srv.do(t, http.MethodPost, "/api/referral/apply", "", gin.H{"code": "AAAA1111"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReferralStatsEndpoints(t *testing.T) {
	srv := setupTestServer(t)
	_, tokenA := srv.account(t, "account-a", "AAAA1111")
	_, tokenB := srv.account(t, "account-b", "BBBB2222")

	w, _ := srv.do(t, http.MethodPost, "/api/referral/apply", tokenB, gin.H{"code": "AAAA1111"})
	require.Equal(t, http.StatusOK, w.Code)

	w, body := srv.do(t, http.MethodGet, "/api/referral/stats", tokenA, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["referrals_count"])
	assert.Equal(t, float64(50), data["total_referral_points"])

	w, body = srv.do(t, http.MethodGet, "/api/referral/referrals", tokenA, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["count"])

	w, body = srv.do(t, http.MethodGet, "/api/referral/code", tokenA, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "AAAA1111", body["data"].(map[string]interface{})["code"])

	w, body = srv.do(t, http.MethodGet, "/api/points/transactions", tokenA, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["count"])
}

func TestDemoEndpoints(t *testing.T) {
	srv := setupTestServer(t)
	_, token := srv.account(t, "account-a", "AAAA1111")

	w, _ := srv.do(t, http.MethodPost, "/api/demos/first-payment/start", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = srv.do(t, http.MethodPost, "/api/demos/wallet-connect/start", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, body := srv.do(t, http.MethodPost, "/api/demos/wallet-connect/complete", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(10), body["data"].(map[string]interface{})["amount"])

	w, _ = srv.do(t, http.MethodPost, "/api/demos/wallet-connect/complete", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = srv.do(t, http.MethodPost, "/api/demos/nope/start", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = srv.do(t, http.MethodGet, "/api/account/profile", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(10), body["data"].(map[string]interface{})["total_points"])
}

func TestWalletLoginWithReferral(t *testing.T) {
	srv := setupTestServer(t)
	srv.account(t, "account-a", "AAAA1111")

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	wallet, err := stellar.EncodeAccountID(pub)
	require.NoError(t, err)
	issued := time.Now().Unix()
	sig := ed25519.Sign(priv, []byte(auth.LoginMessage(wallet, issued)))

	w, body := srv.do(t, http.MethodPost, "/auth/wallet", "", gin.H{
		"wallet_address": wallet,
		"signature":      base64.StdEncoding.EncodeToString(sig),
		"issued_at":      issued,
		"referral_code":  "AAAA1111",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, body["created"])
	referral := body["referral"].(map[string]interface{})
	assert.Equal(t, true, referral["success"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, float64(50), user["total_points"])

	token := body["token"].(string)
	w, body = srv.do(t, http.MethodGet, "/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, wallet, body["user"].(map[string]interface{})["wallet_address"])

	w, _ = srv.do(t, http.MethodPost, "/auth/wallet", "", gin.H{
		"wallet_address": wallet,
		"signature":      base64.StdEncoding.EncodeToString(sig),
		"issued_at":      issued + 1,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetReferralStatusErrors(t *testing.T) {
	srv := setupTestServer(t)
	_, token := srv.account(t, "account-a", "AAAA1111")

	w, body := srv.do(t, http.MethodGet, "/api/referral/status", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "pending", data["status"])

	ghost, _, err := auth.IssueAccountToken("account-missing", "WALLET-missing", time.Now())
	require.NoError(t, err)
	w, _ = srv.do(t, http.MethodGet, "/api/referral/status", ghost, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// a store failure is not a missing account
	require.NoError(t, srv.closeDB())
	w, body = srv.do(t, http.MethodGet, "/api/referral/status", token, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to get referral status", body["error"])
}
