package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperatorToken_RoundTrip(t *testing.T) {
	token, err := IssueOperatorToken("secret", "alice", RoleAdmin, time.Hour)
	require.NoError(t, err)

	claims, err := ParseOperatorToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestParseOperatorToken_Rejects(t *testing.T) {
	valid, err := IssueOperatorToken("secret", "alice", RoleOperator, time.Hour)
	require.NoError(t, err)
	expired, err := IssueOperatorToken("secret", "alice", RoleOperator, -time.Minute)
	require.NoError(t, err)
	viewer, err := IssueOperatorToken("secret", "alice", "viewer", time.Hour)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, OperatorClaims{
		Role:             RoleOperator,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong secret", "other", valid},
		{"expired", "secret", expired},
		{"role not allowed", "secret", viewer},
		{"no expiry", "secret", noExpiry},
		{"garbage", "secret", "not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOperatorToken(tt.secret, tt.token)
			assert.Error(t, err)
		})
	}
}

func TestOperatorAuth(t *testing.T) {
	var operator string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operator = GetOperator(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	token, err := IssueOperatorToken("secret", "alice", RoleOperator, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name         string
		secret       string
		header       string
		wantStatus   int
		wantOperator string
	}{
		{"open without secret", "", "", http.StatusNoContent, ""},
		{"missing header", "secret", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "secret", "Basic " + token, http.StatusUnauthorized, ""},
		{"bad token", "secret", "Bearer nope", http.StatusUnauthorized, ""},
		{"valid token", "secret", "Bearer " + token, http.StatusNoContent, "alice"},
		{"lowercase scheme", "secret", "bearer " + token, http.StatusNoContent, "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			operator = ""
			req := httptest.NewRequest(http.MethodPost, "/api/v1/queue", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			OperatorAuth(tt.secret)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOperator, operator)
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/queue", nil)
		req.Header.Set("Origin", "https://ops.example")
		rec := httptest.NewRecorder()

		CORSMiddleware([]string{"https://ops.example"})(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://ops.example", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/queue", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()

		CORSMiddleware([]string{"https://ops.example"})(next).ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/queue", nil)
		req.Header.Set("Origin", "https://any.example")
		rec := httptest.NewRecorder()

		CORSMiddleware([]string{"*"})(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://any.example", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	})
}
