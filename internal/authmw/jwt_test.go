package authmw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("nurse-signing-secret")

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func nurseEcho(got *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = NurseFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestJWT_Subject(t *testing.T) {
	t.Parallel()

	var got string
	h := JWT(testSecret)(nurseEcho(&got))

	tok := sign(t, jwt.SigningMethodHS256, testSecret, &NurseClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "nurse-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	req := httptest.NewRequest(http.MethodGet, "/api/encounters/waiting", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got != "nurse-42" {
		t.Errorf("nurse = %q, want nurse-42", got)
	}
}

func TestJWT_LegacyIDClaim(t *testing.T) {
	t.Parallel()

	var got string
	h := JWT(testSecret)(nurseEcho(&got))

	tok := sign(t, jwt.SigningMethodHS256, testSecret, &NurseClaims{LegacyID: "nurse-7"})
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || got != "nurse-7" {
		t.Errorf("status = %d nurse = %q, want 200 nurse-7", rec.Code, got)
	}
}

func TestJWT_Rejects(t *testing.T) {
	t.Parallel()

	valid := jwt.RegisteredClaims{Subject: "nurse-1"}
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"no bearer prefix", sign(t, jwt.SigningMethodHS256, testSecret, &NurseClaims{RegisteredClaims: valid})},
		{"wrong secret", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("other"), &NurseClaims{RegisteredClaims: valid})},
		{"wrong algorithm", "Bearer " + sign(t, jwt.SigningMethodHS512, testSecret, &NurseClaims{RegisteredClaims: valid})},
		{"expired", "Bearer " + sign(t, jwt.SigningMethodHS256, testSecret, &NurseClaims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "nurse-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}})},
		{"no subject", "Bearer " + sign(t, jwt.SigningMethodHS256, testSecret, &NurseClaims{})},
		{"garbage", "Bearer not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			called := false
			h := JWT(testSecret)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
			if called {
				t.Error("inner handler should not be called")
			}
		})
	}
}

func TestNurseFromContext_Empty(t *testing.T) {
	t.Parallel()

	if got := NurseFromContext(context.Background()); got != "" {
		t.Errorf("NurseFromContext = %q, want empty", got)
	}
	if got := NurseFromContext(WithNurse(context.Background(), "n1")); got != "n1" {
		t.Errorf("NurseFromContext = %q, want n1", got)
	}
}
