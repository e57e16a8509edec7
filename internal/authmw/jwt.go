package authmw

import (
	"context"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

type nurseKey struct{}

// NurseClaims are the claims carried by a nurse session token. The subject is
// the nurse id. Older tokens put it in "id" instead.
type NurseClaims struct {
	LegacyID string `json:"id,omitempty"`
	jwt.RegisteredClaims
}

// NurseID returns the subject, falling back to the legacy id claim.
func (c *NurseClaims) NurseID() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.LegacyID
}

// JWT returns middleware that requires an HS256 Bearer token signed with
// secret and stores the nurse id in the request context.
func JWT(secret []byte) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearer(r)
			if !ok {
				unauthorized(w, "missing or malformed authorization header")
				return
			}

			claims := &NurseClaims{}
			token, err := parser.ParseWithClaims(raw, claims, keyFunc)
			if err != nil || !token.Valid {
				unauthorized(w, "invalid token")
				return
			}

			nurseID := claims.NurseID()
			if nurseID == "" {
				unauthorized(w, "token has no subject")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithNurse(r.Context(), nurseID)))
		})
	}
}

// WithNurse returns a context carrying nurseID.
func WithNurse(ctx context.Context, nurseID string) context.Context {
	return context.WithValue(ctx, nurseKey{}, nurseID)
}

// NurseFromContext returns the authenticated nurse id, or "" when the request
// was not authenticated.
func NurseFromContext(ctx context.Context) string {
	id, _ := ctx.Value(nurseKey{}).(string)
	return id
}
