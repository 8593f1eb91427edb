package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/TOMBRITO1979/odowell.pro-sub001/libs/auth"
)

type ctxKey int

const ctxKeyIdentity ctxKey = iota

// Identity is the authenticated caller, extracted from the bearer token.
// Tenancy (ClinicID) always comes from the token, never from the request.
type Identity struct {
	Sub      string
	ClinicID string
	Role     string
}

func identityFromContext(ctx context.Context) Identity {
	v, _ := ctx.Value(ctxKeyIdentity).(Identity)
	return v
}

func requireToken(next http.Handler, secret string, wantPatient bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		claims, err := auth.ParseAndVerifyHS256(token, secret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if claims.Sub == "" || claims.ClinicID == "" {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		isPatient := claims.Role == "patient"
		if isPatient != wantPatient {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}

		ident := Identity{Sub: claims.Sub, ClinicID: claims.ClinicID, Role: claims.Role}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyIdentity, ident)))
	})
}

// RequireStaff guards the internal calendar and settings routes.
func RequireStaff(next http.Handler, secret string) http.Handler {
	return requireToken(next, secret, false)
}

// RequirePatient guards the self-service portal routes.
func RequirePatient(next http.Handler, secret string) http.Handler {
	return requireToken(next, secret, true)
}
