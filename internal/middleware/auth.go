package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mreed/campuslink/internal/auth"
	"github.com/mreed/campuslink/internal/session"
	"github.com/mreed/campuslink/internal/store"
	"github.com/mreed/campuslink/internal/token"
)

// RequireAuth is the per-request access gate. In order: exempt-path
// bypass, bearer extraction, access-token verification with silent
// rotation on expiry, then the merged revocation/role check against the
// session store. Requests that clear the gate carry the caller's
// identity in their context.
func RequireAuth(manager *session.Manager, sessions *store.SessionStore, codec *token.Codec, apiBase string, logger *slog.Logger) func(http.Handler) http.Handler {
	exempt := exemptPaths(apiBase)
	verifyTokenPath := apiBase + "/verify-token"
	adminPrefix := strings.ToLower(apiBase + "/admin/")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			isVerifyRoute := r.URL.Path == verifyTokenPath || r.URL.Path == verifyTokenPath+"/"

			raw, ok := bearerToken(r)
			if !ok {
				if isVerifyRoute {
					// the introspection route answers with a boolean
					// instead of rejecting
					next.ServeHTTP(w, r)
					return
				}
				unauthorized(w, "missing or malformed authorization header")
				return
			}

			claims, err := codec.VerifyAccess(raw)
			switch {
			case err == nil:
				// token is good as-is
			case token.IsExpired(err):
				// expiry is the one recoverable failure: rotate and
				// carry on with the fresh token, advertising it back
				// to the client
				newToken, rerr := manager.Rotate(raw)
				if rerr != nil {
					logger.Debug("token rotation failed", "error", rerr)
					unauthorized(w, rerr.Error())
					return
				}
				raw = newToken
				w.Header().Set("Authorization", "Bearer "+newToken)
				r.Header.Set("Authorization", "Bearer "+newToken)
				claims, err = codec.VerifyAccess(newToken)
				if err != nil {
					unauthorized(w, "invalid token")
					return
				}
			default:
				// bad signature or malformed: hard reject, never rotate
				unauthorized(w, "invalid token")
				return
			}

			// Revocation and role share one predicate and one response
			// shape: a missing session and an insufficient role are
			// indistinguishable to the client.
			sess, serr := sessions.GetByAccessToken(raw)
			if serr != nil {
				logger.Error("session lookup", "error", serr)
				internalError(w)
				return
			}
			adminRoute := strings.HasPrefix(strings.ToLower(r.URL.Path), adminPrefix)
			if sess == nil || (adminRoute && !claims.IsAdmin) {
				unauthorized(w, "token revoked")
				return
			}

			ctx := auth.WithIdentity(r.Context(), auth.Identity{
				UserID:  claims.UserID,
				IsAdmin: claims.IsAdmin,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// exemptPaths lists the unauthenticated routes, with and without a
// trailing slash, derived from the configured base path.
func exemptPaths(apiBase string) map[string]bool {
	paths := make(map[string]bool)
	for _, p := range []string{"/login", "/register", "/forgot-password", "/verify-otp", "/reset-password"} {
		paths[apiBase+p] = true
		paths[apiBase+p+"/"] = true
	}
	return paths
}

// bearerToken extracts the token from the Authorization header. A
// malformed header reports false; callers fail closed.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, rest, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok := strings.TrimSpace(rest)
	if tok == "" {
		return "", false
	}
	return tok, true
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"type":    "Unauthorized",
		"message": message,
	})
}

func internalError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{
		"type":    "Internal Server Error",
		"message": "something went wrong",
	})
}
