package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/craftline/shop-api/internal/domain/auth"
)

// actorKey is the context key for the authenticated back-office identity.
type actorKey struct{}

// actorFrom returns the authenticated API key's name, or "unknown" when the
// request reached a handler without passing auth (tests).
func actorFrom(r *http.Request) string {
	if info, ok := r.Context().Value(actorKey{}).(*auth.APIKeyInfo); ok {
		return info.Name
	}
	return "unknown"
}

// APIKeyAuth returns a middleware that authenticates back-office requests via
// HMAC-SHA256-hashed API keys. The key is read from the api_key header (or an
// Authorization: Bearer fallback), hashed with the pepper, looked up, and the
// stored hash is compared in constant time to resist timing side-channels.
func APIKeyAuth(apikeys auth.Repository, pepper []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("api_key")
			if key == "" {
				key = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			}
			if key == "" {
				writeErr(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}

			mac := hmac.New(sha256.New, pepper)
			mac.Write([]byte(key))
			hash := mac.Sum(nil)

			info, err := apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
			if err != nil {
				writeErr(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}

			stored, err := hex.DecodeString(info.KeyHash)
			if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
				writeErr(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), actorKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
