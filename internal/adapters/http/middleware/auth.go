// Package middleware は HTTP ミドルウェアを提供します。
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/ogurasousui/codex-contact-directory/internal/adapters/http/respond"
	"github.com/ogurasousui/codex-contact-directory/internal/platform/logging"
)

// APIKeyHeader は API キーを受け取るヘッダ名です。
const APIKeyHeader = "X-API-Key"

// APIKeyAuth は X-API-Key ヘッダを検証します。apiKey が空の場合は検証しません。
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	expected := []byte(apiKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(expected) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get(APIKeyHeader)
			if provided == "" {
				logging.FromContext(r.Context()).Warn("auth: missing API key", "path", r.URL.Path, "method", r.Method)
				respond.Error(w, r, http.StatusUnauthorized, "Missing API key")
				return
			}

			if subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
				logging.FromContext(r.Context()).Warn("auth: invalid API key", "path", r.URL.Path, "method", r.Method)
				respond.Error(w, r, http.StatusUnauthorized, "Invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
