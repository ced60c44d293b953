// Package respond は HTTP レスポンスの JSON 書き出しを共通化します。
package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorBody はクライアントへ返すエラーの形式です。
type ErrorBody struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

var reasonOverrides = map[int]string{
	http.StatusRequestEntityTooLarge: "Payload Too Large",
}

// Reason はステータスコードに対応する理由句を返します。
func Reason(status int) string {
	if reason, ok := reasonOverrides[status]; ok {
		return reason
	}
	return http.StatusText(status)
}

// JSON は v を JSON として書き出します。
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Error はエラー形式のレスポンスを書き出します。
func Error(w http.ResponseWriter, r *http.Request, status int, message string) {
	JSON(w, status, ErrorBody{
		Status:  status,
		Error:   Reason(status),
		Message: message,
		Path:    r.URL.Path,
	})
}
