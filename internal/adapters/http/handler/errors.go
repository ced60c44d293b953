package handler

import (
	"errors"
	"net/http"

	"github.com/ogurasousui/codex-contact-directory/internal/adapters/http/respond"
	"github.com/ogurasousui/codex-contact-directory/internal/core/employee"
	"github.com/ogurasousui/codex-contact-directory/internal/core/ingest"
	"github.com/ogurasousui/codex-contact-directory/internal/platform/logging"
)

var (
	errMissingFilePart    = errors.New("Required part 'file' is not present")
	errMalformedMultipart = errors.New("Malformed multipart request")
)

const genericErrorMessage = "An unexpected error occurred"

// classify はエラーを HTTP ステータスとクライアント向けメッセージに変換します。
func classify(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "File size exceeds the maximum allowed size"
	case errors.Is(err, ingest.ErrTooManyIngestions):
		return http.StatusTooManyRequests, "Too many uploads in progress, please retry later"
	case errors.Is(err, ingest.ErrUnsupportedFormat),
		errors.Is(err, ingest.ErrInvalidData),
		errors.Is(err, errMissingFilePart):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, employee.ErrInvalidPage):
		return http.StatusBadRequest, "page must be a non-negative integer"
	case errors.Is(err, employee.ErrInvalidPageSize):
		return http.StatusBadRequest, "pageSize must be between 1 and 100"
	case errors.Is(err, employee.ErrInvalidName):
		return http.StatusBadRequest, "name must not be blank"
	case errors.Is(err, employee.ErrEmailAlreadyExists):
		return http.StatusConflict, "Email already exists"
	case errors.Is(err, errMalformedMultipart):
		return http.StatusBadRequest, errMalformedMultipart.Error()
	default:
		return http.StatusInternalServerError, genericErrorMessage
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classify(err)

	logger := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "path", r.URL.Path, "method", r.Method, "status", status, "error", err)
	} else {
		logger.Info("request rejected", "path", r.URL.Path, "method", r.Method, "status", status, "error", err)
	}

	respond.Error(w, r, status, message)
}
