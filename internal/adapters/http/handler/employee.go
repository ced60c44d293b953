package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ogurasousui/codex-contact-directory/internal/adapters/http/respond"
	"github.com/ogurasousui/codex-contact-directory/internal/core/employee"
	"github.com/ogurasousui/codex-contact-directory/internal/core/ingest"
)

const (
	uploadPart      = "file"
	joinedLayout    = "2006-01-02"
	multipartMemory = 8 << 20
)

// EmployeeQuerier は一覧と名前検索のユースケースです。
type EmployeeQuerier interface {
	ListEmployees(ctx context.Context, in employee.ListEmployeesInput) (*employee.ListEmployeesResult, error)
	FindByName(ctx context.Context, name string) ([]*employee.Employee, error)
}

// EmployeeHandler は /api/employee 配下のエンドポイントを実装します。
type EmployeeHandler struct {
	employees EmployeeQuerier
	ingester  ingest.Ingester
	maxUpload int64
}

// NewEmployeeHandler は EmployeeHandler を生成します。
func NewEmployeeHandler(employees EmployeeQuerier, ingester ingest.Ingester, maxUpload int64) *EmployeeHandler {
	return &EmployeeHandler{employees: employees, ingester: ingester, maxUpload: maxUpload}
}

type employeeResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Tel    string `json:"tel"`
	Joined string `json:"joined"`
}

type pageResponse struct {
	Content       []employeeResponse `json:"content"`
	Page          int                `json:"page"`
	PageSize      int                `json:"pageSize"`
	TotalElements int64              `json:"totalElements"`
	TotalPages    int                `json:"totalPages"`
}

type countResponse struct {
	Count int `json:"count"`
}

// List は GET /api/employee?page=&pageSize= を処理します。
func (h *EmployeeHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := intQuery(r, "page", 0, 0)
	if err != nil {
		writeError(w, r, employee.ErrInvalidPage)
		return
	}
	pageSize, err := intQuery(r, "pageSize", 10, 1)
	if err != nil {
		writeError(w, r, employee.ErrInvalidPageSize)
		return
	}

	result, err := h.employees.ListEmployees(r.Context(), employee.ListEmployeesInput{Page: page, PageSize: pageSize})
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, pageResponse{
		Content:       toResponses(result.Employees),
		Page:          result.Page,
		PageSize:      result.PageSize,
		TotalElements: result.TotalElements,
		TotalPages:    result.TotalPages,
	})
}

// FindByName は GET /api/employee/{name} を処理します。
func (h *EmployeeHandler) FindByName(w http.ResponseWriter, r *http.Request) {
	// chi は RawPath がある場合だけエスケープされたままの値を返す。
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(name)
		if err != nil {
			writeError(w, r, employee.ErrInvalidName)
			return
		}
		name = unescaped
	}

	found, err := h.employees.FindByName(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toResponses(found))
}

// Create は POST /api/employee を処理します。
// multipart の file パート、JSON 本文、CSV / テキスト本文のいずれも受け付けます。
func (h *EmployeeHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}

	upload, err := h.readUpload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.ingester.Ingest(r.Context(), upload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("X-Batch-Id", result.BatchID.String())
	respond.JSON(w, http.StatusCreated, countResponse{Count: result.Count})
}

func (h *EmployeeHandler) readUpload(r *http.Request) (ingest.Upload, error) {
	declared := r.Header.Get("Content-Type")
	mediaType, params, _ := mime.ParseMediaType(declared)

	switch {
	case mediaType == "multipart/form-data":
		return h.readMultipart(r)
	case mediaType == "text/csv" || mediaType == "text/plain":
		content, err := io.ReadAll(r.Body)
		if err != nil {
			return ingest.Upload{}, err
		}
		contentType := "text/csv"
		if cs := params["charset"]; cs != "" {
			contentType = mime.FormatMediaType("text/csv", map[string]string{"charset": cs})
		}
		return ingest.Upload{Content: content, ContentType: contentType}, nil
	default:
		content, err := io.ReadAll(r.Body)
		if err != nil {
			return ingest.Upload{}, err
		}
		return ingest.Upload{Content: content, ContentType: declared}, nil
	}
}

func (h *EmployeeHandler) readMultipart(r *http.Request) (ingest.Upload, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return ingest.Upload{}, err
		}
		return ingest.Upload{}, fmt.Errorf("%w: %v", errMalformedMultipart, err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadPart)
	if err != nil {
		return ingest.Upload{}, errMissingFilePart
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return ingest.Upload{}, err
	}
	return ingest.Upload{
		Content:     content,
		ContentType: header.Header.Get("Content-Type"),
		Filename:    header.Filename,
	}, nil
}

// intQuery はクエリパラメータを整数として読み取ります。未指定なら def、lowest 未満はエラーです。
func intQuery(r *http.Request, key string, def, lowest int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < lowest {
		return 0, errors.New("below minimum")
	}
	return n, nil
}

func toResponses(employees []*employee.Employee) []employeeResponse {
	out := make([]employeeResponse, 0, len(employees))
	for _, e := range employees {
		out = append(out, employeeResponse{
			ID:     e.ID,
			Name:   e.Name,
			Email:  e.Email,
			Tel:    e.Tel,
			Joined: e.Joined.UTC().Format(joinedLayout),
		})
	}
	return out
}

// HealthCheck は GET /healthz を処理します。ready が nil でなければ疎通確認を行います。
func HealthCheck(ready func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				respond.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
