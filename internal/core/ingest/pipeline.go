package ingest

import (
	"context"
	"errors"
	"mime"
	"time"

	"github.com/google/uuid"

	"github.com/ogurasousui/codex-contact-directory/internal/core/employee"
	"github.com/ogurasousui/codex-contact-directory/internal/platform/logging"
)

// BatchCreator は検証済みレコードを 1 バッチとして永続化します。
type BatchCreator interface {
	CreateEmployees(ctx context.Context, in []employee.CreateEmployeeInput) (int, error)
}

// Upload は取り込み対象の内容と宣言情報です。
type Upload struct {
	Content     []byte
	ContentType string
	Filename    string
}

// Result は取り込み結果です。
type Result struct {
	BatchID uuid.UUID
	Format  Format
	Count   int
}

// Ingester は取り込みユースケースの公開インターフェースです。
type Ingester interface {
	Ingest(ctx context.Context, upload Upload) (*Result, error)
}

// Pipeline は選択 → 解析 → 検証 → 正規化 → 一括登録を順に実行します。
type Pipeline struct {
	selector *Selector
	creator  BatchCreator
	limiter  *Limiter
}

// NewPipeline は Pipeline を生成します。limiter は nil を許容します。
func NewPipeline(selector *Selector, creator BatchCreator, limiter *Limiter) *Pipeline {
	if selector == nil {
		selector = NewSelector(nil, nil)
	}
	return &Pipeline{selector: selector, creator: creator, limiter: limiter}
}

// Ingest はアップロード内容を取り込み、登録件数を返します。
// いずれかのレコードで失敗した場合は 1 件も登録しません。
func (p *Pipeline) Ingest(ctx context.Context, upload Upload) (*Result, error) {
	release, err := p.limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	batchID := uuid.New()
	logger := logging.WithFields(ctx, "batch_id", batchID.String())
	started := time.Now()

	fp, err := p.selector.selectParser(upload.ContentType, upload.Filename, upload.Content)
	if err != nil {
		logger.Warn("ingest rejected", "content_type", upload.ContentType, "filename", upload.Filename, "error", err)
		return nil, err
	}
	logger = logger.With("format", string(fp.format()))

	records, err := fp.parse(upload.Content, charsetOf(upload.ContentType))
	if err != nil {
		logger.Warn("ingest parse failed", "error", err)
		return nil, err
	}

	inputs := make([]employee.CreateEmployeeInput, 0, len(records))
	for _, rec := range records {
		inputs = append(inputs, employee.CreateEmployeeInput{
			Name:   rec.Name,
			Email:  rec.Email,
			Tel:    NormalizePhone(rec.Tel),
			Joined: rec.Joined,
		})
	}

	count, err := p.creator.CreateEmployees(ctx, inputs)
	if err != nil {
		if fe := fieldErrorOf(err); fe != nil {
			logger.Info("ingest rejected", "records", len(inputs), "error", err)
			return nil, fe
		}
		logger.Error("ingest persistence failed", "records", len(inputs), "error", err)
		var pe *PersistenceError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, &PersistenceError{Err: err}
	}

	logger.Info("ingest completed", "count", count, "duration", time.Since(started))
	return &Result{BatchID: batchID, Format: fp.format(), Count: count}, nil
}

// fieldErrorOf は登録ユースケースの入力検証エラーを FieldError に変換します。該当しなければ nil です。
func fieldErrorOf(err error) *FieldError {
	switch {
	case errors.Is(err, employee.ErrInvalidName):
		return &FieldError{Field: "name", Reason: err.Error()}
	case errors.Is(err, employee.ErrInvalidEmail):
		return &FieldError{Field: "email", Reason: err.Error()}
	case errors.Is(err, employee.ErrInvalidTel):
		return &FieldError{Field: "tel", Reason: err.Error()}
	default:
		return nil
	}
}

func charsetOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}
