package employee

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

const (
	defaultListPageSize = 10
	maxListPageSize     = 100
	maxEmailLength      = 255
)

// Service は社員に関するユースケースをまとめます。
type Service struct {
	repo  Repository
	clock Clock
	tx    TransactionManager
}

// UseCase は社員ユースケースの公開インターフェースです。
type UseCase interface {
	CreateEmployees(ctx context.Context, in []CreateEmployeeInput) (int, error)
	ListEmployees(ctx context.Context, in ListEmployeesInput) (*ListEmployeesResult, error)
	FindByName(ctx context.Context, name string) ([]*Employee, error)
}

// NewService は Service を生成します。
func NewService(repo Repository, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{repo: repo, clock: clock, tx: tx}
}

// CreateEmployeeInput は社員登録時の入力です。Tel は数字のみに正規化済みであることが前提です。
type CreateEmployeeInput struct {
	Name   string
	Email  string
	Tel    string
	Joined time.Time
}

// ListEmployeesInput は一覧取得時の入力です。Page は 0 始まりです。
type ListEmployeesInput struct {
	Page     int
	PageSize int
}

// ListEmployeesResult は一覧取得結果を表します。
type ListEmployeesResult struct {
	Employees     []*Employee
	Page          int
	PageSize      int
	TotalElements int64
	TotalPages    int
}

// CreateEmployees は社員を一括登録します。
// バッチ内の全件に同じ CreatedAt を付与し、1 トランザクションで永続化します。
func (s *Service) CreateEmployees(ctx context.Context, in []CreateEmployeeInput) (int, error) {
	if len(in) == 0 {
		return 0, nil
	}

	now := s.clock.Now()
	batch := make([]*Employee, 0, len(in))
	for i, item := range in {
		emp, err := newEmployee(item, now)
		if err != nil {
			return 0, fmt.Errorf("record %d: %w", i+1, err)
		}
		batch = append(batch, emp)
	}

	var created int
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		n, err := s.repo.BatchInsert(txCtx, batch)
		if err != nil {
			return err
		}
		created = n
		return nil
	}); err != nil {
		return 0, err
	}

	return created, nil
}

// ListEmployees は社員の一覧を ID 昇順で取得します。
func (s *Service) ListEmployees(ctx context.Context, in ListEmployeesInput) (*ListEmployeesResult, error) {
	if in.Page < 0 {
		return nil, ErrInvalidPage
	}

	pageSize, err := normalizePageSize(in.PageSize)
	if err != nil {
		return nil, err
	}

	var (
		employees []*Employee
		total     int64
	)

	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, count, err := s.repo.List(txCtx, ListFilter{
			Limit:  pageSize,
			Offset: in.Page * pageSize,
		})
		if err != nil {
			return err
		}
		employees = found
		total = count
		return nil
	}); err != nil {
		return nil, err
	}

	if employees == nil {
		employees = []*Employee{}
	}

	return &ListEmployeesResult{
		Employees:     employees,
		Page:          in.Page,
		PageSize:      pageSize,
		TotalElements: total,
		TotalPages:    totalPages(total, pageSize),
	}, nil
}

// FindByName は名前が完全一致する社員を取得します。
func (s *Service) FindByName(ctx context.Context, name string) ([]*Employee, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, ErrInvalidName
	}

	var result []*Employee
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByName(txCtx, trimmed)
		if err != nil {
			return err
		}
		result = found
		return nil
	}); err != nil {
		return nil, err
	}

	if result == nil {
		result = []*Employee{}
	}
	return result, nil
}

func newEmployee(in CreateEmployeeInput, createdAt time.Time) (*Employee, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidName
	}

	email := strings.TrimSpace(in.Email)
	if email == "" || utf8.RuneCountInString(email) > maxEmailLength {
		return nil, ErrInvalidEmail
	}

	if !isDigits(in.Tel) {
		return nil, ErrInvalidTel
	}

	return &Employee{
		Name:      name,
		Email:     email,
		Tel:       in.Tel,
		Joined:    normalizeDate(in.Joined),
		CreatedAt: createdAt,
	}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func normalizePageSize(pageSize int) (int, error) {
	if pageSize == 0 {
		return defaultListPageSize, nil
	}
	if pageSize < 0 || pageSize > maxListPageSize {
		return 0, ErrInvalidPageSize
	}
	return pageSize, nil
}

func totalPages(total int64, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
