package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ogurasousui/codex-contact-directory/internal/core/employee"
	pgdb "github.com/ogurasousui/codex-contact-directory/internal/platform/db/postgres"
)

const (
	employeeUniqueViolationCode = "23505"
	employeeEmailConstraint     = "employees_email_key"
)

var employeeCopyColumns = []string{"name", "email", "tel", "joined", "created_at"}

// EmployeeRepository は PostgreSQL を利用した社員永続化の実装です。
type EmployeeRepository struct {
	pool pgdb.Queryer
}

// NewEmployeeRepository は EmployeeRepository を生成します。
func NewEmployeeRepository(pool pgdb.Queryer) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

// BatchInsert は COPY プロトコルで社員をまとめて登録します。
// 呼び出し側のトランザクション内で実行されるため、失敗時は 1 件も残りません。
func (r *EmployeeRepository) BatchInsert(ctx context.Context, employees []*employee.Employee) (int, error) {
	if len(employees) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(employees))
	for _, e := range employees {
		rows = append(rows, []any{e.Name, e.Email, e.Tel, dateOnly(e.Joined), e.CreatedAt})
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	n, err := exec.CopyFrom(ctx, pgx.Identifier{"employees"}, employeeCopyColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, translateEmployeePgError(err)
	}
	return int(n), nil
}

// List は ID 昇順で社員を取得し、全件数とあわせて返します。
func (r *EmployeeRepository) List(ctx context.Context, filter employee.ListFilter) ([]*employee.Employee, int64, error) {
	if filter.Limit <= 0 {
		return nil, 0, employee.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, 0, employee.ErrInvalidPage
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)

	var total int64
	if err := exec.QueryRow(ctx, `SELECT COUNT(*) FROM employees`).Scan(&total); err != nil {
		return nil, 0, translateEmployeePgError(err)
	}
	if total == 0 || int64(filter.Offset) >= total {
		return []*employee.Employee{}, total, nil
	}

	rows, err := exec.Query(ctx, `
        SELECT id, name, email, tel, joined, created_at
          FROM employees
         ORDER BY id ASC
         LIMIT $1
        OFFSET $2
    `, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, translateEmployeePgError(err)
	}

	employees, err := collectEmployees(rows, filter.Limit)
	if err != nil {
		return nil, 0, err
	}
	return employees, total, nil
}

// FindByName は名前が完全一致する社員を ID 昇順で取得します。
func (r *EmployeeRepository) FindByName(ctx context.Context, name string) ([]*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT id, name, email, tel, joined, created_at
          FROM employees
         WHERE name = $1
         ORDER BY id ASC
    `, name)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return collectEmployees(rows, 0)
}

func collectEmployees(rows pgx.Rows, capacity int) ([]*employee.Employee, error) {
	defer rows.Close()

	employees := make([]*employee.Employee, 0, capacity)
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, translateEmployeePgError(err)
		}
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, translateEmployeePgError(err)
	}
	return employees, nil
}

func scanEmployee(row pgx.Row) (*employee.Employee, error) {
	var (
		id        int64
		name      string
		email     string
		tel       string
		joined    time.Time
		createdAt time.Time
	)

	if err := row.Scan(&id, &name, &email, &tel, &joined, &createdAt); err != nil {
		return nil, err
	}

	return &employee.Employee{
		ID:        id,
		Name:      name,
		Email:     email,
		Tel:       tel,
		Joined:    dateOnly(joined),
		CreatedAt: createdAt.UTC(),
	}, nil
}

func translateEmployeePgError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == employeeUniqueViolationCode {
		if pgErr.ConstraintName == "" || pgErr.ConstraintName == employeeEmailConstraint {
			return employee.ErrEmailAlreadyExists
		}
	}

	return err
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
