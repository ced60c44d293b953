package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ogurasousui/codex-contact-directory/internal/core/employee"
)

const (
	insertChunkSize       = 500
	mysqlDuplicateEntry   = 1062
	joinedLayout          = "2006-01-02"
	employeeSelectColumns = "id, name, email, tel, joined, created_at"
)

// BatchInsert は社員をまとめて登録します。トランザクション外で呼ばれた場合は自前で開始します。
func (s *Store) BatchInsert(ctx context.Context, employees []*employee.Employee) (int, error) {
	if len(employees) == 0 {
		return 0, nil
	}

	var inserted int
	err := s.WithinReadWrite(ctx, func(txCtx context.Context) error {
		q := s.queryer(txCtx)
		for start := 0; start < len(employees); start += insertChunkSize {
			end := min(start+insertChunkSize, len(employees))
			query, args := buildInsert(employees[start:end])
			res, err := q.ExecContext(txCtx, query, args...)
			if err != nil {
				return s.translate(err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("sqlstore: rows affected: %w", err)
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func buildInsert(batch []*employee.Employee) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO employees (name, email, tel, joined, created_at) VALUES ")

	args := make([]any, 0, len(batch)*5)
	for i, e := range batch {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, e.Name, e.Email, e.Tel, e.Joined.UTC().Format(joinedLayout), e.CreatedAt.UTC())
	}
	return b.String(), args
}

// List は ID 昇順で社員を取得し、全件数とあわせて返します。
func (s *Store) List(ctx context.Context, filter employee.ListFilter) ([]*employee.Employee, int64, error) {
	if filter.Limit <= 0 {
		return nil, 0, employee.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, 0, employee.ErrInvalidPage
	}

	q := s.queryer(ctx)

	var total int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM employees`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlstore: count employees: %w", err)
	}
	if int64(filter.Offset) >= total {
		return []*employee.Employee{}, total, nil
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+employeeSelectColumns+` FROM employees ORDER BY id ASC LIMIT ? OFFSET ?`,
		filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlstore: list employees: %w", err)
	}

	employees, err := collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return employees, total, nil
}

// FindByName は名前が完全一致する社員を ID 昇順で取得します。
func (s *Store) FindByName(ctx context.Context, name string) ([]*employee.Employee, error) {
	rows, err := s.queryer(ctx).QueryContext(ctx,
		`SELECT `+employeeSelectColumns+` FROM employees WHERE name = ? ORDER BY id ASC`, name)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: find employees: %w", err)
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]*employee.Employee, error) {
	defer rows.Close()

	employees := []*employee.Employee{}
	for rows.Next() {
		var (
			e         employee.Employee
			joined    timeValue
			createdAt timeValue
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Email, &e.Tel, &joined, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlstore: scan employee: %w", err)
		}
		j := joined.Time.UTC()
		e.Joined = time.Date(j.Year(), j.Month(), j.Day(), 0, 0, 0, 0, time.UTC)
		e.CreatedAt = createdAt.Time.UTC()
		employees = append(employees, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterate employees: %w", err)
	}
	return employees, nil
}

func (s *Store) translate(err error) error {
	if isDuplicate(err) {
		return employee.ErrEmailAlreadyExists
	}
	return err
}

func isDuplicate(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed")
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	joinedLayout,
}

// timeValue はドライバごとに異なる日時表現 (time.Time / 文字列) を吸収します。
type timeValue struct {
	Time time.Time
}

func (v *timeValue) Scan(src any) error {
	switch t := src.(type) {
	case time.Time:
		v.Time = t
		return nil
	case string:
		return v.parse(t)
	case []byte:
		return v.parse(string(t))
	case nil:
		return errors.New("sqlstore: unexpected NULL time")
	default:
		return fmt.Errorf("sqlstore: unsupported time type %T", src)
	}
}

func (v *timeValue) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			v.Time = t
			return nil
		}
	}
	return fmt.Errorf("sqlstore: unparseable time %q", s)
}
