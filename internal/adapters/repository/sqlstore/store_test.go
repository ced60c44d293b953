package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/ogurasousui/codex-contact-directory/internal/core/employee"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "data", "contacts.db")
	store, err := Open(context.Background(), "sqlite", dsn)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleEmployees(n int, createdAt time.Time) []*employee.Employee {
	out := make([]*employee.Employee, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &employee.Employee{
			Name:      fmt.Sprintf("Employee %03d", i),
			Email:     fmt.Sprintf("employee%03d@example.com", i),
			Tel:       "01012345678",
			Joined:    time.Date(2018, time.March, 7, 0, 0, 0, 0, time.UTC),
			CreatedAt: createdAt,
		})
	}
	return out
}

func TestStore_BatchInsertAndList(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	createdAt := time.Date(2024, time.May, 1, 12, 30, 0, 0, time.UTC)

	n, err := store.BatchInsert(ctx, sampleEmployees(1203, createdAt))
	if err != nil {
		t.Fatalf("BatchInsert returned error: %v", err)
	}
	if n != 1203 {
		t.Fatalf("expected 1203 inserted, got %d", n)
	}

	page, total, err := store.List(ctx, employee.ListFilter{Limit: 10, Offset: 1200})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if total != 1203 {
		t.Fatalf("expected total 1203, got %d", total)
	}
	if len(page) != 3 {
		t.Fatalf("expected 3 on last page, got %d", len(page))
	}
	if page[0].ID != 1201 || page[0].Email != "employee1200@example.com" {
		t.Fatalf("unexpected first row: %+v", page[0])
	}
	if !page[0].Joined.Equal(time.Date(2018, time.March, 7, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected joined: %v", page[0].Joined)
	}
	if !page[0].CreatedAt.Equal(createdAt) {
		t.Fatalf("unexpected created_at: %v", page[0].CreatedAt)
	}

	empty, total, err := store.List(ctx, employee.ListFilter{Limit: 10, Offset: 5000})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(empty) != 0 || total != 1203 {
		t.Fatalf("expected empty page, got %d rows total %d", len(empty), total)
	}
}

func TestStore_BatchInsertDuplicateRollsBack(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	batch := sampleEmployees(3, time.Now().UTC())
	batch[2].Email = batch[0].Email

	if _, err := store.BatchInsert(ctx, batch); !errors.Is(err, employee.ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}

	_, total, err := store.List(ctx, employee.ListFilter{Limit: 10})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected no rows after rollback, got %d", total)
	}
}

func TestStore_ServiceTransactionRollsBack(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.BatchInsert(ctx, sampleEmployees(1, time.Now().UTC())); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := employee.NewService(store, nil, store)
	_, err := svc.CreateEmployees(ctx, []employee.CreateEmployeeInput{
		{Name: "New", Email: "new@example.com", Tel: "0101234567", Joined: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Name: "Dup", Email: "employee000@example.com", Tel: "0101234567", Joined: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
	})
	if !errors.Is(err, employee.ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}

	found, err := store.FindByName(ctx, "New")
	if err != nil {
		t.Fatalf("FindByName returned error: %v", err)
	}
	if len(found) != 0 {
		t.Fatalf("expected batch to be rolled back, found %+v", found)
	}
}

func TestStore_FindByName(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	batch := sampleEmployees(4, time.Now().UTC())
	batch[1].Name = "김철수"
	batch[3].Name = "김철수"
	if _, err := store.BatchInsert(ctx, batch); err != nil {
		t.Fatalf("seed: %v", err)
	}

	found, err := store.FindByName(ctx, "김철수")
	if err != nil {
		t.Fatalf("FindByName returned error: %v", err)
	}
	if len(found) != 2 || found[0].ID >= found[1].ID {
		t.Fatalf("expected 2 matches ordered by id, got %+v", found)
	}

	none, err := store.FindByName(ctx, "nobody")
	if err != nil {
		t.Fatalf("FindByName returned error: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", none)
	}
}

func TestStore_ListInvalidFilter(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	if _, _, err := store.List(context.Background(), employee.ListFilter{}); !errors.Is(err, employee.ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize, got %v", err)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), "oracle", "x"); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestIsDuplicate_MySQL(t *testing.T) {
	t.Parallel()

	if !isDuplicate(&mysql.MySQLError{Number: mysqlDuplicateEntry, Message: "Duplicate entry"}) {
		t.Fatalf("expected MySQL 1062 to be a duplicate")
	}
	if isDuplicate(&mysql.MySQLError{Number: 1045}) {
		t.Fatalf("expected access denied not to be a duplicate")
	}
	if isDuplicate(errors.New("boom")) {
		t.Fatalf("expected plain error not to be a duplicate")
	}
}

func TestTimeValue_Scan(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, time.May, 1, 12, 30, 0, 0, time.UTC)
	for _, src := range []any{want, "2024-05-01 12:30:00+00:00", []byte("2024-05-01T12:30:00Z"), "2024-05-01 12:30:00"} {
		var v timeValue
		if err := v.Scan(src); err != nil {
			t.Fatalf("Scan(%v) returned error: %v", src, err)
		}
		if !v.Time.Equal(want) {
			t.Fatalf("Scan(%v) = %v, want %v", src, v.Time, want)
		}
	}

	var v timeValue
	if err := v.Scan(nil); err == nil {
		t.Fatalf("expected NULL to fail")
	}
}
