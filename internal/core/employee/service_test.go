package employee

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

type stubClock struct {
	now time.Time
}

func (s *stubClock) Now() time.Time {
	return s.now
}

type fakeEmployeeRepo struct {
	employees []*Employee
	sequence  int64
	insertErr error
	calls     int
}

func newFakeEmployeeRepo() *fakeEmployeeRepo {
	return &fakeEmployeeRepo{}
}

func (r *fakeEmployeeRepo) BatchInsert(_ context.Context, batch []*Employee) (int, error) {
	r.calls++
	if r.insertErr != nil {
		return 0, r.insertErr
	}
	seen := make(map[string]struct{}, len(r.employees)+len(batch))
	for _, existing := range r.employees {
		seen[existing.Email] = struct{}{}
	}
	for _, e := range batch {
		if _, ok := seen[e.Email]; ok {
			return 0, ErrEmailAlreadyExists
		}
		seen[e.Email] = struct{}{}
	}
	for _, e := range batch {
		clone := *e
		r.sequence++
		clone.ID = r.sequence
		r.employees = append(r.employees, &clone)
	}
	return len(batch), nil
}

func (r *fakeEmployeeRepo) List(_ context.Context, filter ListFilter) ([]*Employee, int64, error) {
	total := int64(len(r.employees))
	if filter.Offset >= len(r.employees) {
		return nil, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(r.employees) {
		end = len(r.employees)
	}
	out := make([]*Employee, 0, end-filter.Offset)
	for _, e := range r.employees[filter.Offset:end] {
		clone := *e
		out = append(out, &clone)
	}
	return out, total, nil
}

func (r *fakeEmployeeRepo) FindByName(_ context.Context, name string) ([]*Employee, error) {
	var out []*Employee
	for _, e := range r.employees {
		if e.Name == name {
			clone := *e
			out = append(out, &clone)
		}
	}
	return out, nil
}

type recordingTx struct {
	readWrite int
	readOnly  int
}

func (r *recordingTx) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	r.readOnly++
	return fn(ctx)
}

func (r *recordingTx) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	r.readWrite++
	return fn(ctx)
}

func seedInputs(n int) []CreateEmployeeInput {
	inputs := make([]CreateEmployeeInput, 0, n)
	for i := 0; i < n; i++ {
		inputs = append(inputs, CreateEmployeeInput{
			Name:   fmt.Sprintf("Employee %02d", i),
			Email:  fmt.Sprintf("employee%02d@example.com", i),
			Tel:    "01012345678",
			Joined: time.Date(2020, time.January, 2, 0, 0, 0, 0, time.UTC),
		})
	}
	return inputs
}

func TestService_CreateEmployees_Success(t *testing.T) {
	t.Parallel()

	repo := newFakeEmployeeRepo()
	clock := &stubClock{now: time.Date(2024, time.March, 1, 9, 30, 0, 0, time.UTC)}
	tx := &recordingTx{}
	svc := NewService(repo, clock, tx)

	count, err := svc.CreateEmployees(context.Background(), []CreateEmployeeInput{
		{Name: "  김철수 ", Email: "charles@clovf.com", Tel: "01075312468", Joined: time.Date(2018, time.March, 7, 15, 4, 0, 0, time.UTC)},
		{Name: "박영희", Email: "matilda@clovf.com", Tel: "01087654321", Joined: time.Date(2021, time.April, 28, 0, 0, 0, 0, time.UTC)},
	})
	if err != nil {
		t.Fatalf("CreateEmployees returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
	if tx.readWrite != 1 {
		t.Fatalf("expected one read-write transaction, got %d", tx.readWrite)
	}
	if repo.employees[0].Name != "김철수" {
		t.Fatalf("expected trimmed name, got %q", repo.employees[0].Name)
	}
	if !repo.employees[0].Joined.Equal(time.Date(2018, time.March, 7, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected joined truncated to date, got %v", repo.employees[0].Joined)
	}
	for _, e := range repo.employees {
		if !e.CreatedAt.Equal(clock.now) {
			t.Fatalf("expected shared created_at %v, got %v", clock.now, e.CreatedAt)
		}
	}
}

func TestService_CreateEmployees_Empty(t *testing.T) {
	t.Parallel()

	repo := newFakeEmployeeRepo()
	svc := NewService(repo, nil, nil)

	count, err := svc.CreateEmployees(context.Background(), nil)
	if err != nil {
		t.Fatalf("CreateEmployees returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected count 0, got %d", count)
	}
	if repo.calls != 0 {
		t.Fatalf("expected repository not to be called, got %d calls", repo.calls)
	}
}

func TestService_CreateEmployees_InvalidInput(t *testing.T) {
	t.Parallel()

	joined := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		input CreateEmployeeInput
		want  error
	}{
		{name: "blank name", input: CreateEmployeeInput{Name: "  ", Email: "a@b.co", Tel: "0101234567", Joined: joined}, want: ErrInvalidName},
		{name: "blank email", input: CreateEmployeeInput{Name: "A", Email: "", Tel: "0101234567", Joined: joined}, want: ErrInvalidEmail},
		{name: "tel not normalized", input: CreateEmployeeInput{Name: "A", Email: "a@b.co", Tel: "010-1234-5678", Joined: joined}, want: ErrInvalidTel},
		{name: "email too long", input: CreateEmployeeInput{Name: "A", Email: strings.Repeat("a", 250) + "@b.com", Tel: "0101234567", Joined: joined}, want: ErrInvalidEmail},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := newFakeEmployeeRepo()
			svc := NewService(repo, nil, nil)

			_, err := svc.CreateEmployees(context.Background(), []CreateEmployeeInput{tt.input})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if repo.calls != 0 {
				t.Fatalf("expected repository not to be called")
			}
		})
	}
}

func TestService_CreateEmployees_DuplicateEmailRollsBackBatch(t *testing.T) {
	t.Parallel()

	repo := newFakeEmployeeRepo()
	svc := NewService(repo, nil, nil)

	inputs := seedInputs(2)
	inputs[1].Email = inputs[0].Email

	_, err := svc.CreateEmployees(context.Background(), inputs)
	if !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}
	if len(repo.employees) != 0 {
		t.Fatalf("expected no employees stored, got %d", len(repo.employees))
	}
}

func TestService_CreateEmployees_RepositoryError(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	repo := newFakeEmployeeRepo()
	repo.insertErr = boom
	svc := NewService(repo, nil, nil)

	_, err := svc.CreateEmployees(context.Background(), seedInputs(1))
	if !errors.Is(err, boom) {
		t.Fatalf("expected repository error, got %v", err)
	}
}

func TestService_ListEmployees_Paging(t *testing.T) {
	t.Parallel()

	repo := newFakeEmployeeRepo()
	svc := NewService(repo, nil, nil)
	if _, err := svc.CreateEmployees(context.Background(), seedInputs(25)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	result, err := svc.ListEmployees(context.Background(), ListEmployeesInput{Page: 2})
	if err != nil {
		t.Fatalf("ListEmployees returned error: %v", err)
	}
	if result.PageSize != defaultListPageSize {
		t.Fatalf("expected default page size, got %d", result.PageSize)
	}
	if len(result.Employees) != 5 {
		t.Fatalf("expected 5 employees on last page, got %d", len(result.Employees))
	}
	if result.TotalElements != 25 || result.TotalPages != 3 {
		t.Fatalf("unexpected totals: %+v", result)
	}
	if result.Employees[0].ID != 21 {
		t.Fatalf("expected ascending id order, got first id %d", result.Employees[0].ID)
	}
}

func TestService_ListEmployees_EmptyPage(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeEmployeeRepo(), nil, nil)

	result, err := svc.ListEmployees(context.Background(), ListEmployeesInput{Page: 3, PageSize: 20})
	if err != nil {
		t.Fatalf("ListEmployees returned error: %v", err)
	}
	if result.Employees == nil || len(result.Employees) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", result.Employees)
	}
	if result.TotalPages != 0 {
		t.Fatalf("expected 0 total pages, got %d", result.TotalPages)
	}
}

func TestService_ListEmployees_InvalidPaging(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeEmployeeRepo(), nil, nil)

	if _, err := svc.ListEmployees(context.Background(), ListEmployeesInput{Page: -1}); !errors.Is(err, ErrInvalidPage) {
		t.Fatalf("expected ErrInvalidPage, got %v", err)
	}
	if _, err := svc.ListEmployees(context.Background(), ListEmployeesInput{PageSize: 101}); !errors.Is(err, ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize, got %v", err)
	}
	if _, err := svc.ListEmployees(context.Background(), ListEmployeesInput{PageSize: -5}); !errors.Is(err, ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize, got %v", err)
	}
}

func TestService_FindByName(t *testing.T) {
	t.Parallel()

	repo := newFakeEmployeeRepo()
	svc := NewService(repo, nil, nil)
	inputs := seedInputs(3)
	inputs[2].Name = inputs[0].Name
	if _, err := svc.CreateEmployees(context.Background(), inputs); err != nil {
		t.Fatalf("seed: %v", err)
	}

	found, err := svc.FindByName(context.Background(), " "+inputs[0].Name+" ")
	if err != nil {
		t.Fatalf("FindByName returned error: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(found))
	}

	none, err := svc.FindByName(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("FindByName returned error: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", none)
	}

	if _, err := svc.FindByName(context.Background(), "   "); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestService_CreateEmployees_AcceptsFirstCalendarDay(t *testing.T) {
	t.Parallel()

	repo := newFakeEmployeeRepo()
	svc := NewService(repo, nil, nil)

	in := seedInputs(1)
	in[0].Joined = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)

	if _, err := svc.CreateEmployees(context.Background(), in); err != nil {
		t.Fatalf("CreateEmployees returned error: %v", err)
	}
	if !repo.employees[0].Joined.Equal(in[0].Joined) {
		t.Fatalf("expected joined 0001-01-01, got %v", repo.employees[0].Joined)
	}
}
