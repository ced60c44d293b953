package employee

import "context"

// Repository は社員永続化の抽象です。
type Repository interface {
	// BatchInsert は社員をまとめて登録し、登録件数を返します。一部だけが登録されることはありません。
	BatchInsert(ctx context.Context, employees []*Employee) (int, error)
	// List は ID 昇順で社員を取得し、全件数とあわせて返します。
	List(ctx context.Context, filter ListFilter) ([]*Employee, int64, error)
	FindByName(ctx context.Context, name string) ([]*Employee, error)
}

// ListFilter は一覧取得用フィルタです。
type ListFilter struct {
	Limit  int
	Offset int
}
