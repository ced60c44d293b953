package employee

import "time"

// Employee は連絡先ディレクトリに登録された社員です。
type Employee struct {
	ID        int64
	Name      string
	Email     string
	Tel       string
	Joined    time.Time
	CreatedAt time.Time
}
