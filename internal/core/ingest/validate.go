package ingest

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxNameLength  = 100
	maxEmailLength = 255
)

var (
	emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	telPattern   = regexp.MustCompile(`^\d{2,4}-?\d{3,4}-?\d{4}$`)

	phoneSeparators = strings.NewReplacer("-", "", " ", "")
)

// Candidate はパーサーが生成した検証前のレコードです。
type Candidate struct {
	Name   string
	Email  string
	Tel    string
	Joined time.Time
}

// Record は検証済みのレコードです。Tel は区切り文字を含んだままです。
type Record struct {
	Name   string
	Email  string
	Tel    string
	Joined time.Time
}

// Validate は name → email → tel の順に検証し、最初の失敗を FieldError として返します。
func Validate(c Candidate) (Record, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return Record{}, &FieldError{Field: "name", Reason: "Name cannot be blank"}
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return Record{}, &FieldError{Field: "name", Reason: "Name too long (max 100 characters)"}
	}

	email := strings.TrimSpace(c.Email)
	if utf8.RuneCountInString(email) > maxEmailLength {
		return Record{}, &FieldError{Field: "email", Reason: "Email too long (max 255 characters)"}
	}
	if !emailPattern.MatchString(email) {
		return Record{}, &FieldError{Field: "email", Reason: "Invalid email format: " + email}
	}

	tel := strings.TrimSpace(c.Tel)
	if !telPattern.MatchString(tel) {
		return Record{}, &FieldError{Field: "tel", Reason: "Invalid phone number format: " + tel}
	}

	return Record{Name: name, Email: email, Tel: tel, Joined: c.Joined}, nil
}

// NormalizePhone はハイフンと空白を取り除きます。
func NormalizePhone(tel string) string {
	return phoneSeparators.Replace(tel)
}
