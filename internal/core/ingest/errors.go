package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidData は入力内容に起因するすべての取り込みエラーが満たす分類用のエラーです。
	ErrInvalidData = errors.New("ingest: invalid data")
	// ErrUnsupportedFormat はどのパーサーも選択されなかったことを表します。
	ErrUnsupportedFormat = errors.New("Unsupported file format")
	// ErrTooManyIngestions は同時取り込み数の上限に達したことを表します。
	ErrTooManyIngestions = errors.New("ingest: too many concurrent ingestions")
)

// FieldError は 1 レコード内で最初に検証に失敗したフィールドを表します。
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("Invalid %s: %s", e.Field, e.Reason)
}

func (e *FieldError) Is(target error) bool {
	return target == ErrInvalidData
}

// DateError は受け付けるどの書式にも一致しない日付文字列を表します。
type DateError struct {
	Value string
}

func (e *DateError) Error() string {
	return fmt.Sprintf("Invalid date format: %s. Expected formats: yyyy.MM.dd, yyyy-MM-dd or yyyy/MM/dd", e.Value)
}

func (e *DateError) Is(target error) bool {
	return target == ErrInvalidData
}

// FormatError はフォーマット固有の構造エラーです。Line が 0 より大きい場合は位置情報を付与します。
type FormatError struct {
	Format Format
	Line   int
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Line > 0 {
		unit := "line"
		if e.Format == FormatXLSX {
			unit = "row"
		}
		msg = fmt.Sprintf("Error at %s %d: %s", unit, e.Line, msg)
	}
	return fmt.Sprintf("Invalid %s format: %s", e.Format.label(), msg)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func (e *FormatError) Is(target error) bool {
	return target == ErrInvalidData
}

// CharsetError は宣言された文字コードを解釈できなかったことを表します。
type CharsetError struct {
	Charset string
	Err     error
}

func (e *CharsetError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Unsupported charset %q: %v", e.Charset, e.Err)
	}
	return fmt.Sprintf("Unsupported charset %q", e.Charset)
}

func (e *CharsetError) Unwrap() error {
	return e.Err
}

func (e *CharsetError) Is(target error) bool {
	return target == ErrInvalidData
}

// PersistenceError はストレージ層での失敗をラップします。
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
