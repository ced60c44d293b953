package ingest

import (
	"bytes"
	"strings"
)

// Format は取り込み可能なファイル形式です。
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

func (f Format) label() string {
	return strings.ToUpper(string(f))
}

// parser はフォーマットごとの解析処理です。実装は csv / json / xlsx に限られます。
type parser interface {
	format() Format
	// accepts は宣言された Content-Type またはファイル名で判定します。
	accepts(contentType, filename string) bool
	// sniff は内容から判定します。
	sniff(content []byte) bool
	parse(content []byte, charset string) ([]Record, error)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func trimContent(content []byte) []byte {
	return bytes.TrimSpace(bytes.TrimPrefix(content, utf8BOM))
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}
