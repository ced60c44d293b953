package ingest

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
)

// TextDecoder はアップロードされたバイト列を UTF-8 文字列に変換します。
// 宣言された charset を優先し、宣言がなく UTF-8 として不正な場合は既定の文字コードで復号します。
type TextDecoder struct {
	fallback encoding.Encoding
}

// NewTextDecoder は既定の文字コード名から TextDecoder を生成します。空の場合は EUC-KR です。
func NewTextDecoder(defaultCharset string) (*TextDecoder, error) {
	name := strings.TrimSpace(defaultCharset)
	if name == "" {
		return &TextDecoder{fallback: korean.EUCKR}, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, &CharsetError{Charset: name, Err: err}
	}
	return &TextDecoder{fallback: enc}, nil
}

// Decode は content を文字列に変換します。先頭の BOM は取り除きます。
func (d *TextDecoder) Decode(content []byte, charset string) (string, error) {
	if charset = strings.TrimSpace(charset); charset != "" {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return "", &CharsetError{Charset: charset, Err: err}
		}
		if enc != unicode.UTF8 {
			return decodeWith(enc, charset, content)
		}
	}

	content = bytes.TrimPrefix(content, utf8BOM)
	if utf8.Valid(content) {
		return string(content), nil
	}

	fallback := korean.EUCKR
	if d != nil && d.fallback != nil {
		fallback = d.fallback
	}
	return decodeWith(fallback, "fallback", content)
}

func decodeWith(enc encoding.Encoding, name string, content []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(content)
	if err != nil {
		return "", &CharsetError{Charset: name, Err: err}
	}
	return string(bytes.TrimPrefix(out, utf8BOM)), nil
}
