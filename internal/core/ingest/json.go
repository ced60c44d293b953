package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
)

type jsonParser struct {
	dates   *DateNormalizer
	decoder *TextDecoder
}

type jsonRecord struct {
	Name   *string `json:"name"`
	Email  *string `json:"email"`
	Tel    *string `json:"tel"`
	Joined *string `json:"joined"`
}

func (p *jsonParser) format() Format { return FormatJSON }

func (p *jsonParser) accepts(contentType, filename string) bool {
	return containsFold(contentType, "json") || hasSuffixFold(filename, ".json")
}

func (p *jsonParser) sniff(content []byte) bool {
	trimmed := trimContent(content)
	return len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{')
}

// parse は配列または単一オブジェクトを受け付けます。
// 構文エラーは全体の失敗とし、日付と検証のエラーは FormatError で包まずに返します。
func (p *jsonParser) parse(content []byte, charset string) ([]Record, error) {
	text, err := p.decoder.Decode(content, charset)
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &FormatError{Format: FormatJSON, Reason: "Empty content"}
	}

	var items []jsonRecord
	if strings.HasPrefix(text, "[") {
		if err := json.Unmarshal([]byte(text), &items); err != nil {
			return nil, &FormatError{Format: FormatJSON, Reason: err.Error()}
		}
	} else {
		var item jsonRecord
		if err := json.Unmarshal([]byte(text), &item); err != nil {
			return nil, &FormatError{Format: FormatJSON, Reason: err.Error()}
		}
		items = []jsonRecord{item}
	}

	records := make([]Record, 0, len(items))
	for i, item := range items {
		if missing := item.missingField(); missing != "" {
			return nil, &FormatError{
				Format: FormatJSON,
				Reason: fmt.Sprintf("Missing required field '%s' in record %d", missing, i+1),
			}
		}

		joined, err := p.dates.Parse(*item.Joined)
		if err != nil {
			return nil, err
		}

		rec, err := Validate(Candidate{
			Name:   *item.Name,
			Email:  *item.Email,
			Tel:    *item.Tel,
			Joined: joined,
		})
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r jsonRecord) missingField() string {
	switch {
	case r.Name == nil:
		return "name"
	case r.Email == nil:
		return "email"
	case r.Tel == nil:
		return "tel"
	case r.Joined == nil:
		return "joined"
	default:
		return ""
	}
}
