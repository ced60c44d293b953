package ingest

import (
	"bytes"
	"fmt"
	"strings"
)

const requiredFields = 4

type csvParser struct {
	dates   *DateNormalizer
	decoder *TextDecoder
}

func (p *csvParser) format() Format { return FormatCSV }

func (p *csvParser) accepts(contentType, filename string) bool {
	return containsFold(contentType, "csv") ||
		containsFold(contentType, "text/plain") ||
		hasSuffixFold(filename, ".csv")
}

// sniff は空でなく、JSON やマークアップで始まらず、先頭行がカンマ区切りである内容を CSV とみなします。
func (p *csvParser) sniff(content []byte) bool {
	trimmed := trimContent(content)
	if len(trimmed) == 0 {
		return false
	}
	switch trimmed[0] {
	case '[', '{', '<':
		return false
	}
	first := trimmed
	if i := bytes.IndexAny(first, "\r\n"); i >= 0 {
		first = first[:i]
	}
	return bytes.IndexByte(first, ',') >= 0
}

// parse は 1 行 1 レコード (name, email, tel, joined) として解釈します。
// 引用符によるエスケープは扱わず、カンマで単純に分割します。
func (p *csvParser) parse(content []byte, charset string) ([]Record, error) {
	text, err := p.decoder.Decode(content, charset)
	if err != nil {
		return nil, err
	}

	lines := nonBlankLines(text)
	if len(lines) == 0 {
		return nil, &FormatError{Format: FormatCSV, Reason: "Empty content"}
	}

	records := make([]Record, 0, len(lines))
	for i, line := range lines {
		rec, err := p.parseLine(line)
		if err != nil {
			return nil, &FormatError{Format: FormatCSV, Line: i + 1, Err: err}
		}
		records = append(records, rec)
	}
	return records, nil
}

func (p *csvParser) parseLine(line string) (Record, error) {
	parts := strings.Split(line, ",")
	if len(parts) < requiredFields {
		return Record{}, fieldCountError(len(parts))
	}
	for i := range parts[:requiredFields] {
		parts[i] = strings.TrimSpace(parts[i])
	}

	joined, err := p.dates.Parse(parts[3])
	if err != nil {
		return Record{}, err
	}

	return Validate(Candidate{
		Name:   parts[0],
		Email:  parts[1],
		Tel:    parts[2],
		Joined: joined,
	})
}

type fieldCountError int

func (n fieldCountError) Error() string {
	return fmt.Sprintf("Expected 4 fields (name, email, tel, joined), got %d", int(n))
}

func nonBlankLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
