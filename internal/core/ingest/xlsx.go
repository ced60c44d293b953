package ingest

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var zipMagic = []byte("PK\x03\x04")

type xlsxParser struct {
	dates *DateNormalizer
}

func (p *xlsxParser) format() Format { return FormatXLSX }

func (p *xlsxParser) accepts(contentType, filename string) bool {
	return containsFold(contentType, "spreadsheetml") || hasSuffixFold(filename, ".xlsx")
}

func (p *xlsxParser) sniff(content []byte) bool {
	return bytes.HasPrefix(content, zipMagic)
}

// parse は先頭シートの各行を name, email, tel, joined として解釈します。
// 1 行目の先頭セルが "name" の場合は見出し行として読み飛ばします。
func (p *xlsxParser) parse(content []byte, _ string) ([]Record, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, &FormatError{Format: FormatXLSX, Reason: err.Error()}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &FormatError{Format: FormatXLSX, Reason: "Empty content"}
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &FormatError{Format: FormatXLSX, Reason: err.Error()}
	}

	var records []Record
	seenData := false
	for i, row := range rows {
		cells := trimCells(row)
		if len(cells) == 0 {
			continue
		}
		if !seenData && strings.EqualFold(cells[0], "name") {
			seenData = true
			continue
		}
		seenData = true

		rec, err := p.parseRow(cells)
		if err != nil {
			return nil, &FormatError{Format: FormatXLSX, Line: i + 1, Err: err}
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, &FormatError{Format: FormatXLSX, Reason: "Empty content"}
	}
	return records, nil
}

func (p *xlsxParser) parseRow(cells []string) (Record, error) {
	if len(cells) < requiredFields {
		return Record{}, fieldCountError(len(cells))
	}

	joined, err := p.parseJoined(cells[3])
	if err != nil {
		return Record{}, err
	}

	return Validate(Candidate{
		Name:   cells[0],
		Email:  cells[1],
		Tel:    cells[2],
		Joined: joined,
	})
}

// parseJoined は文字列の日付に加えて Excel のシリアル値を受け付けます。
func (p *xlsxParser) parseJoined(value string) (time.Time, error) {
	joined, err := p.dates.Parse(value)
	if err == nil {
		return joined, nil
	}

	serial, convErr := strconv.ParseFloat(value, 64)
	if convErr != nil || serial <= 0 {
		return time.Time{}, err
	}
	t, convErr := excelize.ExcelDateToTime(serial, false)
	if convErr != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// trimCells は各セルを trim し、末尾の空セルを取り除きます。
func trimCells(row []string) []string {
	cells := make([]string, len(row))
	last := -1
	for i, c := range row {
		cells[i] = strings.TrimSpace(c)
		if cells[i] != "" {
			last = i
		}
	}
	return cells[:last+1]
}
