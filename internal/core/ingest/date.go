package ingest

import (
	"strings"
	"time"
)

// DateNormalizer は順序付きの書式リストで日付文字列を解釈します。
type DateNormalizer struct {
	layouts []string
}

var defaultDates = NewDateNormalizer("2006.01.02", "2006-01-02", "2006/01/02")

// NewDateNormalizer は優先順位順の書式から DateNormalizer を生成します。
func NewDateNormalizer(layouts ...string) *DateNormalizer {
	copied := make([]string, len(layouts))
	copy(copied, layouts)
	return &DateNormalizer{layouts: copied}
}

// DefaultDateNormalizer は yyyy.MM.dd, yyyy-MM-dd, yyyy/MM/dd を受け付ける DateNormalizer を返します。
func DefaultDateNormalizer() *DateNormalizer {
	return defaultDates
}

// Parse は最初に一致した書式で日付を解釈し、UTC の 0 時として返します。
// 暦上存在しない日付 (13 月、2 月 30 日など) は DateError になります。
func (d *DateNormalizer) Parse(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed != "" {
		for _, layout := range d.layouts {
			t, err := time.ParseInLocation(layout, trimmed, time.UTC)
			if err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, &DateError{Value: value}
}

// ParseJoinDate は既定の書式リストで入社日を解釈します。
func ParseJoinDate(value string) (time.Time, error) {
	return defaultDates.Parse(value)
}
