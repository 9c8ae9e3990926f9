package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeLayout - формат дат в ответах API (UTC с миллисекундами)
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

// ParseTime разбирает дату в одном из форматов: RFC3339, YYYY-MM-DD,
// год из четырёх цифр или число миллисекунд с начала эпохи.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("пустая дата")
	}

	if len(s) <= 4 && isDigits(s) {
		year, _ := strconv.Atoi(s)
		return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), nil
	}
	if t, ok := parseMillis(s); ok {
		return t, nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("неизвестный формат даты: %q", s)
}

// parseTimeJSON принимает строку, число или null
func parseTimeJSON(raw json.RawMessage) (*time.Time, error) {
	if isNullJSON(raw) {
		return nil, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, err
		}
		// число в JSON - всегда миллисекунды
		t, ok := parseMillis(n.String())
		if !ok {
			return nil, fmt.Errorf("неизвестный формат даты: %s", n)
		}
		return &t, nil
	}
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	t, err := ParseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseMillis(s string) (time.Time, bool) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return time.UnixMilli(int64(f)).UTC(), true
	}
	return time.Time{}, false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
