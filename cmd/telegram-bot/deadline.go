package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/olebedev/when/rules/ru"

	"taskhub/internal/models"
)

var dateParser = newDateParser()

func newDateParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(ru.All...)
	w.Add(common.All...)
	return w
}

// parseDeadline понимает точные даты ("2025-01-01") и фразы вроде
// "завтра", "в пятницу", "next monday" относительно now
func parseDeadline(text string, now time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, fmt.Errorf("пустой срок")
	}
	if t, err := models.ParseTime(text); err == nil {
		return t, nil
	}

	r, err := dateParser.Parse(text, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("ошибка разбора срока %q: %w", text, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("не удалось распознать срок %q", text)
	}
	return r.Time, nil
}
