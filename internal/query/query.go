// Package query разбирает параметры списковых запросов
// (where, sort, select, skip, limit, count). Некорректные значения
// никогда не приводят к ошибке: вместо них используются значения по умолчанию.
package query

import (
	"bytes"
	"encoding/json"
	"io"
	"net/url"
	"strconv"
	"strings"
)

type Query struct {
	Filter     Filter
	Sort       Sort
	Projection Projection
	// Skip и Limit равные 0 не применяются
	Skip  int64
	Limit int64
	Count bool
}

// Parse собирает Query из параметров строки запроса
func Parse(values url.Values) Query {
	return Query{
		Filter:     ParseFilter(values.Get("where")),
		Sort:       ParseSort(values.Get("sort")),
		Projection: ParseProjection(values.Get("select")),
		Skip:       parseNonNegative(values.Get("skip")),
		Limit:      parseNonNegative(values.Get("limit")),
		Count:      strings.EqualFold(values.Get("count"), "true"),
	}
}

// All - запрос без условий
func All() Query {
	return Query{Filter: MatchAll{}}
}

func parseNonNegative(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

type SortField struct {
	Field string
	Desc  bool
}

// Sort - порядок сортировки, ключи в порядке их следования в запросе
type Sort []SortField

// ParseSort понимает {"deadline": 1, "name": -1} и строку "-deadline name"
func ParseSort(text string) Sort {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal([]byte(text), &s); err != nil {
			return nil
		}
		var out Sort
		for _, word := range strings.Fields(s) {
			desc := strings.HasPrefix(word, "-")
			field := strings.TrimLeft(word, "+-")
			if field == "" {
				return nil
			}
			out = append(out, SortField{Field: field, Desc: desc})
		}
		return out
	}

	var out Sort
	err := walkObject(text, func(key string, value any) bool {
		desc, ok := sortDirection(value)
		if !ok || key == "" {
			return false
		}
		out = append(out, SortField{Field: key, Desc: desc})
		return true
	})
	if err != nil {
		return nil
	}
	return out
}

func sortDirection(v any) (desc bool, ok bool) {
	switch val := v.(type) {
	case json.Number:
		switch val.String() {
		case "1":
			return false, true
		case "-1":
			return true, true
		}
	case string:
		switch strings.ToLower(val) {
		case "asc", "ascending":
			return false, true
		case "desc", "descending":
			return true, true
		}
	}
	return false, false
}

// Projection - список включаемых или исключаемых полей
type Projection struct {
	Fields  []string
	Exclude bool
	// HideID исключает _id из проекции с включением
	HideID bool
}

func (p Projection) IsEmpty() bool {
	return len(p.Fields) == 0 && !p.HideID
}

// ParseProjection понимает {"name": 1, "email": 1}, {"pendingTasks": 0} и строку "name -_id"
func ParseProjection(text string) Projection {
	text = strings.TrimSpace(text)
	if text == "" {
		return Projection{}
	}

	include := map[string]bool{}
	var order []string
	add := func(field string, in bool) {
		if _, ok := include[field]; !ok {
			order = append(order, field)
		}
		include[field] = in
	}

	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal([]byte(text), &s); err != nil {
			return Projection{}
		}
		for _, word := range strings.Fields(s) {
			field := strings.TrimLeft(word, "+-")
			if field == "" {
				return Projection{}
			}
			add(field, !strings.HasPrefix(word, "-"))
		}
	} else {
		err := walkObject(text, func(key string, value any) bool {
			in, ok := projectionFlag(value)
			if !ok || key == "" {
				return false
			}
			add(key, in)
			return true
		})
		if err != nil {
			return Projection{}
		}
	}

	var p Projection
	var included, excluded []string
	for _, field := range order {
		if field == "_id" {
			p.HideID = !include[field]
			continue
		}
		if include[field] {
			included = append(included, field)
		} else {
			excluded = append(excluded, field)
		}
	}

	switch {
	case len(included) > 0 && len(excluded) > 0:
		return Projection{}
	case len(included) > 0:
		p.Fields = included
	case len(excluded) > 0:
		p.Fields = excluded
		p.Exclude = true
	case p.HideID:
		p.Exclude = true
	}
	return p
}

func projectionFlag(v any) (include bool, ok bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return false, false
		}
		return f != 0, true
	}
	return false, false
}

// Apply применяет проекцию к JSON-документу записи
func (p Projection) Apply(doc map[string]any) map[string]any {
	if p.IsEmpty() {
		return doc
	}

	if p.Exclude {
		out := make(map[string]any, len(doc))
		for k, v := range doc {
			out[k] = v
		}
		for _, field := range p.Fields {
			delete(out, field)
		}
		if p.HideID {
			delete(out, "_id")
		}
		return out
	}

	out := make(map[string]any, len(p.Fields)+1)
	if !p.HideID {
		if id, ok := doc["_id"]; ok {
			out["_id"] = id
		}
	}
	for _, field := range p.Fields {
		if v, ok := doc[field]; ok {
			out[field] = v
		}
	}
	return out
}

// walkObject обходит ключи JSON-объекта в исходном порядке.
// Обход прекращается с ошибкой, если fn вернула false.
func walkObject(text string, fn func(key string, value any) bool) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errUnsupported
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return errUnsupported
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return err
		}
		if !fn(key, value) {
			return errUnsupported
		}
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errUnsupported
	}
	return nil
}
