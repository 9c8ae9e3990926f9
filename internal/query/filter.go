package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strings"
)

// Filter - разобранное условие where. Реализации: MatchAll, And, Or, Nor, Condition.
type Filter interface {
	filter()
}

// MatchAll - условие по умолчанию, подходит любая запись
type MatchAll struct{}

type And []Filter

type Or []Filter

type Nor []Filter

type Op string

const (
	OpEq     Op = "$eq"
	OpNe     Op = "$ne"
	OpGt     Op = "$gt"
	OpGte    Op = "$gte"
	OpLt     Op = "$lt"
	OpLte    Op = "$lte"
	OpIn     Op = "$in"
	OpNin    Op = "$nin"
	OpExists Op = "$exists"
)

// Condition - сравнение одного поля. Для $in/$nin Value имеет тип []any,
// для $exists - bool, для остальных - скаляр (string, int64, float64, bool или nil).
type Condition struct {
	Field string
	Op    Op
	Value any
}

func (MatchAll) filter()  {}
func (And) filter()       {}
func (Or) filter()        {}
func (Nor) filter()       {}
func (Condition) filter() {}

var errUnsupported = errors.New("неподдерживаемое выражение фильтра")

// ParseFilter разбирает JSON-документ where. Любая ошибка даёт MatchAll.
func ParseFilter(text string) Filter {
	if strings.TrimSpace(text) == "" {
		return MatchAll{}
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil || doc == nil {
		return MatchAll{}
	}
	if dec.More() {
		return MatchAll{}
	}

	f, err := parseDocument(doc)
	if err != nil {
		return MatchAll{}
	}
	return f
}

func parseDocument(doc map[string]any) (Filter, error) {
	var parts And
	for _, key := range sortedKeys(doc) {
		value := doc[key]
		switch key {
		case "$and", "$or", "$nor":
			children, err := parseList(value)
			if err != nil {
				return nil, err
			}
			switch key {
			case "$and":
				parts = append(parts, And(children))
			case "$or":
				parts = append(parts, Or(children))
			default:
				parts = append(parts, Nor(children))
			}
		default:
			if strings.HasPrefix(key, "$") {
				return nil, errUnsupported
			}
			conds, err := parseField(key, value)
			if err != nil {
				return nil, err
			}
			parts = append(parts, conds...)
		}
	}
	return simplify(parts), nil
}

func parseList(value any) ([]Filter, error) {
	items, ok := value.([]any)
	if !ok || len(items) == 0 {
		return nil, errUnsupported
	}
	out := make([]Filter, 0, len(items))
	for _, item := range items {
		doc, ok := item.(map[string]any)
		if !ok {
			return nil, errUnsupported
		}
		f, err := parseDocument(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func parseField(field string, value any) ([]Filter, error) {
	ops, isDoc := value.(map[string]any)
	if !isDoc {
		v, err := scalar(value)
		if err != nil {
			return nil, err
		}
		return []Filter{Condition{Field: field, Op: OpEq, Value: v}}, nil
	}
	if len(ops) == 0 {
		return nil, errUnsupported
	}

	var out []Filter
	for _, name := range sortedKeys(ops) {
		op := Op(name)
		raw := ops[name]
		switch op {
		case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
			v, err := scalar(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, Condition{Field: field, Op: op, Value: v})
		case OpIn, OpNin:
			items, ok := raw.([]any)
			if !ok {
				return nil, errUnsupported
			}
			values := make([]any, 0, len(items))
			for _, item := range items {
				v, err := scalar(item)
				if err != nil {
					return nil, err
				}
				values = append(values, v)
			}
			out = append(out, Condition{Field: field, Op: op, Value: values})
		case OpExists:
			v, err := scalar(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, Condition{Field: field, Op: op, Value: truthy(v)})
		default:
			return nil, errUnsupported
		}
	}
	return out, nil
}

// scalar приводит json.Number к int64/float64 и отбрасывает вложенные документы
func scalar(v any) (any, error) {
	switch val := v.(type) {
	case nil, string, bool:
		return val, nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, errUnsupported
		}
		return f, nil
	default:
		return nil, errUnsupported
	}
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case int64:
		return val != 0
	case float64:
		return val != 0
	case string:
		return val != ""
	}
	return true
}

func simplify(parts And) Filter {
	switch len(parts) {
	case 0:
		return MatchAll{}
	case 1:
		return parts[0]
	}
	return parts
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
