package storage

import (
	"strconv"
	"strings"

	"taskhub/internal/models"
	"taskhub/internal/query"
)

type fieldKind int

const (
	kindText fieldKind = iota
	kindBool
	kindTime
	// kindPending - поле pendingTasks, хранится в user_pending_tasks
	kindPending
)

type column struct {
	expr string
	kind fieldKind
}

var taskFields = map[string]column{
	"_id":              {"id", kindText},
	"name":             {"name", kindText},
	"description":      {"description", kindText},
	"deadline":         {"deadline", kindTime},
	"completed":        {"completed", kindBool},
	"assignedUser":     {"assigned_user", kindText},
	"assignedUserName": {"assigned_user_name", kindText},
	"dateCreated":      {"date_created", kindTime},
}

var userFields = map[string]column{
	"_id":          {"users.id", kindText},
	"name":         {"users.name", kindText},
	"email":        {"users.email", kindText},
	"dateCreated":  {"users.date_created", kindTime},
	"pendingTasks": {"", kindPending},
}

// buildWhere переводит фильтр в SQL-выражение. Неизвестные поля ведут себя как
// отсутствующие: равенство null для них истинно, остальные сравнения ложны.
func buildWhere(f query.Filter, fields map[string]column) (string, []any) {
	switch v := f.(type) {
	case nil, query.MatchAll:
		return "1", nil
	case query.And:
		return joinFilters([]query.Filter(v), " AND ", "1", fields)
	case query.Or:
		return joinFilters([]query.Filter(v), " OR ", "0", fields)
	case query.Nor:
		expr, args := joinFilters([]query.Filter(v), " OR ", "0", fields)
		return "NOT " + expr, args
	case query.Condition:
		return buildCondition(v, fields)
	}
	return "1", nil
}

func joinFilters(filters []query.Filter, sep, empty string, fields map[string]column) (string, []any) {
	if len(filters) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(filters))
	var args []any
	for _, f := range filters {
		expr, a := buildWhere(f, fields)
		parts = append(parts, expr)
		args = append(args, a...)
	}
	return "(" + strings.Join(parts, sep) + ")", args
}

func buildCondition(c query.Condition, fields map[string]column) (string, []any) {
	col, known := fields[c.Field]
	if !known {
		col = column{expr: "NULL", kind: kindText}
	}

	if col.kind == kindPending {
		return buildPendingCondition(c)
	}

	switch c.Op {
	case query.OpEq:
		return col.expr + " IS ?", []any{convertValue(c.Value, col.kind)}
	case query.OpNe:
		return col.expr + " IS NOT ?", []any{convertValue(c.Value, col.kind)}
	case query.OpGt:
		return col.expr + " > ?", []any{convertValue(c.Value, col.kind)}
	case query.OpGte:
		return col.expr + " >= ?", []any{convertValue(c.Value, col.kind)}
	case query.OpLt:
		return col.expr + " < ?", []any{convertValue(c.Value, col.kind)}
	case query.OpLte:
		return col.expr + " <= ?", []any{convertValue(c.Value, col.kind)}
	case query.OpIn, query.OpNin:
		values, _ := c.Value.([]any)
		if len(values) == 0 {
			if c.Op == query.OpIn {
				return "0", nil
			}
			return "1", nil
		}
		args := make([]any, 0, len(values))
		for _, v := range values {
			args = append(args, convertValue(v, col.kind))
		}
		if c.Op == query.OpIn {
			return col.expr + " IN (" + placeholders(len(args)) + ")", args
		}
		return "(" + col.expr + " IS NULL OR " + col.expr + " NOT IN (" + placeholders(len(args)) + "))", args
	case query.OpExists:
		exists, _ := c.Value.(bool)
		if exists == known {
			return "1", nil
		}
		return "0", nil
	}
	return "1", nil
}

func buildPendingCondition(c query.Condition) (string, []any) {
	const sub = "SELECT 1 FROM user_pending_tasks p WHERE p.user_id = users.id AND p.task_id"

	switch c.Op {
	case query.OpEq, query.OpNe:
		expr := "EXISTS (" + sub + " = ?)"
		if c.Op == query.OpNe {
			expr = "NOT " + expr
		}
		return expr, []any{convertValue(c.Value, kindText)}
	case query.OpIn, query.OpNin:
		values, _ := c.Value.([]any)
		if len(values) == 0 {
			if c.Op == query.OpIn {
				return "0", nil
			}
			return "1", nil
		}
		expr := "EXISTS (" + sub + " IN (" + placeholders(len(values)) + "))"
		if c.Op == query.OpNin {
			expr = "NOT " + expr
		}
		return expr, values
	case query.OpExists:
		if exists, _ := c.Value.(bool); exists {
			return "1", nil
		}
		return "0", nil
	}
	return "0", nil
}

// convertValue приводит значение фильтра к представлению в колонке
func convertValue(v any, kind fieldKind) any {
	switch kind {
	case kindBool:
		if b, ok := models.ParseBoolValue(v); ok {
			if b {
				return int64(1)
			}
			return int64(0)
		}
	case kindTime:
		if s, ok := v.(string); ok {
			if t, err := models.ParseTime(s); err == nil {
				return toMillis(t)
			}
		}
	}
	return v
}

func buildOrderBy(sort query.Sort, fields map[string]column) string {
	var parts []string
	for _, s := range sort {
		col, ok := fields[s.Field]
		if !ok || col.kind == kindPending {
			continue
		}
		dir := " ASC"
		if s.Desc {
			dir = " DESC"
		}
		parts = append(parts, col.expr+dir)
	}
	parts = append(parts, "rowid ASC")
	return " ORDER BY " + strings.Join(parts, ", ")
}

func buildLimit(skip, limit int64) string {
	if skip == 0 && limit == 0 {
		return ""
	}
	l := int64(-1)
	if limit > 0 {
		l = limit
	}
	return " LIMIT " + strconv.FormatInt(l, 10) + " OFFSET " + strconv.FormatInt(skip, 10)
}
