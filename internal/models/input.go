package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// FieldError - значение поля в теле запроса не удалось привести к нужному типу
type FieldError struct {
	Field string
	Value string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("Invalid value for %s: %q", e.Field, e.Value)
}

// TaskInput - тело запросов на создание и замену задачи.
// Пустой AssignedUserName означает, что имя не передано.
type TaskInput struct {
	Name             string
	Description      string
	Deadline         *time.Time
	Completed        bool
	AssignedUser     ID
	AssignedUserName string
}

type taskInputJSON struct {
	Name             string          `json:"name"`
	Description      *string         `json:"description"`
	Deadline         json.RawMessage `json:"deadline"`
	Completed        json.RawMessage `json:"completed"`
	AssignedUser     *string         `json:"assignedUser"`
	AssignedUserName *string         `json:"assignedUserName"`
}

func (in *TaskInput) UnmarshalJSON(data []byte) error {
	var raw taskInputJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	deadline, err := parseTimeJSON(raw.Deadline)
	if err != nil {
		return &FieldError{Field: "deadline", Value: string(raw.Deadline)}
	}
	completed, err := parseBoolJSON(raw.Completed)
	if err != nil {
		return &FieldError{Field: "completed", Value: string(raw.Completed)}
	}

	*in = TaskInput{
		Name:      raw.Name,
		Deadline:  deadline,
		Completed: completed,
	}
	if raw.Description != nil {
		in.Description = *raw.Description
	}
	if raw.AssignedUser != nil {
		in.AssignedUser = ID(strings.TrimSpace(*raw.AssignedUser))
	}
	if raw.AssignedUserName != nil {
		in.AssignedUserName = normalizeUserName(*raw.AssignedUserName)
	}
	return nil
}

// TaskInputFromForm разбирает тело application/x-www-form-urlencoded
func TaskInputFromForm(form url.Values) (TaskInput, error) {
	in := TaskInput{
		Name:             form.Get("name"),
		Description:      form.Get("description"),
		AssignedUser:     ID(strings.TrimSpace(form.Get("assignedUser"))),
		AssignedUserName: normalizeUserName(form.Get("assignedUserName")),
	}

	if s := form.Get("deadline"); strings.TrimSpace(s) != "" {
		t, err := ParseTime(s)
		if err != nil {
			return TaskInput{}, &FieldError{Field: "deadline", Value: s}
		}
		in.Deadline = &t
	}
	if s := form.Get("completed"); s != "" {
		b, err := parseBool(s)
		if err != nil {
			return TaskInput{}, &FieldError{Field: "completed", Value: s}
		}
		in.Completed = b
	}
	return in, nil
}

// UserInput - тело запросов на создание и замену пользователя
type UserInput struct {
	Name         string
	Email        string
	PendingTasks []ID
}

type userInputJSON struct {
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	PendingTasks json.RawMessage `json:"pendingTasks"`
}

func (in *UserInput) UnmarshalJSON(data []byte) error {
	var raw userInputJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	pending, err := parseIDListJSON(raw.PendingTasks)
	if err != nil {
		return &FieldError{Field: "pendingTasks", Value: string(raw.PendingTasks)}
	}

	*in = UserInput{
		Name:         raw.Name,
		Email:        strings.TrimSpace(raw.Email),
		PendingTasks: UniqueIDs(pending),
	}
	return nil
}

// UserInputFromForm понимает как pendingTasks=a&pendingTasks=b, так и pendingTasks[]=a
func UserInputFromForm(form url.Values) UserInput {
	var pending []ID
	for _, key := range []string{"pendingTasks", "pendingTasks[]"} {
		for _, v := range form[key] {
			pending = append(pending, ID(strings.TrimSpace(v)))
		}
	}
	return UserInput{
		Name:         form.Get("name"),
		Email:        strings.TrimSpace(form.Get("email")),
		PendingTasks: UniqueIDs(pending),
	}
}

func normalizeUserName(name string) string {
	if name == Unassigned {
		return ""
	}
	return name
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(s))
}

// ParseBoolValue принимает значение фильтра: bool или строку "true"/"false"
func ParseBoolValue(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

func parseBoolJSON(raw json.RawMessage) (bool, error) {
	if isNullJSON(raw) {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return false, nil
		}
		return parseBool(s)
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil && (n == 0 || n == 1) {
		return n == 1, nil
	}
	return false, fmt.Errorf("не логическое значение: %s", raw)
}

// parseIDListJSON принимает массив строк или одну строку
func parseIDListJSON(raw json.RawMessage) ([]ID, error) {
	if isNullJSON(raw) {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var single string
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, err
		}
		list = []string{single}
	}

	ids := make([]ID, 0, len(list))
	for _, s := range list {
		ids = append(ids, ID(strings.TrimSpace(s)))
	}
	return ids, nil
}

func isNullJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func toDocument(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
