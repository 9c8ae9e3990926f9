package models

import (
	"encoding/json"
	"time"
)

// Unassigned - имя исполнителя, которое отдаётся наружу для задачи без исполнителя.
// Внутри приложения отсутствие исполнителя - это Assignee == nil.
const Unassigned = "unassigned"

// Assignment - ссылка задачи на пользователя вместе с кэшем его имени.
// Пустой UserName - имя ещё не известно, хранится как Unassigned.
type Assignment struct {
	User     ID
	UserName string
}

type Task struct {
	ID          ID
	Name        string
	Description string
	Deadline    time.Time
	Completed   bool
	Assignee    *Assignment
	DateCreated time.Time
}

// AssignedUser возвращает идентификатор исполнителя или пустой ID
func (t *Task) AssignedUser() ID {
	if t.Assignee == nil {
		return ""
	}
	return t.Assignee.User
}

// AssignedUserName возвращает кэш имени исполнителя в том виде, в каком он хранится
func (t *Task) AssignedUserName() string {
	if t.Assignee == nil {
		return Unassigned
	}
	return t.Assignee.StoredUserName()
}

// StoredUserName - кэш имени в том виде, в каком он хранится
func (a Assignment) StoredUserName() string {
	if a.UserName == "" {
		return Unassigned
	}
	return a.UserName
}

// IsPending - задача не выполнена и назначена на пользователя
func (t *Task) IsPending() bool {
	return t.Assignee != nil && !t.Completed
}

// AssignmentFromFields собирает ссылку из сохранённых полей assignedUser/assignedUserName
func AssignmentFromFields(user, userName string) *Assignment {
	if user == "" {
		return nil
	}
	if userName == Unassigned {
		userName = ""
	}
	return &Assignment{User: ID(user), UserName: userName}
}

type taskJSON struct {
	ID               ID     `json:"_id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	Deadline         string `json:"deadline"`
	Completed        bool   `json:"completed"`
	AssignedUser     ID     `json:"assignedUser"`
	AssignedUserName string `json:"assignedUserName"`
	DateCreated      string `json:"dateCreated"`
}

func (t Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(taskJSON{
		ID:               t.ID,
		Name:             t.Name,
		Description:      t.Description,
		Deadline:         FormatTime(t.Deadline),
		Completed:        t.Completed,
		AssignedUser:     t.AssignedUser(),
		AssignedUserName: t.AssignedUserName(),
		DateCreated:      FormatTime(t.DateCreated),
	})
}

func (t *Task) UnmarshalJSON(data []byte) error {
	var raw taskJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	deadline, err := ParseTime(raw.Deadline)
	if err != nil && raw.Deadline != "" {
		return &FieldError{Field: "deadline", Value: raw.Deadline}
	}
	created, err := ParseTime(raw.DateCreated)
	if err != nil && raw.DateCreated != "" {
		return &FieldError{Field: "dateCreated", Value: raw.DateCreated}
	}

	*t = Task{
		ID:          raw.ID,
		Name:        raw.Name,
		Description: raw.Description,
		Deadline:    deadline,
		Completed:   raw.Completed,
		Assignee:    AssignmentFromFields(string(raw.AssignedUser), raw.AssignedUserName),
		DateCreated: created,
	}
	return nil
}

// Document возвращает задачу в виде JSON-документа (для проекций select)
func (t Task) Document() (map[string]any, error) {
	return toDocument(t)
}
