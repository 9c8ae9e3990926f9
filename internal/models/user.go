package models

import (
	"encoding/json"
	"time"
)

type User struct {
	ID           ID
	Name         string
	Email        string
	PendingTasks []ID
	DateCreated  time.Time
}

// HasPendingTask проверяет, есть ли задача в pendingTasks
func (u *User) HasPendingTask(id ID) bool {
	for _, pending := range u.PendingTasks {
		if pending == id {
			return true
		}
	}
	return false
}

type userJSON struct {
	ID           ID     `json:"_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PendingTasks []ID   `json:"pendingTasks"`
	DateCreated  string `json:"dateCreated"`
}

func (u User) MarshalJSON() ([]byte, error) {
	pending := u.PendingTasks
	if pending == nil {
		pending = []ID{}
	}
	return json.Marshal(userJSON{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PendingTasks: pending,
		DateCreated:  FormatTime(u.DateCreated),
	})
}

func (u *User) UnmarshalJSON(data []byte) error {
	var raw userJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	created, err := ParseTime(raw.DateCreated)
	if err != nil && raw.DateCreated != "" {
		return &FieldError{Field: "dateCreated", Value: raw.DateCreated}
	}

	*u = User{
		ID:           raw.ID,
		Name:         raw.Name,
		Email:        raw.Email,
		PendingTasks: UniqueIDs(raw.PendingTasks),
		DateCreated:  created,
	}
	return nil
}

func (u User) Document() (map[string]any, error) {
	return toDocument(u)
}
