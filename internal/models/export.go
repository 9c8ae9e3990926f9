package models

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// SaveJSON сохраняет записи в файл с отступами
func SaveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("ошибка записи %s: %w", path, err)
	}
	return nil
}

func WriteTasksCSV(w io.Writer, tasks []Task) error {
	cw := csv.NewWriter(w)
	header := []string{"_id", "name", "description", "deadline", "completed", "assignedUser", "assignedUserName", "dateCreated"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, t := range tasks {
		record := []string{
			t.ID.String(),
			t.Name,
			t.Description,
			FormatTime(t.Deadline),
			strconv.FormatBool(t.Completed),
			t.AssignedUser().String(),
			t.AssignedUserName(),
			FormatTime(t.DateCreated),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteUsersCSV пишет pendingTasks одной колонкой через ";"
func WriteUsersCSV(w io.Writer, users []User) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"_id", "name", "email", "pendingTasks", "dateCreated"}); err != nil {
		return err
	}
	for _, u := range users {
		pending := make([]string, 0, len(u.PendingTasks))
		for _, id := range u.PendingTasks {
			pending = append(pending, id.String())
		}
		record := []string{
			u.ID.String(),
			u.Name,
			u.Email,
			strings.Join(pending, ";"),
			FormatTime(u.DateCreated),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Seed - начальные данные для cmd/migrate. Задачи ссылаются на пользователей по email,
// так как идентификаторы выдаёт хранилище.
type Seed struct {
	Users []SeedUser `yaml:"users" json:"users"`
	Tasks []SeedTask `yaml:"tasks" json:"tasks"`
}

type SeedUser struct {
	Name  string `yaml:"name" json:"name"`
	Email string `yaml:"email" json:"email"`
}

type SeedTask struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Deadline    string `yaml:"deadline" json:"deadline"`
	Completed   bool   `yaml:"completed" json:"completed"`
	Assignee    string `yaml:"assignee" json:"assignee"`
}

// LoadSeed читает seed-файл в формате YAML или JSON (по расширению)
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", path, err)
	}
	return ParseSeed(data, filepath.Ext(path))
}

func ParseSeed(data []byte, ext string) (*Seed, error) {
	var seed Seed
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &seed); err != nil {
			return nil, fmt.Errorf("ошибка разбора YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &seed); err != nil {
			return nil, fmt.Errorf("ошибка разбора JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("неподдерживаемый формат %q, используйте .yaml или .json", ext)
	}
	return &seed, nil
}
