package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestTaskJSONUnassigned(t *testing.T) {
	task := Task{
		ID:       "t1",
		Name:     "Купить молоко",
		Deadline: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	doc, err := task.Document()
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if doc["assignedUser"] != "" {
		t.Errorf("assignedUser = %v, ожидалась пустая строка", doc["assignedUser"])
	}
	if doc["assignedUserName"] != Unassigned {
		t.Errorf("assignedUserName = %v, ожидалось %q", doc["assignedUserName"], Unassigned)
	}
	if doc["deadline"] != "2025-01-01T00:00:00.000Z" {
		t.Errorf("deadline = %v", doc["deadline"])
	}
	if doc["_id"] != "t1" {
		t.Errorf("_id = %v", doc["_id"])
	}
}

func TestTaskJSONRoundTripKeepsAssignee(t *testing.T) {
	task := Task{
		ID:       "t1",
		Name:     "Write report",
		Deadline: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		Assignee: &Assignment{User: "u1", UserName: "Ann"},
	}
	data, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var back Task
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.AssignedUser() != "u1" || back.AssignedUserName() != "Ann" {
		t.Errorf("исполнитель потерян: %+v", back.Assignee)
	}
	if !back.Deadline.Equal(task.Deadline) {
		t.Errorf("deadline = %v, ожидалось %v", back.Deadline, task.Deadline)
	}
}

func TestUserJSONEmptyPendingTasks(t *testing.T) {
	data, err := json.Marshal(User{ID: "u1", Name: "Ann", Email: "a@x.com"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"pendingTasks":[]`) {
		t.Errorf("pendingTasks должен быть пустым массивом: %s", data)
	}
}

func TestTaskInputDeadlineFormats(t *testing.T) {
	want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := map[string]string{
		"date":        `{"name":"a","deadline":"2025-01-01"}`,
		"rfc3339":     `{"name":"a","deadline":"2025-01-01T00:00:00Z"}`,
		"millis":      `{"name":"a","deadline":1735689600000}`,
		"millis text": `{"name":"a","deadline":"1735689600000"}`,
		"year text":   `{"name":"a","deadline":"2025"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			var in TaskInput
			if err := json.Unmarshal([]byte(body), &in); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if in.Deadline == nil || !in.Deadline.Equal(want) {
				t.Errorf("deadline = %v, ожидалось %v", in.Deadline, want)
			}
		})
	}
}

func TestParseTimeYearAndMillis(t *testing.T) {
	got, err := ParseTime("2025")
	if err != nil || !got.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ParseTime(2025) = %v, %v", got, err)
	}

	got, err = ParseTime("20250")
	if err != nil || !got.Equal(time.UnixMilli(20250)) {
		t.Errorf("ParseTime(20250) = %v, %v", got, err)
	}

	// число в JSON остаётся миллисекундами
	var in TaskInput
	if err := json.Unmarshal([]byte(`{"name":"a","deadline":2025}`), &in); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if in.Deadline == nil || !in.Deadline.Equal(time.UnixMilli(2025)) {
		t.Errorf("deadline = %v, ожидалось %v", in.Deadline, time.UnixMilli(2025))
	}
}

func TestTaskInputInvalidDeadline(t *testing.T) {
	var in TaskInput
	err := json.Unmarshal([]byte(`{"name":"a","deadline":"завтра"}`), &in)

	var fieldErr *FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "deadline" {
		t.Fatalf("ожидалась FieldError для deadline, получено %v", err)
	}
}

func TestTaskInputMissingDeadlineAndSentinelName(t *testing.T) {
	var in TaskInput
	body := `{"name":"a","deadline":"","completed":"true","assignedUser":" u1 ","assignedUserName":"unassigned"}`
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if in.Deadline != nil {
		t.Errorf("пустой deadline должен считаться отсутствующим")
	}
	if !in.Completed {
		t.Errorf("completed=\"true\" не распознан")
	}
	if in.AssignedUser != "u1" {
		t.Errorf("assignedUser = %q", in.AssignedUser)
	}
	if in.AssignedUserName != "" {
		t.Errorf("имя-заглушка должно считаться непереданным, получено %q", in.AssignedUserName)
	}
}

func TestInputFromForm(t *testing.T) {
	form := url.Values{
		"name":           {"Ann"},
		"email":          {" a@x.com "},
		"pendingTasks":   {"t1", "t2"},
		"pendingTasks[]": {"t2", "t3"},
	}
	in := UserInputFromForm(form)
	if in.Email != "a@x.com" {
		t.Errorf("email = %q", in.Email)
	}
	if len(in.PendingTasks) != 3 {
		t.Errorf("pendingTasks = %v, ожидалось 3 уникальных", in.PendingTasks)
	}

	task, err := TaskInputFromForm(url.Values{"name": {"a"}, "deadline": {"2025-01-01"}, "completed": {"no"}})
	if err != nil {
		t.Fatalf("TaskInputFromForm: %v", err)
	}
	if task.Deadline == nil || task.Completed {
		t.Errorf("неверный разбор формы: %+v", task)
	}

	if _, err := TaskInputFromForm(url.Values{"completed": {"может быть"}}); err == nil {
		t.Error("ожидалась ошибка для completed")
	}
}

func TestUserInputSinglePendingTask(t *testing.T) {
	var in UserInput
	if err := json.Unmarshal([]byte(`{"name":"a","email":"b","pendingTasks":"t1"}`), &in); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(in.PendingTasks) != 1 || in.PendingTasks[0] != "t1" {
		t.Errorf("pendingTasks = %v", in.PendingTasks)
	}
}

func TestDiffIDs(t *testing.T) {
	removed, added := DiffIDs([]ID{"a", "b", "c"}, []ID{"b", "c", "d", "d"})
	if len(removed) != 1 || removed[0] != "a" {
		t.Errorf("removed = %v", removed)
	}
	if len(added) != 1 || added[0] != "d" {
		t.Errorf("added = %v", added)
	}
}

func TestCSVExport(t *testing.T) {
	var buf bytes.Buffer
	tasks := []Task{{ID: "t1", Name: "a, b", Assignee: &Assignment{User: "u1", UserName: "Ann"}}}
	if err := WriteTasksCSV(&buf, tasks); err != nil {
		t.Fatalf("WriteTasksCSV: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"a, b"`) || !strings.Contains(out, "Ann") {
		t.Errorf("неверный CSV: %s", out)
	}

	buf.Reset()
	users := []User{{ID: "u1", Name: "Ann", PendingTasks: []ID{"t1", "t2"}}}
	if err := WriteUsersCSV(&buf, users); err != nil {
		t.Fatalf("WriteUsersCSV: %v", err)
	}
	if !strings.Contains(buf.String(), "t1;t2") {
		t.Errorf("неверный CSV: %s", buf.String())
	}
}

func TestParseSeed(t *testing.T) {
	data := []byte(`
users:
  - name: Ann
    email: a@x.com
tasks:
  - name: Write report
    deadline: "2025-01-01"
    assignee: a@x.com
`)
	seed, err := ParseSeed(data, ".yaml")
	if err != nil {
		t.Fatalf("ParseSeed: %v", err)
	}
	if len(seed.Users) != 1 || len(seed.Tasks) != 1 || seed.Tasks[0].Assignee != "a@x.com" {
		t.Errorf("неверный seed: %+v", seed)
	}

	if _, err := ParseSeed(data, ".toml"); err == nil {
		t.Error("ожидалась ошибка для неизвестного формата")
	}
}
