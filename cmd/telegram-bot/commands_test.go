package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"

	"taskhub/internal/manager"
	"taskhub/internal/models"
	"taskhub/internal/storage"
)

var testNow = time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)

func newTestCommands(t *testing.T) *commands {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return &commands{
		tasks: manager.NewTaskManager(store, nil),
		users: manager.NewUserManager(store, nil),
		now:   func() time.Time { return testNow },
	}
}

func TestParseDeadline(t *testing.T) {
	got, err := parseDeadline("2025-04-01", testNow)
	if err != nil || !got.Equal(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("parseDeadline(2025-04-01) = %v, %v", got, err)
	}

	got, err = parseDeadline("tomorrow", testNow)
	if err != nil {
		t.Fatalf("parseDeadline(tomorrow) failed: %v", err)
	}
	if y, m, d := got.Date(); y != 2025 || m != time.March || d != 13 {
		t.Errorf("tomorrow = %v", got)
	}

	for _, text := range []string{"", "абракадабра"} {
		if _, err := parseDeadline(text, testNow); err == nil {
			t.Errorf("parseDeadline(%q): ожидалась ошибка", text)
		}
	}
}

func TestParseAddArgs(t *testing.T) {
	a, err := parseAddArgs(" Отчёт ; 2025-04-01 ; a@x.com ", testNow)
	if err != nil {
		t.Fatalf("parseAddArgs() failed: %v", err)
	}
	if a.Name != "Отчёт" || a.Email != "a@x.com" || a.Deadline.Day() != 1 {
		t.Errorf("неверный разбор: %+v", a)
	}

	a, err = parseAddArgs("Молоко;2025-04-02", testNow)
	if err != nil || a.Email != "" {
		t.Errorf("без email: %+v, %v", a, err)
	}

	for _, text := range []string{"", "Только название", " ; 2025-04-01", "a;b;c;d"} {
		if _, err := parseAddArgs(text, testNow); err == nil {
			t.Errorf("parseAddArgs(%q): ожидалась ошибка", text)
		}
	}
}

func TestBotCommandsFlow(t *testing.T) {
	c := newTestCommands(t)
	ctx := context.Background()

	ann, err := c.users.Create(ctx, models.UserInput{Name: "Ann", Email: "a@x.com"})
	if err != nil {
		t.Fatal(err)
	}

	reply := c.handle(ctx, "add", "Отчёт ; 2025-04-01 ; a@x.com")
	if !strings.Contains(reply, "Задача добавлена") || !strings.Contains(reply, "Ann") {
		t.Fatalf("неожиданный ответ /add: %s", reply)
	}

	ann, _ = c.users.Get(ctx, ann.ID)
	if len(ann.PendingTasks) != 1 {
		t.Fatalf("pendingTasks = %v", ann.PendingTasks)
	}
	taskID := ann.PendingTasks[0].String()

	if reply := c.handle(ctx, "pending", "a@x.com"); !strings.Contains(reply, "Отчёт") {
		t.Errorf("неожиданный ответ /pending: %s", reply)
	}
	if reply := c.handle(ctx, "tasks", ""); !strings.Contains(reply, taskID) {
		t.Errorf("неожиданный ответ /tasks: %s", reply)
	}
	if reply := c.handle(ctx, "users", ""); !strings.Contains(reply, "задач: 1") {
		t.Errorf("неожиданный ответ /users: %s", reply)
	}

	if reply := c.handle(ctx, "done", taskID); !strings.Contains(reply, "выполненной") {
		t.Fatalf("неожиданный ответ /done: %s", reply)
	}
	ann, _ = c.users.Get(ctx, ann.ID)
	if len(ann.PendingTasks) != 0 {
		t.Errorf("после /done pendingTasks = %v", ann.PendingTasks)
	}
	task, _ := c.tasks.Get(ctx, models.ID(taskID))
	if task.AssignedUserName() != "Ann" {
		t.Errorf("после /done исполнитель потерян: %q", task.AssignedUserName())
	}
	if reply := c.handle(ctx, "tasks", ""); !strings.Contains(reply, "нет") {
		t.Errorf("выполненная задача попала в /tasks: %s", reply)
	}

	if reply := c.handle(ctx, "delete", taskID); !strings.Contains(reply, "удалена") {
		t.Errorf("неожиданный ответ /delete: %s", reply)
	}
	if reply := c.handle(ctx, "delete", taskID); !strings.Contains(reply, "не найдена") {
		t.Errorf("повторный /delete: %s", reply)
	}
}

func TestBotCommandErrors(t *testing.T) {
	c := newTestCommands(t)
	ctx := context.Background()

	cases := map[string][2]string{
		"неизвестная команда": {"foo", ""},
		"add без срока":       {"add", "Отчёт"},
		"add с чужим email":   {"add", "Отчёт ; 2025-04-01 ; nobody@x.com"},
		"pending без email":   {"pending", ""},
		"pending чужой":       {"pending", "nobody@x.com"},
		"done без id":         {"done", ""},
		"done чужой":          {"done", "не-идентификатор"},
	}
	want := map[string]string{
		"неизвестная команда": "Неизвестная команда",
		"add без срока":       "формат",
		"add с чужим email":   "Пользователь не найден",
		"pending без email":   "Укажите email",
		"pending чужой":       "Пользователь не найден",
		"done без id":         "Укажите id",
		"done чужой":          "Задача не найдена",
	}
	for name, in := range cases {
		if reply := c.handle(ctx, in[0], in[1]); !strings.Contains(reply, want[name]) {
			t.Errorf("%s: ответ %q не содержит %q", name, reply, want[name])
		}
	}
}

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func TestBotHandleMessage(t *testing.T) {
	c := newTestCommands(t)
	api := &fakeSender{}
	bot := &Bot{api: api, commands: c}

	raw := `{"update_id":1,"message":{"message_id":1,"date":0,
		"chat":{"id":42,"type":"private"},"from":{"id":7,"username":"ann"},
		"text":"/help","entities":[{"type":"bot_command","offset":0,"length":5}]}}`
	var update tgbotapi.Update
	if err := json.Unmarshal([]byte(raw), &update); err != nil {
		t.Fatal(err)
	}

	bot.handleMessage(context.Background(), update.Message)

	if len(api.sent) != 1 {
		t.Fatalf("отправлено %d сообщений, ожидалось 1", len(api.sent))
	}
	if api.sent[0].ChatID != 42 || api.sent[0].ParseMode != tgbotapi.ModeMarkdown {
		t.Errorf("неверное сообщение: %+v", api.sent[0])
	}
	if !strings.Contains(api.sent[0].Text, "Помощь по командам") {
		t.Errorf("неверный текст: %s", api.sent[0].Text)
	}
}
