package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taskhub/internal/manager"
	"taskhub/internal/models"
	"taskhub/internal/query"
)

const listLimit = 20

const helpText = `🤖 *Помощь по командам*

*/tasks* - Незавершённые задачи по сроку
*/users* - Список пользователей
*/pending email* - Задачи пользователя
*/add название ; срок ; email* - Добавить задачу
*/done id* - Отметить задачу выполненной
*/delete id* - Удалить задачу
*/help* - Показать эту справку

*Примеры:*
/add Купить молоко ; завтра
/add Отчёт ; в пятницу ; ann@example.com
/done 65f1c0...`

// commands - команды бота поверх менеджеров. Каждая команда возвращает текст ответа.
type commands struct {
	tasks *manager.TaskManager
	users *manager.UserManager
	now   func() time.Time
}

func (c *commands) handle(ctx context.Context, command, args string) string {
	args = strings.TrimSpace(args)
	switch command {
	case "start":
		return "🎯 *Добро пожаловать в TaskHub!*\n\n" + helpText
	case "help":
		return helpText
	case "tasks":
		return c.listTasks(ctx)
	case "users":
		return c.listUsers(ctx)
	case "pending":
		return c.pending(ctx, args)
	case "add":
		return c.addTask(ctx, args)
	case "done":
		return c.completeTask(ctx, args)
	case "delete":
		return c.deleteTask(ctx, args)
	default:
		return "Неизвестная команда. Используйте /help для списка команд."
	}
}

type addArgs struct {
	Name     string
	Deadline time.Time
	Email    string
}

// parseAddArgs разбирает "название ; срок ; email", email необязателен
func parseAddArgs(text string, now time.Time) (addArgs, error) {
	parts := strings.Split(text, ";")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" {
		return addArgs{}, fmt.Errorf("формат: /add название ; срок ; email")
	}

	deadline, err := parseDeadline(parts[1], now)
	if err != nil {
		return addArgs{}, err
	}
	a := addArgs{Name: parts[0], Deadline: deadline}
	if len(parts) == 3 {
		a.Email = parts[2]
	}
	return a, nil
}

func (c *commands) addTask(ctx context.Context, args string) string {
	a, err := parseAddArgs(args, c.now())
	if err != nil {
		return "❌ " + err.Error()
	}

	in := models.TaskInput{Name: a.Name, Deadline: &a.Deadline}
	if a.Email != "" {
		u, err := c.users.FindByEmail(ctx, a.Email)
		if err != nil {
			return c.failure(err, "Пользователь не найден")
		}
		in.AssignedUser = u.ID
	}

	task, err := c.tasks.Create(ctx, in)
	if err != nil {
		return c.failure(err, "Задача не найдена")
	}
	return fmt.Sprintf("✅ *Задача добавлена!*\n\nID: `%s`\nЗадача: %s\nСрок: %s\nИсполнитель: %s",
		task.ID, escape(task.Name), formatDate(task.Deadline), escape(task.AssignedUserName()))
}

func (c *commands) listTasks(ctx context.Context) string {
	q := query.Query{
		Filter: query.Condition{Field: "completed", Op: query.OpEq, Value: false},
		Sort:   query.Sort{{Field: "deadline"}},
		Limit:  listLimit,
	}
	l, err := c.tasks.List(ctx, q)
	if err != nil {
		return c.failure(err, "")
	}
	if len(l.Items) == 0 {
		return "📭 Незавершённых задач нет"
	}

	var b strings.Builder
	b.WriteString("📋 *Незавершённые задачи:*\n\n")
	writeTasks(&b, l.Items)
	return b.String()
}

func (c *commands) listUsers(ctx context.Context) string {
	l, err := c.users.List(ctx, query.Query{Filter: query.MatchAll{}, Sort: query.Sort{{Field: "name"}}, Limit: listLimit})
	if err != nil {
		return c.failure(err, "")
	}
	if len(l.Items) == 0 {
		return "📭 Пользователей нет"
	}

	var b strings.Builder
	b.WriteString("👥 *Пользователи:*\n\n")
	for _, u := range l.Items {
		fmt.Fprintf(&b, "%s <%s> - задач: %d\n", escape(u.Name), escape(u.Email), len(u.PendingTasks))
	}
	return b.String()
}

func (c *commands) pending(ctx context.Context, email string) string {
	if email == "" {
		return "Укажите email: /pending ann@example.com"
	}
	u, err := c.users.FindByEmail(ctx, email)
	if err != nil {
		return c.failure(err, "Пользователь не найден")
	}
	if len(u.PendingTasks) == 0 {
		return fmt.Sprintf("📭 У %s нет незавершённых задач", escape(u.Name))
	}

	tasks := make([]models.Task, 0, len(u.PendingTasks))
	for _, id := range u.PendingTasks {
		task, err := c.tasks.Get(ctx, id)
		if manager.IsNotFound(err) {
			continue
		}
		if err != nil {
			return c.failure(err, "")
		}
		tasks = append(tasks, *task)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 *Задачи %s:*\n\n", escape(u.Name))
	writeTasks(&b, tasks)
	return b.String()
}

func (c *commands) completeTask(ctx context.Context, id string) string {
	if id == "" {
		return "Укажите id задачи: /done id"
	}
	task, err := c.tasks.Get(ctx, models.ID(id))
	if err != nil {
		return c.failure(err, "Задача не найдена")
	}
	if task.Completed {
		return "Задача уже выполнена"
	}

	in := models.TaskInput{
		Name:         task.Name,
		Description:  task.Description,
		Deadline:     &task.Deadline,
		Completed:    true,
		AssignedUser: task.AssignedUser(),
	}
	if task.Assignee != nil {
		in.AssignedUserName = task.Assignee.UserName
	}
	if _, err := c.tasks.Replace(ctx, task.ID, in); err != nil {
		return c.failure(err, "Задача не найдена")
	}
	return fmt.Sprintf("✅ Задача «%s» отмечена выполненной!", escape(task.Name))
}

func (c *commands) deleteTask(ctx context.Context, id string) string {
	if id == "" {
		return "Укажите id задачи: /delete id"
	}
	if err := c.tasks.Delete(ctx, models.ID(id)); err != nil {
		return c.failure(err, "Задача не найдена")
	}
	return "🗑️ Задача удалена!"
}

// failure превращает ошибку менеджера в текст ответа
func (c *commands) failure(err error, notFound string) string {
	switch {
	case manager.IsNotFound(err) && notFound != "":
		return "❌ " + notFound
	case manager.IsValidation(err), manager.IsConflict(err):
		return "❌ Ошибка: " + err.Error()
	default:
		return "❌ Ошибка сервера, попробуйте позже"
	}
}

func writeTasks(b *strings.Builder, tasks []models.Task) {
	for _, task := range tasks {
		status := "🟢"
		if task.Completed {
			status = "✅"
		}
		fmt.Fprintf(b, "%s %s (до %s) - %s\n`%s`\n\n",
			status, escape(task.Name), formatDate(task.Deadline), escape(task.AssignedUserName()), task.ID)
	}
}

func formatDate(t time.Time) string {
	return t.UTC().Format("02.01.2006")
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// escape экранирует пользовательский текст для Markdown
func escape(s string) string {
	return markdownEscaper.Replace(s)
}
