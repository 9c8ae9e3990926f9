package manager

import (
	"context"
	"errors"

	"taskhub/internal/logger"
	"taskhub/internal/models"
	"taskhub/internal/storage"
)

// linker держит в согласии task.assignedUser и user.pendingTasks.
// Запись в «свою» коллекцию операции обязательна, её ошибка возвращается.
// Запись в связанную коллекцию выполняется по возможности: ошибка пишется
// в лог и в taskhub_sync_failures_total, но операцию не прерывает.
type linker struct{}

// assign назначает сохранённую задачу на user. Уже известное имя в кэше
// сохраняется, пустое заменяется именем пользователя.
func (l linker) assign(ctx context.Context, r storage.Repos, task *models.Task, user *models.User) error {
	want := models.Assignment{User: user.ID, UserName: user.Name}
	if a := task.Assignee; a != nil && a.User == user.ID && a.UserName != "" {
		want.UserName = a.UserName
	}

	if task.Assignee == nil || *task.Assignee != want {
		task.Assignee = &want
		if err := r.Tasks().Replace(ctx, task); err != nil {
			return err
		}
	}

	l.syncPending(ctx, r, task, user.ID)
	return nil
}

// unassign снимает исполнителя и сохраняет задачу
func (l linker) unassign(ctx context.Context, r storage.Repos, task *models.Task) error {
	task.Assignee = nil
	return r.Tasks().Replace(ctx, task)
}

// syncPending добавляет невыполненную задачу в pendingTasks пользователя,
// выполненную - убирает
func (l linker) syncPending(ctx context.Context, r storage.Repos, task *models.Task, user models.ID) {
	if task.Completed {
		l.secondary(ctx, "pull_pending", r.Users().PullPendingTask(ctx, user, task.ID), "task", task.ID, "user", user)
		return
	}
	l.secondary(ctx, "add_pending", r.Users().AddPendingTask(ctx, user, task.ID), "task", task.ID, "user", user)
}

// release убирает задачу из pendingTasks прежнего исполнителя
func (l linker) release(ctx context.Context, r storage.Repos, task models.ID, user models.ID) {
	l.secondary(ctx, "pull_pending", r.Users().PullPendingTask(ctx, user, task), "task", task, "user", user)
}

// completeTask убирает задачу из pendingTasks всех пользователей
func (l linker) completeTask(ctx context.Context, r storage.Repos, task models.ID) {
	l.secondary(ctx, "pull_everywhere", r.Users().PullPendingTaskEverywhere(ctx, task), "task", task)
}

// claimTasks назначает задачи на пользователя без проверки их существования
// и текущего исполнителя
func (l linker) claimTasks(ctx context.Context, r storage.Repos, user *models.User, tasks []models.ID) {
	if len(tasks) == 0 {
		return
	}
	a := models.Assignment{User: user.ID, UserName: user.Name}
	l.secondary(ctx, "set_assignee", r.Tasks().SetAssignee(ctx, tasks, a), "user", user.ID, "tasks", len(tasks))
}

// dropTasks снимает назначение с задач из списка, если они всё ещё у user
func (l linker) dropTasks(ctx context.Context, r storage.Repos, user models.ID, tasks []models.ID) {
	if len(tasks) == 0 {
		return
	}
	l.secondary(ctx, "clear_assignee", r.Tasks().ClearAssignee(ctx, user, tasks), "user", user, "tasks", len(tasks))
}

// detachUser снимает назначение со всех задач пользователя
func (l linker) detachUser(ctx context.Context, r storage.Repos, user models.ID) {
	l.secondary(ctx, "clear_assignee", r.Tasks().ClearAssignee(ctx, user, nil), "user", user)
}

func (l linker) secondary(ctx context.Context, step string, err error, kv ...any) {
	if err == nil {
		return
	}
	syncFailures.WithLabelValues(step).Inc()
	logger.Error(ctx, err, "Ошибка синхронизации ссылок", append([]any{"step", step}, kv...)...)
}

// findUser возвращает nil без ошибки, если пользователя нет
func findUser(ctx context.Context, r storage.Repos, id models.ID) (*models.User, error) {
	user, err := r.Users().Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return user, err
}
