package manager

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taskhub/internal/events"
	"taskhub/internal/logger"
	"taskhub/internal/models"
	"taskhub/internal/query"
	"taskhub/internal/storage"
)

type TaskManager struct {
	store  storage.Store
	events events.Publisher
	links  linker
	now    func() time.Time
}

func NewTaskManager(store storage.Store, pub events.Publisher) *TaskManager {
	if pub == nil {
		pub = events.Discard{}
	}
	return &TaskManager{store: store, events: pub, now: time.Now}
}

func validateTask(in models.TaskInput) error {
	if strings.TrimSpace(in.Name) == "" || in.Deadline == nil {
		return &ValidationError{Message: msgTaskRequired}
	}
	return nil
}

func (tm *TaskManager) List(ctx context.Context, q query.Query) (l Listing[models.Task], err error) {
	defer observe("task", "list", time.Now(), &err)

	if q.Count {
		n, err := tm.store.Tasks().Count(ctx, q.Filter)
		if err != nil {
			return l, fmt.Errorf("подсчёт задач: %w", err)
		}
		return Listing[models.Task]{Count: n, Counted: true}, nil
	}

	tasks, err := tm.store.Tasks().Find(ctx, q)
	if err != nil {
		return l, fmt.Errorf("поиск задач: %w", err)
	}
	return Listing[models.Task]{Items: tasks, Projection: q.Projection}, nil
}

func (tm *TaskManager) Get(ctx context.Context, id models.ID) (task *models.Task, err error) {
	defer observe("task", "get", time.Now(), &err)
	return tm.store.Tasks().Get(ctx, id)
}

// Create сохраняет задачу, затем проверяет исполнителя. Если исполнителя нет,
// назначение откатывается, а сама задача остаётся.
func (tm *TaskManager) Create(ctx context.Context, in models.TaskInput) (task *models.Task, err error) {
	defer observe("task", "create", time.Now(), &err)

	if err := validateTask(in); err != nil {
		return nil, err
	}

	task = &models.Task{
		Name:        in.Name,
		Description: in.Description,
		Deadline:    *in.Deadline,
		Completed:   in.Completed,
		DateCreated: tm.now().UTC(),
	}
	if !in.AssignedUser.IsZero() {
		task.Assignee = &models.Assignment{User: in.AssignedUser, UserName: in.AssignedUserName}
	}

	err = tm.store.RunInTx(ctx, func(ctx context.Context, r storage.Repos) error {
		if err := r.Tasks().Insert(ctx, task); err != nil {
			return err
		}
		if task.Assignee == nil {
			return nil
		}

		user, err := findUser(ctx, r, task.Assignee.User)
		if err != nil {
			return err
		}
		if user == nil {
			logger.Debug(ctx, "Исполнитель не найден, назначение отменено", "task", task.ID, "user", task.Assignee.User)
			return tm.links.unassign(ctx, r, task)
		}
		return tm.links.assign(ctx, r, task, user)
	})
	if err != nil {
		return nil, fmt.Errorf("создание задачи: %w", err)
	}

	taskDescLength.Observe(float64(len(task.Description)))
	tm.publish(events.ActionCreated, task)
	logger.Info(ctx, "Задача создана", "id", task.ID, "assignedUser", task.AssignedUser())
	return task, nil
}

// Replace полностью перезаписывает задачу и переносит её между pendingTasks
// прежнего и нового исполнителя.
func (tm *TaskManager) Replace(ctx context.Context, id models.ID, in models.TaskInput) (task *models.Task, err error) {
	defer observe("task", "replace", time.Now(), &err)

	if err := validateTask(in); err != nil {
		return nil, err
	}

	err = tm.store.RunInTx(ctx, func(ctx context.Context, r storage.Repos) error {
		var err error
		task, err = r.Tasks().Get(ctx, id)
		if err != nil {
			return err
		}
		prevUser := task.AssignedUser()

		task.Name = in.Name
		task.Description = in.Description
		task.Deadline = *in.Deadline
		task.Completed = in.Completed

		var user *models.User
		if in.AssignedUser.IsZero() {
			task.Assignee = nil
		} else {
			user, err = findUser(ctx, r, in.AssignedUser)
			if err != nil {
				return err
			}
			name := in.AssignedUserName
			if name == "" && user != nil {
				name = user.Name
			}
			task.Assignee = &models.Assignment{User: in.AssignedUser, UserName: name}
		}
		if err := r.Tasks().Replace(ctx, task); err != nil {
			return err
		}

		if !prevUser.IsZero() && prevUser != in.AssignedUser {
			tm.links.release(ctx, r, task.ID, prevUser)
		}

		if task.Assignee != nil {
			if user == nil {
				logger.Debug(ctx, "Исполнитель не найден, назначение снято", "task", task.ID, "user", in.AssignedUser)
				if err := tm.links.unassign(ctx, r, task); err != nil {
					return err
				}
			} else {
				tm.links.syncPending(ctx, r, task, user.ID)
			}
		}

		if task.Assignee == nil || task.Completed {
			tm.links.completeTask(ctx, r, task.ID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("замена задачи %s: %w", id, err)
	}

	tm.publish(events.ActionReplaced, task)
	logger.Info(ctx, "Задача обновлена", "id", task.ID, "completed", task.Completed, "assignedUser", task.AssignedUser())
	return task, nil
}

func (tm *TaskManager) Delete(ctx context.Context, id models.ID) (err error) {
	defer observe("task", "delete", time.Now(), &err)

	err = tm.store.RunInTx(ctx, func(ctx context.Context, r storage.Repos) error {
		task, err := r.Tasks().Get(ctx, id)
		if err != nil {
			return err
		}
		if task.Assignee != nil {
			tm.links.release(ctx, r, task.ID, task.Assignee.User)
		}
		return r.Tasks().Delete(ctx, task.ID)
	})
	if err != nil {
		return fmt.Errorf("удаление задачи %s: %w", id, err)
	}

	tm.events.Publish(events.Event{Collection: "tasks", Action: events.ActionDeleted, ID: id.String()})
	logger.Info(ctx, "Задача удалена", "id", id)
	return nil
}

func (tm *TaskManager) publish(action string, task *models.Task) {
	tm.events.Publish(events.Event{Collection: "tasks", Action: action, ID: task.ID.String(), Data: *task})
}
