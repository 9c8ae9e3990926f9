package storage

import (
	"context"
	"errors"

	"taskhub/internal/models"
	"taskhub/internal/query"
)

var (
	// ErrNotFound возвращается, если записи нет или идентификатор некорректен
	ErrNotFound = errors.New("запись не найдена")
	// ErrDuplicateEmail - нарушение уникальности email на уровне хранилища
	ErrDuplicateEmail = errors.New("пользователь с таким email уже существует")
)

// Tasks - коллекция задач
type Tasks interface {
	Find(ctx context.Context, q query.Query) ([]models.Task, error)
	Count(ctx context.Context, f query.Filter) (int64, error)
	Get(ctx context.Context, id models.ID) (*models.Task, error)
	// Insert выдаёт задаче новый ID
	Insert(ctx context.Context, t *models.Task) error
	Replace(ctx context.Context, t *models.Task) error
	Delete(ctx context.Context, id models.ID) error
	// SetAssignee назначает все задачи из ids на пользователя, без проверок
	SetAssignee(ctx context.Context, ids []models.ID, a models.Assignment) error
	// ClearAssignee снимает назначение с задач пользователя user.
	// Если only != nil, затрагиваются только задачи из этого списка.
	ClearAssignee(ctx context.Context, user models.ID, only []models.ID) error
}

// Users - коллекция пользователей
type Users interface {
	Find(ctx context.Context, q query.Query) ([]models.User, error)
	Count(ctx context.Context, f query.Filter) (int64, error)
	Get(ctx context.Context, id models.ID) (*models.User, error)
	// FindByEmail ищет пользователя с email, кроме exclude. Если такого нет - ErrNotFound.
	FindByEmail(ctx context.Context, email string, exclude models.ID) (*models.User, error)
	Insert(ctx context.Context, u *models.User) error
	Replace(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id models.ID) error
	// AddPendingTask добавляет задачу в pendingTasks, если её там ещё нет
	AddPendingTask(ctx context.Context, user, task models.ID) error
	PullPendingTask(ctx context.Context, user, task models.ID) error
	// PullPendingTaskEverywhere убирает задачу из pendingTasks всех пользователей
	PullPendingTaskEverywhere(ctx context.Context, task models.ID) error
}

type Repos interface {
	Tasks() Tasks
	Users() Users
}

// Store - хранилище записей. RunInTx выполняет fn как одну единицу работы,
// если хранилище поддерживает транзакции, иначе - последовательно.
type Store interface {
	Repos
	RunInTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
	Close() error
}
