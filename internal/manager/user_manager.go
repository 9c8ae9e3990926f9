package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskhub/internal/events"
	"taskhub/internal/logger"
	"taskhub/internal/models"
	"taskhub/internal/query"
	"taskhub/internal/storage"
)

type UserManager struct {
	store  storage.Store
	events events.Publisher
	links  linker
	now    func() time.Time
}

func NewUserManager(store storage.Store, pub events.Publisher) *UserManager {
	if pub == nil {
		pub = events.Discard{}
	}
	return &UserManager{store: store, events: pub, now: time.Now}
}

func validateUser(in models.UserInput) error {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Email) == "" {
		return &ValidationError{Message: msgUserRequired}
	}
	return nil
}

func (um *UserManager) List(ctx context.Context, q query.Query) (l Listing[models.User], err error) {
	defer observe("user", "list", time.Now(), &err)

	if q.Count {
		n, err := um.store.Users().Count(ctx, q.Filter)
		if err != nil {
			return l, fmt.Errorf("подсчёт пользователей: %w", err)
		}
		return Listing[models.User]{Count: n, Counted: true}, nil
	}

	users, err := um.store.Users().Find(ctx, q)
	if err != nil {
		return l, fmt.Errorf("поиск пользователей: %w", err)
	}
	return Listing[models.User]{Items: users, Projection: q.Projection}, nil
}

func (um *UserManager) Get(ctx context.Context, id models.ID) (user *models.User, err error) {
	defer observe("user", "get", time.Now(), &err)
	return um.store.Users().Get(ctx, id)
}

// Create сохраняет пользователя и назначает на него все задачи из pendingTasks.
// Существование и статус задач не проверяются.
func (um *UserManager) Create(ctx context.Context, in models.UserInput) (user *models.User, err error) {
	defer observe("user", "create", time.Now(), &err)

	if err := validateUser(in); err != nil {
		return nil, err
	}

	user = &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PendingTasks: models.UniqueIDs(in.PendingTasks),
		DateCreated:  um.now().UTC(),
	}

	err = um.store.RunInTx(ctx, func(ctx context.Context, r storage.Repos) error {
		if err := checkEmailFree(ctx, r, in.Email, ""); err != nil {
			return err
		}
		if err := r.Users().Insert(ctx, user); err != nil {
			return conflictOnDuplicate(err)
		}
		um.links.claimTasks(ctx, r, user, user.PendingTasks)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("создание пользователя: %w", err)
	}

	um.publish(events.ActionCreated, user)
	logger.Info(ctx, "Пользователь создан", "id", user.ID, "pendingTasks", len(user.PendingTasks))
	return user, nil
}

// Replace перезаписывает пользователя. Задачи, убранные из pendingTasks,
// освобождаются, только если всё ещё принадлежат ему; добавленные задачи
// переназначаются на него безусловно.
func (um *UserManager) Replace(ctx context.Context, id models.ID, in models.UserInput) (user *models.User, err error) {
	defer observe("user", "replace", time.Now(), &err)

	if err := validateUser(in); err != nil {
		return nil, err
	}

	err = um.store.RunInTx(ctx, func(ctx context.Context, r storage.Repos) error {
		old, err := r.Users().Get(ctx, id)
		if err != nil {
			return err
		}
		if err := checkEmailFree(ctx, r, in.Email, old.ID); err != nil {
			return err
		}

		pending := models.UniqueIDs(in.PendingTasks)
		removed, added := models.DiffIDs(old.PendingTasks, pending)

		user = &models.User{
			ID:           old.ID,
			Name:         in.Name,
			Email:        in.Email,
			PendingTasks: pending,
			DateCreated:  old.DateCreated,
		}
		if err := r.Users().Replace(ctx, user); err != nil {
			return conflictOnDuplicate(err)
		}

		um.links.dropTasks(ctx, r, user.ID, removed)
		um.links.claimTasks(ctx, r, user, added)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("замена пользователя %s: %w", id, err)
	}

	um.publish(events.ActionReplaced, user)
	logger.Info(ctx, "Пользователь обновлён", "id", user.ID, "pendingTasks", len(user.PendingTasks))
	return user, nil
}

func (um *UserManager) Delete(ctx context.Context, id models.ID) (err error) {
	defer observe("user", "delete", time.Now(), &err)

	err = um.store.RunInTx(ctx, func(ctx context.Context, r storage.Repos) error {
		user, err := r.Users().Get(ctx, id)
		if err != nil {
			return err
		}
		um.links.detachUser(ctx, r, user.ID)
		return r.Users().Delete(ctx, user.ID)
	})
	if err != nil {
		return fmt.Errorf("удаление пользователя %s: %w", id, err)
	}

	um.events.Publish(events.Event{Collection: "users", Action: events.ActionDeleted, ID: id.String()})
	logger.Info(ctx, "Пользователь удалён", "id", id)
	return nil
}

// FindByEmail нужен чат-боту и загрузке начальных данных
func (um *UserManager) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return um.store.Users().FindByEmail(ctx, strings.TrimSpace(email), "")
}

func (um *UserManager) publish(action string, user *models.User) {
	um.events.Publish(events.Event{Collection: "users", Action: action, ID: user.ID.String(), Data: *user})
}

func checkEmailFree(ctx context.Context, r storage.Repos, email string, exclude models.ID) error {
	_, err := r.Users().FindByEmail(ctx, email, exclude)
	switch {
	case err == nil:
		return &ConflictError{Message: msgEmailTaken}
	case errors.Is(err, storage.ErrNotFound):
		return nil
	}
	return err
}

func conflictOnDuplicate(err error) error {
	if errors.Is(err, storage.ErrDuplicateEmail) {
		return &ConflictError{Message: msgEmailTaken}
	}
	return err
}
