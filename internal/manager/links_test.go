package manager

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"taskhub/internal/models"
	"taskhub/internal/storage"
)

var errWriteFailed = errors.New("запись отклонена")

// brokenStore - хранилище, в котором не работают записи в связанную коллекцию
type brokenStore struct {
	storage.Store
}

func (s brokenStore) Tasks() storage.Tasks { return brokenTasks{s.Store.Tasks()} }

func (s brokenStore) Users() storage.Users { return brokenUsers{s.Store.Users()} }

func (s brokenStore) RunInTx(ctx context.Context, fn func(ctx context.Context, r storage.Repos) error) error {
	return s.Store.RunInTx(ctx, func(ctx context.Context, r storage.Repos) error {
		return fn(ctx, brokenRepos{r})
	})
}

type brokenRepos struct {
	storage.Repos
}

func (r brokenRepos) Tasks() storage.Tasks { return brokenTasks{r.Repos.Tasks()} }

func (r brokenRepos) Users() storage.Users { return brokenUsers{r.Repos.Users()} }

type brokenTasks struct {
	storage.Tasks
}

func (brokenTasks) SetAssignee(ctx context.Context, ids []models.ID, a models.Assignment) error {
	return errWriteFailed
}

type brokenUsers struct {
	storage.Users
}

func (brokenUsers) AddPendingTask(ctx context.Context, user, task models.ID) error {
	return errWriteFailed
}

func TestSecondaryWriteFailuresAreNotReturned(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	broken := brokenStore{env.store}
	tm := NewTaskManager(broken, nil)
	um := NewUserManager(broken, nil)

	addPending := syncFailures.WithLabelValues("add_pending")
	setAssignee := syncFailures.WithLabelValues("set_assignee")
	beforeAdd := testutil.ToFloat64(addPending)
	beforeSet := testutil.ToFloat64(setAssignee)

	ann := env.createUser(t, "Ann", "a@x.com")
	task, err := tm.Create(ctx, models.TaskInput{Name: "Отчёт", Deadline: deadline("2025-01-01"), AssignedUser: ann.ID})
	if err != nil {
		t.Fatalf("Create() вернул ошибку связанной записи: %v", err)
	}
	if task.AssignedUser() != ann.ID || task.AssignedUserName() != "Ann" {
		t.Errorf("назначение потеряно: %+v", task.Assignee)
	}
	if stored := env.task(t, task.ID); stored.AssignedUser() != ann.ID {
		t.Errorf("задача не сохранена с исполнителем: %+v", stored.Assignee)
	}
	if p := env.pending(t, ann.ID); len(p) != 0 {
		t.Errorf("pendingTasks = %v, запись должна была не пройти", p)
	}
	if got := testutil.ToFloat64(addPending) - beforeAdd; got != 1 {
		t.Errorf("add_pending: ожидалось +1, получено %v", got)
	}

	free := env.createTask(t, models.TaskInput{Name: "Молоко"})
	bob, err := um.Create(ctx, models.UserInput{Name: "Bob", Email: "b@x.com", PendingTasks: []models.ID{free.ID}})
	if err != nil {
		t.Fatalf("Create() пользователя вернул ошибку связанной записи: %v", err)
	}
	if bob.ID.IsZero() || len(bob.PendingTasks) != 1 {
		t.Errorf("неверный пользователь: %+v", bob)
	}
	if _, err := env.users.Get(ctx, bob.ID); err != nil {
		t.Errorf("пользователь не сохранён: %v", err)
	}
	if stored := env.task(t, free.ID); stored.Assignee != nil {
		t.Errorf("задача назначена, хотя запись должна была не пройти: %+v", stored.Assignee)
	}
	if got := testutil.ToFloat64(setAssignee) - beforeSet; got != 1 {
		t.Errorf("set_assignee: ожидалось +1, получено %v", got)
	}
}
