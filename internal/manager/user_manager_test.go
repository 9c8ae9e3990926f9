package manager

import (
	"context"
	"errors"
	"sync"
	"testing"

	"taskhub/internal/models"
	"taskhub/internal/query"
)

func TestCreateUserValidation(t *testing.T) {
	env := newTestEnv(t)

	for _, in := range []models.UserInput{{Name: "Ann"}, {Email: "a@x.com"}, {Name: " ", Email: "a@x.com"}} {
		_, err := env.users.Create(context.Background(), in)
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Message != "User requires name and email" {
			t.Errorf("Create(%+v): ожидалась ValidationError, получено %v", in, err)
		}
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ann := env.createUser(t, "Ann", "a@x.com")
	if len(ann.PendingTasks) != 0 || ann.PendingTasks == nil {
		t.Errorf("pendingTasks = %#v, ожидался пустой список", ann.PendingTasks)
	}

	_, err := env.users.Create(ctx, models.UserInput{Name: "Ann 2", Email: "a@x.com"})
	var cerr *ConflictError
	if !errors.As(err, &cerr) || cerr.Message != "A user with this email already exists" {
		t.Fatalf("ожидалась ConflictError, получено %v", err)
	}

	n, _ := env.store.Users().Count(ctx, query.ParseFilter(`{"email": "a@x.com"}`))
	if n != 1 {
		t.Errorf("пользователей с email a@x.com: %d, ожидался 1", n)
	}
}

func TestCreateUserConcurrentDuplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.users.Create(ctx, models.UserInput{Name: "Гонка", Email: "race@x.com"})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !IsConflict(err):
			t.Errorf("неожиданная ошибка: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("успешных созданий: %d, ожидалось 1", ok)
	}
	n, _ := env.store.Users().Count(ctx, query.ParseFilter(`{"email": "race@x.com"}`))
	if n != 1 {
		t.Errorf("пользователей: %d, ожидался 1", n)
	}
}

func TestCreateUserClaimsPendingTasks(t *testing.T) {
	env := newTestEnv(t)
	bob := env.createUser(t, "Bob", "b@x.com")
	owned := env.createTask(t, models.TaskInput{Name: "У Боба", AssignedUser: bob.ID})
	free := env.createTask(t, models.TaskInput{Name: "Свободная"})

	ann := env.createUser(t, "Ann", "a@x.com", owned.ID, free.ID, free.ID, "missing-task")

	if len(ann.PendingTasks) != 3 {
		t.Errorf("pendingTasks = %v, ожидались 3 уникальных id", ann.PendingTasks)
	}
	for _, id := range []models.ID{owned.ID, free.ID} {
		task := env.task(t, id)
		if task.AssignedUser() != ann.ID || task.AssignedUserName() != "Ann" {
			t.Errorf("задача %s не назначена на Ann: %+v", id, task.Assignee)
		}
	}
	// сторона Боба не обновляется
	if countID(env.pending(t, bob.ID), owned.ID) != 1 {
		t.Error("pendingTasks Боба изменились")
	}
}

func TestReplaceUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ann := env.createUser(t, "Ann", "a@x.com")
	bob := env.createUser(t, "Bob", "b@x.com")

	kept := env.createTask(t, models.TaskInput{Name: "Оставить", AssignedUser: ann.ID})
	dropped := env.createTask(t, models.TaskInput{Name: "Отдать", AssignedUser: ann.ID})
	stolen := env.createTask(t, models.TaskInput{Name: "Забрать", AssignedUser: bob.ID})
	moved := env.createTask(t, models.TaskInput{Name: "Уже у Боба", AssignedUser: ann.ID})

	// задача moved уже переназначена на Боба со стороны задачи
	if _, err := env.tasks.Replace(ctx, moved.ID, models.TaskInput{Name: "Уже у Боба", Deadline: deadline("2025-01-01"), AssignedUser: bob.ID}); err != nil {
		t.Fatal(err)
	}
	// устаревшая ссылка в списке Ann
	if err := env.store.Users().AddPendingTask(ctx, ann.ID, moved.ID); err != nil {
		t.Fatal(err)
	}

	replaced, err := env.users.Replace(ctx, ann.ID, models.UserInput{
		Name:         "Anna",
		Email:        "anna@x.com",
		PendingTasks: []models.ID{kept.ID, stolen.ID},
	})
	if err != nil {
		t.Fatalf("Replace() failed: %v", err)
	}
	if replaced.Name != "Anna" || !replaced.DateCreated.Equal(ann.DateCreated) {
		t.Errorf("неверный пользователь: %+v", replaced)
	}

	if task := env.task(t, dropped.ID); task.Assignee != nil {
		t.Errorf("dropped осталась назначенной: %+v", task.Assignee)
	}
	if task := env.task(t, moved.ID); task.AssignedUser() != bob.ID {
		t.Errorf("moved принадлежит Бобу и не должна освобождаться: %+v", task.Assignee)
	}
	if task := env.task(t, stolen.ID); task.AssignedUser() != ann.ID || task.AssignedUserName() != "Anna" {
		t.Errorf("stolen не переназначена: %+v", task.Assignee)
	}
	// сторона Боба не обновляется
	if countID(env.pending(t, bob.ID), stolen.ID) != 1 {
		t.Error("pendingTasks Боба изменились")
	}
	// у оставленной задачи кэш имени прежний
	if task := env.task(t, kept.ID); task.AssignedUserName() != "Ann" {
		t.Errorf("kept: assignedUserName = %q", task.AssignedUserName())
	}

	pending := env.pending(t, ann.ID)
	if len(pending) != 2 || pending[0] != kept.ID || pending[1] != stolen.ID {
		t.Errorf("pendingTasks = %v", pending)
	}
}

func TestReplaceUserErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.createUser(t, "Ann", "a@x.com")
	bob := env.createUser(t, "Bob", "b@x.com")

	// 404 раньше проверки email
	_, err := env.users.Replace(ctx, "00000000-0000-4000-8000-000000000000", models.UserInput{Name: "X", Email: "a@x.com"})
	if !IsNotFound(err) {
		t.Errorf("ожидался ErrNotFound, получено %v", err)
	}

	_, err = env.users.Replace(ctx, bob.ID, models.UserInput{Name: "Bob", Email: "a@x.com"})
	if !IsConflict(err) {
		t.Errorf("ожидалась ConflictError, получено %v", err)
	}

	// свой email - не конфликт
	if _, err := env.users.Replace(ctx, bob.ID, models.UserInput{Name: "Robert", Email: "b@x.com"}); err != nil {
		t.Errorf("Replace() со своим email: %v", err)
	}
}

func TestDeleteUserClearsTasks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ann := env.createUser(t, "Ann", "a@x.com")
	bob := env.createUser(t, "Bob", "b@x.com")
	t1 := env.createTask(t, models.TaskInput{Name: "1", AssignedUser: ann.ID})
	t2 := env.createTask(t, models.TaskInput{Name: "2", AssignedUser: ann.ID, Completed: true})
	t3 := env.createTask(t, models.TaskInput{Name: "3", AssignedUser: bob.ID})

	if err := env.users.Delete(ctx, ann.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	for _, id := range []models.ID{t1.ID, t2.ID} {
		task := env.task(t, id)
		if task.Assignee != nil || task.AssignedUserName() != models.Unassigned {
			t.Errorf("задача %s осталась назначенной: %+v", id, task.Assignee)
		}
	}
	if env.task(t, t3.ID).AssignedUser() != bob.ID {
		t.Error("задача Боба потеряла исполнителя")
	}

	if _, err := env.users.Get(ctx, ann.ID); !IsNotFound(err) {
		t.Errorf("пользователь не удалён: %v", err)
	}
	if err := env.users.Delete(ctx, ann.ID); !IsNotFound(err) {
		t.Errorf("повторное удаление: ожидался ErrNotFound, получено %v", err)
	}
}

// Пример из описания API: Ann, задача, завершение
func TestExampleFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ann := env.createUser(t, "Ann", "a@x.com")
	if len(ann.PendingTasks) != 0 {
		t.Fatalf("pendingTasks = %v", ann.PendingTasks)
	}

	task := env.createTask(t, models.TaskInput{Name: "Write report", Deadline: deadline("2025-01-01"), AssignedUser: ann.ID})
	if task.AssignedUserName() != "Ann" {
		t.Errorf("assignedUserName = %q", task.AssignedUserName())
	}
	if p := env.pending(t, ann.ID); len(p) != 1 || p[0] != task.ID {
		t.Errorf("pendingTasks = %v, ожидалось [%s]", p, task.ID)
	}

	done, err := env.tasks.Replace(ctx, task.ID, models.TaskInput{
		Name: "Write report", Deadline: deadline("2025-01-01"), Completed: true, AssignedUser: ann.ID,
	})
	if err != nil {
		t.Fatalf("Replace() failed: %v", err)
	}
	if p := env.pending(t, ann.ID); len(p) != 0 {
		t.Errorf("pendingTasks = %v, ожидался пустой список", p)
	}
	if done.AssignedUser() != ann.ID {
		t.Errorf("assignedUser = %q, ожидалось %q", done.AssignedUser(), ann.ID)
	}
}
