package manager

import (
	"context"
	"testing"

	"taskhub/internal/events"
	"taskhub/internal/models"
)

func TestReconcile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ann := env.createUser(t, "Ann", "a@x.com")
	orphan := env.createTask(t, models.TaskInput{Name: "Сирота"})
	lost := env.createTask(t, models.TaskInput{Name: "Потерянная"})
	done := env.createTask(t, models.TaskInput{Name: "Готовая", Completed: true})

	// задача ссылается на несуществующего пользователя
	ghost := models.Assignment{User: "00000000-0000-4000-8000-000000000001", UserName: "Ghost"}
	if err := env.store.Tasks().SetAssignee(ctx, []models.ID{orphan.ID}, ghost); err != nil {
		t.Fatal(err)
	}
	// задача назначена на Ann, но без имени и без записи в pendingTasks
	if err := env.store.Tasks().SetAssignee(ctx, []models.ID{lost.ID}, models.Assignment{User: ann.ID}); err != nil {
		t.Fatal(err)
	}
	// выполненная задача в pendingTasks
	if err := env.store.Users().AddPendingTask(ctx, ann.ID, done.ID); err != nil {
		t.Fatal(err)
	}

	ch, unsubscribe := env.bus.Subscribe(16)
	defer unsubscribe()

	report, err := NewReconciler(env.store, env.bus).Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile() failed: %v", err)
	}
	if report.OrphanedTasks != 1 || report.NamedTasks != 1 || report.RebuiltUsers != 1 {
		t.Errorf("неверный отчёт: %+v", report)
	}

	if task := env.task(t, orphan.ID); task.Assignee != nil {
		t.Errorf("orphan осталась назначенной: %+v", task.Assignee)
	}
	if task := env.task(t, lost.ID); task.AssignedUserName() != "Ann" {
		t.Errorf("lost: assignedUserName = %q", task.AssignedUserName())
	}
	if p := env.pending(t, ann.ID); len(p) != 1 || p[0] != lost.ID {
		t.Errorf("pendingTasks = %v, ожидалось [%s]", p, lost.ID)
	}

	repaired := 0
	for len(ch) > 0 {
		if e := <-ch; e.Action == events.ActionRepaired {
			repaired++
		}
	}
	if repaired != report.Total() {
		t.Errorf("событий repaired: %d, ожидалось %d", repaired, report.Total())
	}
}
