package manager

import (
	"context"
	"fmt"
	"time"

	"taskhub/internal/events"
	"taskhub/internal/logger"
	"taskhub/internal/models"
	"taskhub/internal/query"
	"taskhub/internal/storage"
)

// Report - что исправила сверка
type Report struct {
	// OrphanedTasks - задачи, ссылавшиеся на удалённого пользователя
	OrphanedTasks int `json:"orphanedTasks"`
	// NamedTasks - задачи с назначением, но без имени исполнителя
	NamedTasks int `json:"namedTasks"`
	// RebuiltUsers - пользователи с исправленным pendingTasks
	RebuiltUsers int `json:"rebuiltUsers"`
}

func (r Report) Total() int {
	return r.OrphanedTasks + r.NamedTasks + r.RebuiltUsers
}

// Reconciler восстанавливает согласованность ссылок после частичных сбоев
type Reconciler struct {
	store  storage.Store
	events events.Publisher
}

func NewReconciler(store storage.Store, pub events.Publisher) *Reconciler {
	if pub == nil {
		pub = events.Discard{}
	}
	return &Reconciler{store: store, events: pub}
}

func (rc *Reconciler) Reconcile(ctx context.Context) (report Report, err error) {
	defer observe("links", "reconcile", time.Now(), &err)

	var repaired []events.Event
	err = rc.store.RunInTx(ctx, func(ctx context.Context, r storage.Repos) error {
		report, repaired = Report{}, nil

		users, err := r.Users().Find(ctx, query.All())
		if err != nil {
			return err
		}
		tasks, err := r.Tasks().Find(ctx, query.All())
		if err != nil {
			return err
		}

		byID := make(map[models.ID]*models.User, len(users))
		for i := range users {
			byID[users[i].ID] = &users[i]
		}

		pending := make(map[models.ID][]models.ID)
		for i := range tasks {
			task := &tasks[i]
			if task.Assignee == nil {
				continue
			}

			user, ok := byID[task.Assignee.User]
			switch {
			case !ok:
				task.Assignee = nil
				report.OrphanedTasks++
			case task.Assignee.UserName == "":
				task.Assignee.UserName = user.Name
				report.NamedTasks++
			default:
				if !task.Completed {
					pending[user.ID] = append(pending[user.ID], task.ID)
				}
				continue
			}

			if err := r.Tasks().Replace(ctx, task); err != nil {
				return fmt.Errorf("исправление задачи %s: %w", task.ID, err)
			}
			repaired = append(repaired, events.Event{Collection: "tasks", Action: events.ActionRepaired, ID: task.ID.String(), Data: *task})
			if task.IsPending() {
				pending[task.Assignee.User] = append(pending[task.Assignee.User], task.ID)
			}
		}

		for i := range users {
			user := &users[i]
			want := rebuildPending(user.PendingTasks, pending[user.ID])
			if sameIDs(user.PendingTasks, want) {
				continue
			}
			user.PendingTasks = want
			if err := r.Users().Replace(ctx, user); err != nil {
				return fmt.Errorf("исправление пользователя %s: %w", user.ID, err)
			}
			report.RebuiltUsers++
			repaired = append(repaired, events.Event{Collection: "users", Action: events.ActionRepaired, ID: user.ID.String(), Data: *user})
		}
		return nil
	})
	if err != nil {
		return Report{}, fmt.Errorf("сверка ссылок: %w", err)
	}

	reconcileRepairs.WithLabelValues("orphaned_task").Add(float64(report.OrphanedTasks))
	reconcileRepairs.WithLabelValues("named_task").Add(float64(report.NamedTasks))
	reconcileRepairs.WithLabelValues("rebuilt_user").Add(float64(report.RebuiltUsers))
	for _, e := range repaired {
		rc.events.Publish(e)
	}

	logger.Info(ctx, "Сверка ссылок завершена",
		"orphanedTasks", report.OrphanedTasks,
		"namedTasks", report.NamedTasks,
		"rebuiltUsers", report.RebuiltUsers)
	return report, nil
}

// rebuildPending сохраняет порядок уже известных задач и дописывает новые
func rebuildPending(current, want []models.ID) []models.ID {
	wanted := make(map[models.ID]bool, len(want))
	for _, id := range want {
		wanted[id] = true
	}

	out := make([]models.ID, 0, len(want))
	for _, id := range models.UniqueIDs(current) {
		if wanted[id] {
			out = append(out, id)
			delete(wanted, id)
		}
	}
	for _, id := range want {
		if wanted[id] {
			out = append(out, id)
			delete(wanted, id)
		}
	}
	return out
}

func sameIDs(a, b []models.ID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
