package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"taskhub/internal/logger"
	"taskhub/internal/models"
	"taskhub/internal/query"
)

type SQLiteStorage struct {
	db   *sql.DB
	path string
}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия БД: %w", err)
	}

	// SQLite допускает одного писателя: одно соединение сериализует транзакции
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ошибка настройки БД (%s): %w", pragma, err)
		}
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info(context.Background(), "SQLite база данных инициализирована", "path", dbPath)
	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func createTables(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			date_created INTEGER NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_email ON users (email)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			deadline INTEGER NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0,
			assigned_user TEXT NOT NULL DEFAULT '',
			assigned_user_name TEXT NOT NULL DEFAULT 'unassigned',
			date_created INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS tasks_assigned_user ON tasks (assigned_user)`,
		// pendingTasks пользователя; порядок добавления - по rowid
		`CREATE TABLE IF NOT EXISTS user_pending_tasks (
			user_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			PRIMARY KEY (user_id, task_id)
		)`,
		`CREATE INDEX IF NOT EXISTS user_pending_tasks_task ON user_pending_tasks (task_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("ошибка создания схемы: %w", err)
		}
	}
	return nil
}

// Закрытие соединения
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) Tasks() Tasks { return sqliteTasks{q: s.db} }

func (s *SQLiteStorage) Users() Users { return sqliteUsers{q: s.db} }

func (s *SQLiteStorage) RunInTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, sqliteRepos{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// querier - общее у *sql.DB и *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqliteRepos struct {
	q querier
}

func (r sqliteRepos) Tasks() Tasks { return sqliteTasks{q: r.q} }

func (r sqliteRepos) Users() Users { return sqliteUsers{q: r.q} }

// validID отсекает идентификаторы, которые хранилище не могло выдать
func validID(id models.ID) bool {
	_, err := uuid.Parse(string(id))
	return err == nil
}

func newID() models.ID {
	return models.ID(uuid.NewString())
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func idArgs(ids []models.ID) []any {
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, string(id))
	}
	return args
}

func checkAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Методы для работы с задачами

type sqliteTasks struct {
	q querier
}

const taskColumns = `id, name, description, deadline, completed, assigned_user, assigned_user_name, date_created`

func (r sqliteTasks) Find(ctx context.Context, q query.Query) ([]models.Task, error) {
	where, args := buildWhere(q.Filter, taskFields)
	stmt := "SELECT " + taskColumns + " FROM tasks WHERE " + where +
		buildOrderBy(q.Sort, taskFields) + buildLimit(q.Skip, q.Limit)

	rows, err := r.q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTasks(rows)
}

func (r sqliteTasks) Count(ctx context.Context, f query.Filter) (int64, error) {
	where, args := buildWhere(f, taskFields)
	var n int64
	err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks WHERE "+where, args...).Scan(&n)
	return n, err
}

func (r sqliteTasks) Get(ctx context.Context, id models.ID) (*models.Task, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}

	row := r.q.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", string(id))
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (r sqliteTasks) Insert(ctx context.Context, t *models.Task) error {
	id := newID()
	_, err := r.q.ExecContext(ctx, `
	INSERT INTO tasks (`+taskColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(id), t.Name, t.Description, toMillis(t.Deadline), t.Completed,
		string(t.AssignedUser()), t.AssignedUserName(), toMillis(t.DateCreated),
	)
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

func (r sqliteTasks) Replace(ctx context.Context, t *models.Task) error {
	if !validID(t.ID) {
		return ErrNotFound
	}
	result, err := r.q.ExecContext(ctx, `
	UPDATE tasks
	SET name = ?, description = ?, deadline = ?, completed = ?, assigned_user = ?, assigned_user_name = ?
	WHERE id = ?`,
		t.Name, t.Description, toMillis(t.Deadline), t.Completed,
		string(t.AssignedUser()), t.AssignedUserName(), string(t.ID),
	)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

func (r sqliteTasks) Delete(ctx context.Context, id models.ID) error {
	if !validID(id) {
		return ErrNotFound
	}
	result, err := r.q.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", string(id))
	if err != nil {
		return err
	}
	return checkAffected(result)
}

func (r sqliteTasks) SetAssignee(ctx context.Context, ids []models.ID, a models.Assignment) error {
	if len(ids) == 0 {
		return nil
	}
	args := append([]any{string(a.User), a.StoredUserName()}, idArgs(ids)...)
	_, err := r.q.ExecContext(ctx,
		"UPDATE tasks SET assigned_user = ?, assigned_user_name = ? WHERE id IN ("+placeholders(len(ids))+")",
		args...)
	return err
}

func (r sqliteTasks) ClearAssignee(ctx context.Context, user models.ID, only []models.ID) error {
	if only != nil && len(only) == 0 {
		return nil
	}

	stmt := "UPDATE tasks SET assigned_user = '', assigned_user_name = ? WHERE assigned_user = ?"
	args := []any{models.Unassigned, string(user)}
	if only != nil {
		stmt += " AND id IN (" + placeholders(len(only)) + ")"
		args = append(args, idArgs(only)...)
	}
	_, err := r.q.ExecContext(ctx, stmt, args...)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var task models.Task
	var id, assignedUser, assignedUserName string
	var deadline, created int64

	err := row.Scan(
		&id, &task.Name, &task.Description, &deadline, &task.Completed,
		&assignedUser, &assignedUserName, &created,
	)
	if err != nil {
		return nil, err
	}

	task.ID = models.ID(id)
	task.Deadline = fromMillis(deadline)
	task.DateCreated = fromMillis(created)
	task.Assignee = models.AssignmentFromFields(assignedUser, assignedUserName)
	return &task, nil
}

// Вспомогательная функция для сканирования задач
func scanTasks(rows *sql.Rows) ([]models.Task, error) {
	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// Методы для работы с пользователями

type sqliteUsers struct {
	q querier
}

const userColumns = `id, name, email, date_created`

func (r sqliteUsers) Find(ctx context.Context, q query.Query) ([]models.User, error) {
	where, args := buildWhere(q.Filter, userFields)
	stmt := "SELECT " + userColumns + " FROM users WHERE " + where +
		buildOrderBy(q.Sort, userFields) + buildLimit(q.Skip, q.Limit)
	return r.selectUsers(ctx, stmt, args...)
}

func (r sqliteUsers) Count(ctx context.Context, f query.Filter) (int64, error) {
	where, args := buildWhere(f, userFields)
	var n int64
	err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE "+where, args...).Scan(&n)
	return n, err
}

func (r sqliteUsers) Get(ctx context.Context, id models.ID) (*models.User, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	users, err := r.selectUsers(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", string(id))
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrNotFound
	}
	return &users[0], nil
}

func (r sqliteUsers) FindByEmail(ctx context.Context, email string, exclude models.ID) (*models.User, error) {
	users, err := r.selectUsers(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ? AND id <> ? LIMIT 1",
		email, string(exclude))
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrNotFound
	}
	return &users[0], nil
}

func (r sqliteUsers) Insert(ctx context.Context, u *models.User) error {
	id := newID()
	_, err := r.q.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?)",
		string(id), u.Name, u.Email, toMillis(u.DateCreated))
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return err
	}

	if err := r.writePending(ctx, id, u.PendingTasks); err != nil {
		return err
	}
	u.ID = id
	return nil
}

func (r sqliteUsers) Replace(ctx context.Context, u *models.User) error {
	if !validID(u.ID) {
		return ErrNotFound
	}
	result, err := r.q.ExecContext(ctx,
		"UPDATE users SET name = ?, email = ? WHERE id = ?",
		u.Name, u.Email, string(u.ID))
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return err
	}
	if err := checkAffected(result); err != nil {
		return err
	}

	if _, err := r.q.ExecContext(ctx, "DELETE FROM user_pending_tasks WHERE user_id = ?", string(u.ID)); err != nil {
		return err
	}
	return r.writePending(ctx, u.ID, u.PendingTasks)
}

func (r sqliteUsers) Delete(ctx context.Context, id models.ID) error {
	if !validID(id) {
		return ErrNotFound
	}
	result, err := r.q.ExecContext(ctx, "DELETE FROM users WHERE id = ?", string(id))
	if err != nil {
		return err
	}
	if err := checkAffected(result); err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, "DELETE FROM user_pending_tasks WHERE user_id = ?", string(id))
	return err
}

func (r sqliteUsers) AddPendingTask(ctx context.Context, user, task models.ID) error {
	_, err := r.q.ExecContext(ctx, `
	INSERT OR IGNORE INTO user_pending_tasks (user_id, task_id)
	SELECT id, ? FROM users WHERE id = ?`,
		string(task), string(user))
	return err
}

func (r sqliteUsers) PullPendingTask(ctx context.Context, user, task models.ID) error {
	_, err := r.q.ExecContext(ctx,
		"DELETE FROM user_pending_tasks WHERE user_id = ? AND task_id = ?",
		string(user), string(task))
	return err
}

func (r sqliteUsers) PullPendingTaskEverywhere(ctx context.Context, task models.ID) error {
	_, err := r.q.ExecContext(ctx, "DELETE FROM user_pending_tasks WHERE task_id = ?", string(task))
	return err
}

func (r sqliteUsers) writePending(ctx context.Context, user models.ID, pending []models.ID) error {
	for _, task := range models.UniqueIDs(pending) {
		_, err := r.q.ExecContext(ctx,
			"INSERT OR IGNORE INTO user_pending_tasks (user_id, task_id) VALUES (?, ?)",
			string(user), string(task))
		if err != nil {
			return err
		}
	}
	return nil
}

// selectUsers читает пользователей, затем их pendingTasks.
// Строки закрываются до второго запроса: соединение одно.
func (r sqliteUsers) selectUsers(ctx context.Context, stmt string, args ...any) ([]models.User, error) {
	rows, err := r.q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}

	users := []models.User{}
	for rows.Next() {
		var u models.User
		var id string
		var created int64
		if err := rows.Scan(&id, &u.Name, &u.Email, &created); err != nil {
			rows.Close()
			return nil, err
		}
		u.ID = models.ID(id)
		u.DateCreated = fromMillis(created)
		u.PendingTasks = []models.ID{}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(users) == 0 {
		return users, nil
	}
	return users, r.loadPending(ctx, users)
}

func (r sqliteUsers) loadPending(ctx context.Context, users []models.User) error {
	index := make(map[models.ID]int, len(users))
	ids := make([]models.ID, 0, len(users))
	for i, u := range users {
		index[u.ID] = i
		ids = append(ids, u.ID)
	}

	rows, err := r.q.QueryContext(ctx,
		"SELECT user_id, task_id FROM user_pending_tasks WHERE user_id IN ("+placeholders(len(ids))+") ORDER BY rowid",
		idArgs(ids)...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var userID, taskID string
		if err := rows.Scan(&userID, &taskID); err != nil {
			return err
		}
		i := index[models.ID(userID)]
		users[i].PendingTasks = append(users[i].PendingTasks, models.ID(taskID))
	}
	return rows.Err()
}
