package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"taskhub/internal/manager"
	"taskhub/internal/models"
	"taskhub/internal/query"
)

const (
	msgTaskNotFound = "Task not found"
	msgUserNotFound = "User not found"
)

func idParam(r *http.Request) models.ID {
	return models.ID(chi.URLParam(r, "id"))
}

func listTasksHandler(tm *manager.TaskManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := tm.List(r.Context(), query.Parse(r.URL.Query()))
		if err != nil {
			writeError(w, r, err, msgTaskNotFound, "Server error while querying tasks")
			return
		}
		data, err := l.Data()
		if err != nil {
			writeError(w, r, err, msgTaskNotFound, "Server error while querying tasks")
			return
		}
		writeOK(w, http.StatusOK, data)
	}
}

func getTaskHandler(tm *manager.TaskManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		task, err := tm.Get(r.Context(), idParam(r))
		if err != nil {
			writeError(w, r, err, msgTaskNotFound, "Server error while fetching task")
			return
		}
		writeOK(w, http.StatusOK, task)
	}
}

func decodeTask(w http.ResponseWriter, r *http.Request) (models.TaskInput, error) {
	if isForm(r) {
		if err := decodeForm(w, r); err != nil {
			return models.TaskInput{}, err
		}
		return models.TaskInputFromForm(r.PostForm)
	}
	var in models.TaskInput
	err := decodeJSON(w, r, &in)
	return in, err
}

func createTaskHandler(tm *manager.TaskManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := decodeTask(w, r)
		if err != nil {
			writeError(w, r, err, msgTaskNotFound, "Server error while creating task")
			return
		}
		task, err := tm.Create(r.Context(), in)
		if err != nil {
			writeError(w, r, err, msgTaskNotFound, "Server error while creating task")
			return
		}
		writeOK(w, http.StatusCreated, task)
	}
}

func replaceTaskHandler(tm *manager.TaskManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := decodeTask(w, r)
		if err != nil {
			writeError(w, r, err, msgTaskNotFound, "Server error while updating task")
			return
		}
		task, err := tm.Replace(r.Context(), idParam(r), in)
		if err != nil {
			writeError(w, r, err, msgTaskNotFound, "Server error while updating task")
			return
		}
		writeOK(w, http.StatusOK, task)
	}
}

func deleteTaskHandler(tm *manager.TaskManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := tm.Delete(r.Context(), idParam(r)); err != nil {
			writeError(w, r, err, msgTaskNotFound, "Server error while deleting task")
			return
		}
		writeOK(w, http.StatusNoContent, nil)
	}
}

func listUsersHandler(um *manager.UserManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := um.List(r.Context(), query.Parse(r.URL.Query()))
		if err != nil {
			writeError(w, r, err, msgUserNotFound, "Server error while querying users")
			return
		}
		data, err := l.Data()
		if err != nil {
			writeError(w, r, err, msgUserNotFound, "Server error while querying users")
			return
		}
		writeOK(w, http.StatusOK, data)
	}
}

func getUserHandler(um *manager.UserManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := um.Get(r.Context(), idParam(r))
		if err != nil {
			writeError(w, r, err, msgUserNotFound, "Server error while fetching user")
			return
		}
		writeOK(w, http.StatusOK, user)
	}
}

func decodeUser(w http.ResponseWriter, r *http.Request) (models.UserInput, error) {
	if isForm(r) {
		if err := decodeForm(w, r); err != nil {
			return models.UserInput{}, err
		}
		return models.UserInputFromForm(r.PostForm), nil
	}
	var in models.UserInput
	err := decodeJSON(w, r, &in)
	return in, err
}

func createUserHandler(um *manager.UserManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := decodeUser(w, r)
		if err != nil {
			writeError(w, r, err, msgUserNotFound, "Server error while creating user")
			return
		}
		user, err := um.Create(r.Context(), in)
		if err != nil {
			writeError(w, r, err, msgUserNotFound, "Server error while creating user")
			return
		}
		writeOK(w, http.StatusCreated, user)
	}
}

func replaceUserHandler(um *manager.UserManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := decodeUser(w, r)
		if err != nil {
			writeError(w, r, err, msgUserNotFound, "Server error while updating user")
			return
		}
		user, err := um.Replace(r.Context(), idParam(r), in)
		if err != nil {
			writeError(w, r, err, msgUserNotFound, "Server error while updating user")
			return
		}
		writeOK(w, http.StatusOK, user)
	}
}

func deleteUserHandler(um *manager.UserManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := um.Delete(r.Context(), idParam(r)); err != nil {
			writeError(w, r, err, msgUserNotFound, "Server error while deleting user")
			return
		}
		writeOK(w, http.StatusNoContent, nil)
	}
}
