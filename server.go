package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taskhub/internal/events"
	"taskhub/internal/logger"
	"taskhub/internal/manager"
	"taskhub/internal/models"
)

var requestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "taskhub_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)

const maxBodyBytes = 1 << 20

// envelope - общий вид всех ответов API
type envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func NewRouter(tm *manager.TaskManager, um *manager.UserManager, bus *events.Bus) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(allowCrossDomain)

	r.Get("/", welcomeHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if bus != nil {
			r.Get("/events", events.Handler(bus))
		}

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", listTasksHandler(tm))
			r.Post("/", createTaskHandler(tm))
			r.Get("/{id}", getTaskHandler(tm))
			r.Put("/{id}", replaceTaskHandler(tm))
			r.Delete("/{id}", deleteTaskHandler(tm))
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", listUsersHandler(um))
			r.Post("/", createUserHandler(um))
			r.Get("/{id}", getUserHandler(um))
			r.Put("/{id}", replaceUserHandler(um))
			r.Delete("/{id}", deleteUserHandler(um))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})
	return r
}

func welcomeHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, "Welcome to APIed Piper!", map[string]any{
		"endpoints": []string{"/api/users", "/api/tasks"},
	})
}

// allowCrossDomain разрешает запросы с любых источников
func allowCrossDomain(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "X-Requested-With, X-HTTP-Method-Override, Content-Type, Accept")
		h.Set("Access-Control-Allow-Methods", "POST, GET, PUT, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logger.WithFields(r.Context(), "request_id", middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		requestDuration.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Observe(time.Since(start).Seconds())
		logger.Debug(ctx, "HTTP запрос",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, message string, data any) {
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	if data == nil {
		data = struct{}{}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Message: message, Data: data}); err != nil {
		logger.Error(context.Background(), err, "Ошибка записи ответа")
	}
}

func writeOK(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, "OK", data)
}

// writeError переводит ошибку менеджера в ответ. Подробности внутренних
// ошибок попадают только в лог.
func writeError(w http.ResponseWriter, r *http.Request, err error, notFound, internal string) {
	var (
		verr *manager.ValidationError
		cerr *manager.ConflictError
		ferr *models.FieldError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, verr.Message, nil)
	case errors.As(err, &cerr):
		writeJSON(w, http.StatusBadRequest, cerr.Message, nil)
	case errors.As(err, &ferr):
		writeJSON(w, http.StatusBadRequest, ferr.Error(), nil)
	case errors.Is(err, errBadBody):
		writeJSON(w, http.StatusBadRequest, "Request body is not valid JSON", nil)
	case manager.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, notFound, nil)
	default:
		logger.Error(r.Context(), err, "Внутренняя ошибка", "method", r.Method, "path", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, internal, nil)
	}
}

var errBadBody = errors.New("некорректное тело запроса")

// isForm - тело пришло как application/x-www-form-urlencoded
func isForm(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "application/x-www-form-urlencoded"
}

// decodeJSON читает JSON-тело; пустое тело означает пустой объект
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()

	err := json.NewDecoder(body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		var ferr *models.FieldError
		if errors.As(err, &ferr) {
			return ferr
		}
		return errBadBody
	}
	return nil
}

func decodeForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return errBadBody
	}
	return nil
}
