package routes

import (
	_ "embed"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"todo-tree/app/controllers"
)

//go:embed index.html
var indexHTML []byte

// RegisterRoutes sets up all routes for the application. The MCP endpoint is
// mounted only when mcpHandler is non-nil.
func RegisterRoutes(router *mux.Router, todoController *controllers.TodoController, mcpHandler http.Handler) {
	router.HandleFunc("/", serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/healthz", todoController.Health).Methods(http.MethodGet)

	router.HandleFunc("/todos", todoController.GetTodos).Methods(http.MethodGet)
	router.HandleFunc("/todos", todoController.CreateTodo).Methods(http.MethodPost)
	router.HandleFunc("/todos/{todoID}", todoController.GetTodoByID).Methods(http.MethodGet)
	router.HandleFunc("/todos/{todoID}", todoController.UpdateTodo).Methods(http.MethodPut)
	router.HandleFunc("/todos/{todoID}", todoController.DeleteTodo).Methods(http.MethodDelete)
	router.HandleFunc("/todos/{todoID}/children", todoController.GetChildren).Methods(http.MethodGet)
	router.HandleFunc("/todos/{todoID}/descendants", todoController.GetDescendants).Methods(http.MethodGet)

	if mcpHandler != nil {
		router.Handle("/mcp", mcpHandler)
		router.PathPrefix("/mcp/").Handler(mcpHandler)
	}
}

func serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// LogRequests logs one line per request with its status and duration.
func LogRequests(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			level := slog.LevelInfo
			if rec.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(r.Context(), level, "request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush lets streaming MCP responses pass through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
