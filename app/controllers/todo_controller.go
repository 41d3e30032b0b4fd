package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"todo-tree/app/models"
	"todo-tree/app/services"
)

const (
	maxBodyBytes  = 1 << 20
	internalError = "internal storage error"
)

// TodoController handles HTTP requests for todos.
type TodoController struct {
	Service *services.TodoService
	// DefaultMode applies to DELETE requests without a mode parameter.
	DefaultMode models.DeleteMode
}

// NewTodoController creates a new TodoController.
func NewTodoController(service *services.TodoService, defaultMode models.DeleteMode) *TodoController {
	return &TodoController{Service: service, DefaultMode: defaultMode}
}

// GetTodos handles GET /todos.
func (c *TodoController) GetTodos(w http.ResponseWriter, r *http.Request) {
	roots, err := c.Service.ListRoots(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roots)
}

// CreateTodo handles POST /todos.
func (c *TodoController) CreateTodo(w http.ResponseWriter, r *http.Request) {
	var in models.CreateTodo
	if err := decodeBody(w, r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	todo, err := c.Service.CreateTodo(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, todo)
}

// GetTodoByID handles GET /todos/{todoID}. With ?children=true the
// response also lists the direct children.
func (c *TodoController) GetTodoByID(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(w, r)
	if !ok {
		return
	}

	withChildren := false
	if v := r.URL.Query().Get("children"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "children must be true or false")
			return
		}
		withChildren = b
	}

	if withChildren {
		todo, err := c.Service.GetTodoWithChildren(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, todo)
		return
	}

	todo, err := c.Service.GetTodo(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, todo)
}

// UpdateTodo handles PUT /todos/{todoID}.
func (c *TodoController) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(w, r)
	if !ok {
		return
	}
	var in models.UpdateTodo
	if err := decodeBody(w, r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	todo, err := c.Service.UpdateTodo(r.Context(), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, todo)
}

// DeleteTodo handles DELETE /todos/{todoID}?mode=safe|cascade|orphan.
// The deletion result is returned for both successful and refused deletes.
func (c *TodoController) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(w, r)
	if !ok {
		return
	}

	mode := c.DefaultMode
	if v := r.URL.Query().Get("mode"); v != "" {
		mode = models.DeleteMode(v)
	}

	result, err := c.Service.DeleteTodo(r.Context(), id, mode)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			result.Error = internalError
		}
		writeJSON(w, status, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetChildren handles GET /todos/{todoID}/children.
func (c *TodoController) GetChildren(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(w, r)
	if !ok {
		return
	}
	ids, err := c.Service.GetChildren(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

// GetDescendants handles GET /todos/{todoID}/descendants.
func (c *TodoController) GetDescendants(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(w, r)
	if !ok {
		return
	}
	ids, err := c.Service.GetDescendants(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

// Health handles GET /healthz.
func (c *TodoController) Health(w http.ResponseWriter, r *http.Request) {
	if err := c.Service.Ping(r.Context()); err != nil {
		writeMessage(w, http.StatusServiceUnavailable, internalError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func todoID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["todoID"])
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid todo id")
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrHasChildren):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = internalError
	}
	writeMessage(w, status, msg)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
