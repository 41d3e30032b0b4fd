// Package tools exposes the todo service as MCP tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"todo-tree/app/models"
	"todo-tree/app/services"
)

// TodoTools holds the service used by the tool handlers.
type TodoTools struct {
	Service *services.TodoService
}

// --- Input types ---

type CreateTodoInput struct {
	Title       string `json:"title" jsonschema:"Todo title, 1 to 255 characters"`
	Description string `json:"description,omitempty" jsonschema:"Optional description, up to 1024 characters"`
	ParentID    string `json:"parent_id,omitempty" jsonschema:"Optional UUID of the parent todo"`
}

type TodoIDInput struct {
	ID string `json:"id" jsonschema:"UUID of the todo"`
}

type GetTodoInput struct {
	ID       string `json:"id" jsonschema:"UUID of the todo"`
	Children bool   `json:"children,omitempty" jsonschema:"Also list the IDs of direct children"`
}

type UpdateTodoInput struct {
	ID          string  `json:"id" jsonschema:"UUID of the todo"`
	Title       *string `json:"title,omitempty" jsonschema:"New title"`
	Description *string `json:"description,omitempty" jsonschema:"New description"`
}

type DeleteTodoInput struct {
	ID   string `json:"id" jsonschema:"UUID of the todo"`
	Mode string `json:"mode" jsonschema:"safe refuses when children exist, cascade removes the subtree, orphan promotes children to roots"`
}

// --- Handlers ---

func (t *TodoTools) CreateTodo(ctx context.Context, _ *mcp.CallToolRequest, input CreateTodoInput) (*mcp.CallToolResult, any, error) {
	in := models.CreateTodo{Title: input.Title, Description: input.Description}
	if input.ParentID != "" {
		parent, err := uuid.Parse(input.ParentID)
		if err != nil {
			return toolError("Invalid parent_id %q: %v", input.ParentID, err), nil, nil
		}
		in.ParentID = &parent
	}

	todo, err := t.Service.CreateTodo(ctx, in)
	if err != nil {
		return toolError("Failed to create todo: %v", err), nil, nil
	}
	return toolJSON(todo)
}

func (t *TodoTools) GetTodo(ctx context.Context, _ *mcp.CallToolRequest, input GetTodoInput) (*mcp.CallToolResult, any, error) {
	id, errResult := parseID(input.ID)
	if errResult != nil {
		return errResult, nil, nil
	}

	if input.Children {
		todo, err := t.Service.GetTodoWithChildren(ctx, id)
		if err != nil {
			return toolError("Failed to get todo: %v", err), nil, nil
		}
		return toolJSON(todo)
	}
	todo, err := t.Service.GetTodo(ctx, id)
	if err != nil {
		return toolError("Failed to get todo: %v", err), nil, nil
	}
	return toolJSON(todo)
}

func (t *TodoTools) ListRootTodos(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	roots, err := t.Service.ListRoots(ctx)
	if err != nil {
		return toolError("Failed to list todos: %v", err), nil, nil
	}
	return toolJSON(roots)
}

func (t *TodoTools) UpdateTodo(ctx context.Context, _ *mcp.CallToolRequest, input UpdateTodoInput) (*mcp.CallToolResult, any, error) {
	id, errResult := parseID(input.ID)
	if errResult != nil {
		return errResult, nil, nil
	}

	todo, err := t.Service.UpdateTodo(ctx, id, models.UpdateTodo{
		Title:       input.Title,
		Description: input.Description,
	})
	if err != nil {
		return toolError("Failed to update todo: %v", err), nil, nil
	}
	return toolJSON(todo)
}

func (t *TodoTools) DeleteTodo(ctx context.Context, _ *mcp.CallToolRequest, input DeleteTodoInput) (*mcp.CallToolResult, any, error) {
	id, errResult := parseID(input.ID)
	if errResult != nil {
		return errResult, nil, nil
	}

	result, err := t.Service.DeleteTodo(ctx, id, models.DeleteMode(input.Mode))
	res, _, jerr := toolJSON(result)
	if err != nil && jerr == nil {
		res.IsError = true
	}
	return res, nil, jerr
}

func (t *TodoTools) GetChildren(ctx context.Context, _ *mcp.CallToolRequest, input TodoIDInput) (*mcp.CallToolResult, any, error) {
	id, errResult := parseID(input.ID)
	if errResult != nil {
		return errResult, nil, nil
	}
	ids, err := t.Service.GetChildren(ctx, id)
	if err != nil {
		return toolError("Failed to get children: %v", err), nil, nil
	}
	return toolJSON(ids)
}

func (t *TodoTools) GetDescendants(ctx context.Context, _ *mcp.CallToolRequest, input TodoIDInput) (*mcp.CallToolResult, any, error) {
	id, errResult := parseID(input.ID)
	if errResult != nil {
		return errResult, nil, nil
	}
	ids, err := t.Service.GetDescendants(ctx, id)
	if err != nil {
		return toolError("Failed to get descendants: %v", err), nil, nil
	}
	return toolJSON(ids)
}

// --- Helpers ---

func parseID(s string) (uuid.UUID, *mcp.CallToolResult) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, toolError("Invalid todo id %q: %v", s, err)
	}
	return id, nil
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
