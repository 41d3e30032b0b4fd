package tools

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"todo-tree/app/services"
)

// NewServer creates an MCP server with every todo tool registered.
func NewServer(svc *services.TodoService, version string) *mcp.Server {
	tt := &TodoTools{Service: svc}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "todo-tree",
		Version: version,
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "create_todo",
		Description: "Create a todo, optionally under an existing parent",
	}, tt.CreateTodo)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_todo",
		Description: "Get a todo by ID, optionally with the IDs of its direct children",
	}, tt.GetTodo)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_root_todos",
		Description: "List todos without a parent, oldest first, with their child IDs",
	}, tt.ListRootTodos)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "update_todo",
		Description: "Change the title and/or description of a todo",
	}, tt.UpdateTodo)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "delete_todo",
		Description: "Delete a todo using mode safe, cascade or orphan",
	}, tt.DeleteTodo)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_children",
		Description: "List the IDs of the direct children of a todo",
	}, tt.GetChildren)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_descendants",
		Description: "List the IDs of every todo below a todo, depth first",
	}, tt.GetDescendants)

	return srv
}

// NewHandler serves srv over the streamable HTTP transport.
func NewHandler(srv *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil)
}
