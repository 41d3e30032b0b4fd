package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"todo-tree/app/config"
	"todo-tree/app/controllers"
	"todo-tree/app/logs"
	"todo-tree/app/models"
	"todo-tree/app/routes"
	"todo-tree/app/services"
	"todo-tree/app/tools"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "todo-tree:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		return err
	}

	logger, err := logs.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize the storage backend
	todoStore, err := config.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer todoStore.Close(context.Background())

	// Initialize the service and controller layers
	todoService := services.NewTodoService(todoStore, logger)
	todoController := controllers.NewTodoController(todoService, models.DeleteMode(cfg.Delete.DefaultMode))

	var mcpHandler http.Handler
	if cfg.MCP.Enabled {
		mcpHandler = tools.NewHandler(tools.NewServer(todoService, version))
	}

	// Setup HTTP server
	router := mux.NewRouter()
	router.Use(routes.LogRequests(logger))
	routes.RegisterRoutes(router, todoController, mcpHandler)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server is running", "addr", cfg.HTTP.Addr, "store", cfg.Store.Backend, "mcp", cfg.MCP.Enabled)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
