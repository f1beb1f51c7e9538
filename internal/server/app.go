// Package server initializes and runs the NoteLock backend: it wires the
// Postgres repositories, the account and document services, the watch hub
// and the HTTP API, and handles graceful shutdown on OS signals.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dbrusnev/notelock/internal/logging"
	"github.com/dbrusnev/notelock/internal/server/api"
	"github.com/dbrusnev/notelock/internal/server/config"
	"github.com/dbrusnev/notelock/internal/server/docs"
	"github.com/dbrusnev/notelock/internal/server/repositories/repomanager"
	"github.com/dbrusnev/notelock/internal/server/users"
	"github.com/dbrusnev/notelock/internal/server/watch"
)

type App struct {
	config *config.Config
	logger logging.Logger
	api    *api.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	rm, err := repomanager.NewPostgresRepositoryManager(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	hub := watch.NewHub()
	userService := users.NewService(rm.Users(), rm.RefreshTokens(), cfg)
	docService := docs.NewService(rm.Documents(), hub)

	apiServer := api.NewServer(cfg.EndpointAddr, []byte(cfg.SecretKey), userService, docService, hub, logger)

	return &App{config: cfg, logger: logger, api: apiServer}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.api.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()
}
