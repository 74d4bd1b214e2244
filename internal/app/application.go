// Package app assembles the server from its components in dependency
// order and owns startup and shutdown.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"quizroom/internal/api"
	"quizroom/internal/config"
	"quizroom/internal/database"
	"quizroom/internal/history"
	"quizroom/internal/hub"
	"quizroom/internal/images"
	"quizroom/internal/paging"
	"quizroom/internal/question"
	"quizroom/internal/room"
	"quizroom/internal/ws"
	dbconfig "quizroom/pkg/database"
	"quizroom/pkg/interfaces"
	"quizroom/pkg/types"
)

type Application struct {
	config     *config.Config
	dbManager  *database.Manager
	questions  *question.Provider
	historyGW  *history.Gateway
	rooms      *room.Manager
	registry   *ws.Registry
	dispatcher *hub.Dispatcher
	pager      interfaces.Pager
	apiServer  *api.Server
	httpServer *http.Server
}

// NewApplication builds every component or fails. Initialization
// order: database, question bank, history gateway, room manager,
// registry, dispatcher, paging, handlers, HTTP server.
func NewApplication(cfg *config.Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbCfg := dbconfig.DefaultConfig()
	dbCfg.DatabasePath = cfg.Database.Path
	dbManager, err := database.NewManager(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	// An unreachable question bank is a deployment problem; refuse to
	// start rather than serve rooms that can never get questions.
	questions, err := question.Load(context.Background(), dbManager)
	if err != nil {
		dbManager.Close()
		return nil, fmt.Errorf("load question bank: %w", err)
	}

	historyGW := history.NewGateway(dbManager, cfg.Room.HistoryBackfill)
	rooms := room.NewManager(questions, historyGW.SchedulePurge)
	registry := ws.NewRegistry()
	dispatcher := hub.NewDispatcher(registry)

	var pager interfaces.Pager
	if cfg.Paging.BotToken != "" && cfg.Paging.ChatID != "" {
		gateway, err := paging.NewGateway(cfg.Paging.BotToken, cfg.Paging.ChatID)
		if err != nil {
			dbManager.Close()
			return nil, fmt.Errorf("initialize paging: %w", err)
		}
		gateway.SetEnabled(cfg.Paging.Enabled)
		pager = gateway
	} else {
		pager = paging.NoopGateway{}
	}

	limiter := paging.NewRateLimiter()
	wsHandler := ws.NewHandler(registry, rooms, dispatcher, historyGW, pager, limiter, ws.HandlerOptions{
		MaxMessageLength: cfg.Room.MaxMessageLength,
		PageCooldown:     cfg.Paging.Cooldown,
		PingInterval:     cfg.WebSocket.PingInterval,
		ReadTimeout:      cfg.WebSocket.ReadTimeout,
	})

	var uploader interfaces.Uploader
	if cfg.Upload.StorageBaseURL != "" {
		uploader, err = images.NewUploader(cfg.Upload.StorageBaseURL, cfg.Upload.MaxBytes)
		if err != nil {
			dbManager.Close()
			return nil, fmt.Errorf("initialize uploads: %w", err)
		}
	} else {
		uploader = unavailableUploader{}
	}

	apiServer := api.NewServer(dbManager, rooms, uploader, pager, dispatcher, api.Options{
		OperatorToken:  cfg.Paging.OperatorToken,
		UploadMaxBytes: cfg.Upload.MaxBytes,
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		dbManager:  dbManager,
		questions:  questions,
		historyGW:  historyGW,
		rooms:      rooms,
		registry:   registry,
		dispatcher: dispatcher,
		pager:      pager,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

// Start brings up the HTTP server and reports early listen failures.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("app: starting addr=%s levels=%v", app.httpServer.Addr, app.questions.Levels())

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("app: started")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts components down in reverse dependency order.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("app: shutting down")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("app: http shutdown err=%v", err)
	}
	app.historyGW.Close()
	if err := app.dbManager.Close(); err != nil {
		log.Printf("app: database close err=%v", err)
	}

	log.Printf("app: shutdown complete")
	return nil
}

// Addr returns the listen address.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}

// unavailableUploader answers every upload with a storage error when no
// storage collaborator is configured.
type unavailableUploader struct{}

func (unavailableUploader) Upload(ctx context.Context, filename string, data []byte) (*types.UploadResult, error) {
	return nil, images.ErrStorageUnavailable
}
