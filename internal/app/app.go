package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"rivermonitor/internal/config"
	"rivermonitor/internal/logger"
	"rivermonitor/internal/repository/sqlite"
	"rivermonitor/internal/route"
	"rivermonitor/internal/service"
	"rivermonitor/internal/service/storage"
	"rivermonitor/internal/service/websocket"
)

type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	store      *storage.ImageStore
	hubService *websocket.HubService
	service    *service.ObservationService
	server     *http.Server
}

// NewApp opens the database and image store and wires the HTTP router.
func NewApp(cfg *config.Config) (*App, error) {
	log, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.New(cfg.Database)
	if err != nil {
		log.Close()
		return nil, err
	}

	store, err := storage.NewImageStore(cfg.Storage, log)
	if err != nil {
		db.Close()
		log.Close()
		return nil, err
	}

	hub := websocket.NewHubService(cfg.Feed, log)

	svc, err := service.NewObservationService(context.Background(), sqlite.NewObservationRepository(db), store, hub, log)
	if err != nil {
		db.Close()
		log.Close()
		return nil, err
	}

	router := route.SetupRoutes(route.Dependencies{
		Config:  cfg,
		Service: svc,
		Hub:     hub,
		DB:      db,
		Logger:  log,
	})

	return &App{
		config:     cfg,
		logger:     log,
		db:         db,
		store:      store,
		hubService: hub,
		service:    svc,
		server: &http.Server{
			Addr:         cfg.ListenAddr(),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}, nil
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests and
// stops the background services.
func (a *App) Run(ctx context.Context) error {
	bgCtx, stop := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	// Start background services
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.hubService.Run(bgCtx)
	}()
	go func() {
		defer wg.Done()
		if err := a.store.Run(bgCtx); err != nil {
			a.logger.Error("Staging sweep stopped: %v", err)
		}
	}()

	a.logger.Info("River monitor listening on http://%s", a.server.Addr)
	a.logger.Info("Images: %s, database: %s", a.store.Dir(), a.config.Database.Path)

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warning("Graceful shutdown failed: %v", err)
	}

	stop()
	wg.Wait()

	if serveErr != nil {
		return fmt.Errorf("http server: %w", serveErr)
	}
	return nil
}

// Close releases the database and log files.
func (a *App) Close() error {
	err := a.db.Close()
	if cerr := a.logger.Close(); err == nil {
		err = cerr
	}
	return err
}
