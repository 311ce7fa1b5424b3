package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/selectorpass/internal/adapter/driven/browser"
	sqliteadapter "github.com/ericfisherdev/selectorpass/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/selectorpass/internal/adapter/driving/http"
	webhandler "github.com/ericfisherdev/selectorpass/internal/adapter/driving/web"
	"github.com/ericfisherdev/selectorpass/internal/application"
	"github.com/ericfisherdev/selectorpass/internal/config"
	"github.com/ericfisherdev/selectorpass/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"remote_browser", cfg.UsesRemoteBrowser(),
		"headless", cfg.Headless,
		"fill_timeout", cfg.FillTimeout,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database and run migrations on the writer connection.
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	schemaVersion, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		return err
	}
	slog.Info("database ready", "path", cfg.DBPath, "schema_version", schemaVersion)

	// 4. Wire stores.
	records := sqliteadapter.NewRecordRepo(db)
	credentialStore := application.NewCredentialStore(records, slog.Default())
	viewStateStore := application.NewViewStateStore(records, slog.Default())
	slog.Info("credential store loaded", "domains", len(credentialStore.Load(ctx)))

	// 5. Start or attach to the browser.
	allocCtx, cancelAlloc, err := browser.NewAllocator(ctx, browser.Options{
		RemoteURL:  cfg.CDPURL,
		ExecPath:   cfg.ChromeBinary,
		ProfileDir: cfg.ProfileDir,
		Headless:   cfg.Headless,
	})
	if err != nil {
		return err
	}
	defer cancelAlloc()

	browserCtx, cancelBrowser, initialTab, err := browser.Start(allocCtx, cfg.UsesRemoteBrowser())
	if err != nil {
		return err
	}
	defer cancelBrowser()

	newFiller := func(doc driven.Document) driven.MessageHandler {
		return application.NewPageFiller(cfg.RuntimeID, doc, slog.Default())
	}
	bridge := browser.NewBridge(browserCtx, cfg.UsesRemoteBrowser(), newFiller, slog.Default())
	if initialTab != "" {
		bridge.RegisterTab(browserCtx, initialTab)
	}
	slog.Info("browser connected", "initial_tab", initialTab)

	// 6. Wire the fill path.
	dispatcher := application.NewFillDispatcher(
		credentialStore,
		bridge,
		bridge,
		bridge,
		cfg.RuntimeID,
		cfg.FillTimeout,
		slog.Default(),
	)

	// 7. Register API and GUI routes on one mux.
	mux := http.NewServeMux()
	apiHandler := httphandler.NewHandler(credentialStore, dispatcher, bridge, slog.Default())
	apiHandler.RegisterRoutes(mux)

	webHandler := webhandler.NewHandler(credentialStore, viewStateStore, dispatcher, slog.Default())
	webhandler.RegisterRoutes(mux, webHandler)

	handler := httphandler.ApplyMiddleware(mux, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			stop()
		}
	}()

	slog.Info("selectorpass started", "listen_addr", cfg.ListenAddr)

	// 8. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
