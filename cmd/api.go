package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/catalystcommunity/app-utils-go/errorutils"
	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/gammazero/workerpool"
	"github.com/pirate-baby/ATC/internal/claudecli"
	"github.com/pirate-baby/ATC/internal/config"
	"github.com/pirate-baby/ATC/internal/handlers"
	"github.com/pirate-baby/ATC/internal/monitor"
	"github.com/pirate-baby/ATC/internal/snapshots"
	"github.com/pirate-baby/ATC/internal/store"
	"github.com/pirate-baby/ATC/internal/store/postgres_store"
)

func Serve(mockValidator bool) error {
	// Run migrations first (goose tracks applied versions, concurrent
	// instances serialize on the advisory lock)
	if err := RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// set stores
	store.AppStore = postgres_store.PostgresStore

	// init stores and defer any functions we need to
	deferredStoreFuncs := initStores()
	for _, deferredFunc := range deferredStoreFuncs {
		defer deferredFunc()
	}

	if mockValidator {
		logging.Log.Warn("Using mock credential validator - every token will pass validation")
		handlers.SetValidator(claudecli.NewMockValidator())
	}

	// Create the handler with routes
	handler := handlers.NewRouter()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Resource monitor feeds the detailed health endpoint and the process
	// gauges
	if config.MonitorIntervalSeconds > 0 {
		resourceMonitor := monitor.NewResourceMonitor(time.Duration(config.MonitorIntervalSeconds) * time.Second)
		resourceMonitor.Start(ctx)
		defer resourceMonitor.Stop()
		handlers.SetResourceMonitor(resourceMonitor)
	}

	// Periodic stats snapshot archiver, disabled when the interval is zero
	if config.SnapshotIntervalMinutes > 0 {
		if archiveStore := handlers.GetArchiveStore(); archiveStore != nil {
			snapshotter := snapshots.NewSnapshotter(
				archiveStore,
				time.Duration(config.SnapshotIntervalMinutes)*time.Minute,
				config.SnapshotRetention,
			)
			snapshotter.Start(ctx)
			defer snapshotter.Stop()
			logging.Log.Infof("Snapshot archiver started (every %dm, keeping %d)",
				config.SnapshotIntervalMinutes, config.SnapshotRetention)
		}
	}

	// Log startup information
	logging.Log.Infof("Starting HTTP server on port %d", config.Port)

	// Start the HTTP server
	err := http.ListenAndServe(fmt.Sprintf(":%d", config.Port), handler)

	// ListenAndServe always eventually errors out, so we log it and return it
	errorutils.LogOnErr(nil, "ListenAndServe exited with: ", err)
	return err
}

func initStores() []func() {
	// initialize stores using a worker pool to speed up startup
	pool := workerpool.New(5)
	deferredFunctions := []func(){}

	pool.Submit(func() {
		deferredFunc, err := store.AppStore.Initialize()
		errorutils.PanicOnErr(nil, "error initializing app store", err)
		if deferredFunc != nil {
			deferredFunctions = append(deferredFunctions, deferredFunc)
		}
		logging.Log.Info("app store initialized")

		// Ensure default user exists if configured
		if err := store.AppStore.EnsureDefaultUser(); err != nil {
			logging.Log.WithError(err).Error("Failed to ensure default user")
		} else {
			logging.Log.Info("Default user check completed")
		}
	})

	pool.StopWait()
	return deferredFunctions
}
