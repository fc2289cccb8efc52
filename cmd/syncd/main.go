// Command syncd runs the synchronization core: it keeps the local entity
// caches consistent with the remote store, ingests push notifications over
// the webhook endpoint, and maintains the scheduled local alerts.
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

	"github.com/rezkam/pantry/internal/alert"
	"github.com/rezkam/pantry/internal/blob"
	blobfs "github.com/rezkam/pantry/internal/blob/fs"
	blobgcs "github.com/rezkam/pantry/internal/blob/gcs"
	"github.com/rezkam/pantry/internal/bus"
	"github.com/rezkam/pantry/internal/config"
	"github.com/rezkam/pantry/internal/push"
	"github.com/rezkam/pantry/internal/reconcile"
	"github.com/rezkam/pantry/internal/remote"
	"github.com/rezkam/pantry/internal/remote/memory"
	"github.com/rezkam/pantry/internal/remote/pgstore"
	"github.com/rezkam/pantry/internal/remote/sqlitestore"
	"github.com/rezkam/pantry/internal/repository"
	"github.com/rezkam/pantry/pkg/observability"
)

const serviceName = "pantry-syncd"

func main() {
	if err := run(); err != nil {
		slog.Error("syncd exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	providers, err := observability.Init(ctx, serviceName, "1.0.0", cfg.OTelEnabled)
	if err != nil {
		return err
	}
	slog.SetDefault(providers.Logger)
	defer func() {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shut down telemetry", "error", err)
		}
	}()

	store, closeStore, err := newRemoteStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	eventBus := bus.New()
	defer eventBus.Close()

	lists := repository.NewLists(store, eventBus, cfg.RemoteTimeout)
	items := repository.NewItems(store, eventBus, cfg.RemoteTimeout)
	photos := repository.NewPhotos(store, blobs, eventBus, cfg.RemoteTimeout)

	cascade := repository.NewCascade(lists, items, photos)
	go cascade.Run(ctx, eventBus.Subscribe())

	alertCfg := alert.Config{Hour: cfg.AlertHour, Location: cfg.AlertLocation()}
	records := alert.NewRecords(store, cfg.RemoteTimeout)
	scheduler := alert.NewScheduler(alert.NewLocalNotifier(nil), records, alertCfg)
	go scheduler.Run(ctx, eventBus.Subscribe())

	dispatcher := push.NewDispatcher(
		eventBus,
		func(ctx context.Context) error {
			_, err := lists.FetchAll(ctx)
			return err
		},
		func(listID string) reconcile.Refetcher {
			return func(ctx context.Context) error {
				_, err := items.FetchAll(ctx, listID)
				return err
			}
		},
		reconcile.WithGraceDelay(cfg.PushGraceDelay),
	)
	defer dispatcher.Stop()

	// Prime the caches and the alert schedule from the remote store.
	if allLists, err := lists.FetchAll(ctx); err != nil {
		slog.WarnContext(ctx, "initial list fetch failed", "error", err)
	} else {
		for _, list := range allLists {
			dispatcher.SetActive(list.ID, true)
			if _, err := items.FetchAll(ctx, list.ID); err != nil {
				slog.WarnContext(ctx, "initial item fetch failed",
					"list_id", list.ID, "error", err)
			}
		}
	}

	server := &http.Server{
		Addr:              cfg.PushAddr,
		Handler:           push.Handler(dispatcher),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "push webhook listening", "addr", cfg.PushAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.InfoContext(ctx, "shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shut down push server", "error", err)
	}

	slog.Info("syncd shut down gracefully")
	return nil
}

func newRemoteStore(ctx context.Context, cfg *config.Config) (remote.Store, func(), error) {
	switch cfg.RemoteBackend {
	case "memory":
		return memory.NewStore(), func() {}, nil
	case "sqlite":
		store, err := sqlitestore.NewStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case "postgres":
		store, err := pgstore.NewStore(ctx, pgstore.Config{
			DSN:         cfg.PostgresURL,
			CallTimeout: cfg.RemoteTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		return nil, nil, errors.New("unknown remote backend: " + cfg.RemoteBackend)
	}
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	switch cfg.BlobBackend {
	case "fs":
		return blobfs.NewStore(cfg.BlobDir)
	case "gcs":
		return blobgcs.NewStore(ctx, cfg.GCSBucket)
	default:
		return nil, errors.New("unknown blob backend: " + cfg.BlobBackend)
	}
}
