// Package app wires configuration, storage, catalogs, and the query API
// into the four tessloc run modes.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"

	httpapi "github.com/tessloc/tessloc/internal/api/http"
	"github.com/tessloc/tessloc/internal/archive"
	"github.com/tessloc/tessloc/internal/config"
	"github.com/tessloc/tessloc/internal/imagelist"
	"github.com/tessloc/tessloc/internal/locator"
	"github.com/tessloc/tessloc/internal/mirror"
	"github.com/tessloc/tessloc/internal/server"
	"github.com/tessloc/tessloc/internal/storage"
	"github.com/tessloc/tessloc/internal/wcscatalog"
	"github.com/tessloc/tessloc/pkg/tess"
)

// App owns the wired tessloc components. Construction validates the
// configuration and builds everything; the Run* methods execute one mode.
type App struct {
	cfg *config.Config

	fetcher *imagelist.Fetcher
	loader  *imagelist.Loader
	builder *wcscatalog.Builder
	locator *locator.Service
	mirror  *mirror.Mirror

	shutdown *server.ShutdownManager
}

// New builds an app from the given configuration.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	querier := archive.NewTAPClient(cfg.Archive.TAPURL, cfg.Archive.RequestTimeout)
	headers := archive.NewFITSHeaderClient(cfg.Archive.RequestTimeout, cfg.Archive.MaxHeaderBlocks)

	listingStore := imagelist.NewStore(cfg.ListingPath)
	fetcher := imagelist.NewFetcher(querier, listingStore)
	loader := imagelist.NewLoader(listingStore)

	wcsStore := wcscatalog.NewStore(cfg.WCSCatalogPath())
	builder := wcscatalog.NewBuilder(fetcher, loader, headers, wcsStore, nil)

	a := &App{
		cfg:      cfg,
		fetcher:  fetcher,
		loader:   loader,
		builder:  builder,
		locator:  locator.NewService(loader, wcsStore, cfg.Catalog.WCSCacheSize),
		shutdown: server.NewShutdownManager(0),
	}

	if cfg.MirrorEnabled() {
		objects, err := newObjectStorage(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.mirror = mirror.New(objects, cfg)
		log.Printf("mirror initialized: type=%s", cfg.Storage.Type)
	}

	return a, nil
}

func newObjectStorage(ctx context.Context, cfg *config.Config) (storage.ObjectStorage, error) {
	switch cfg.Storage.Type {
	case "local":
		return storage.NewLocalStorage(cfg.Storage.Path)
	case "s3":
		return storage.NewS3Storage(ctx, cfg.Storage.S3.Bucket, storage.S3Config{
			Region:       cfg.Storage.S3.Region,
			Endpoint:     cfg.Storage.S3.Endpoint,
			UsePathStyle: cfg.Storage.S3.Endpoint != "",
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

// RunFetch downloads and persists image listings. An empty sector list
// fetches every sector; per-sector failures are logged and skipped. With
// explicit sectors, a failure is fatal.
func (a *App) RunFetch(ctx context.Context, sectors []int) error {
	if len(sectors) == 0 {
		if failed := a.fetcher.FetchAll(ctx); failed > 0 {
			log.Printf("fetch finished with %d failed sectors", failed)
		}
		return ctx.Err()
	}

	for _, sector := range sectors {
		if _, err := a.fetcher.Fetch(ctx, sector); err != nil {
			return err
		}
	}
	return nil
}

// RunWCS rebuilds the WCS catalog for the given sectors (all when empty)
// and publishes the artifacts when a mirror is configured. The rebuild
// replaces the whole catalog.
func (a *App) RunWCS(ctx context.Context, sectors []int) error {
	if err := a.builder.Update(ctx, sectors); err != nil {
		return err
	}
	if a.mirror != nil {
		if _, err := a.mirror.Publish(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RunServe pulls missing catalog artifacts when a mirror is configured,
// then serves the query API until a shutdown signal arrives.
func (a *App) RunServe(ctx context.Context) error {
	if a.mirror != nil {
		if _, err := a.mirror.Pull(ctx); err != nil {
			return err
		}
	}

	httpServer := &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      httpapi.NewRouter(a.locator),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}
	graceful := server.NewGracefulHTTPServer(httpServer, a.shutdown)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("query API listening on %s", a.cfg.HTTP.Addr)
		errCh <- graceful.ListenAndServe()
	}()

	if err := a.shutdown.ListenForSignals(ctx); err != nil {
		return err
	}
	return <-errCh
}

// RunLookup answers a single time-to-sector lookup and prints the result.
func (a *App) RunLookup(ctx context.Context, timestamp string) error {
	if a.mirror != nil {
		if _, err := a.mirror.Pull(ctx); err != nil {
			return err
		}
	}

	sector, found, err := a.locator.TimeToSector(ctx, timestamp)
	if err != nil {
		return err
	}
	if !found {
		fmt.Printf("%s: no sector was observing\n", timestamp)
		return nil
	}
	fmt.Printf("%s: sector %d\n", timestamp, sector)
	return nil
}

// Run dispatches to the mode selected in the configuration.
func (a *App) Run(ctx context.Context, sectors []int, timestamp string) error {
	switch a.cfg.Mode {
	case config.ModeFetch:
		return a.RunFetch(ctx, sectors)
	case config.ModeWCS:
		return a.RunWCS(ctx, sectors)
	case config.ModeServe:
		return a.RunServe(ctx)
	case config.ModeLookup:
		return a.RunLookup(ctx, timestamp)
	default:
		return fmt.Errorf("unsupported mode: %s", a.cfg.Mode)
	}
}

// Shutdown stops a serving app.
func (a *App) Shutdown(ctx context.Context) error {
	return a.shutdown.Shutdown(ctx, "requested")
}

// ValidateSectors rejects sector numbers outside the known range.
func ValidateSectors(sectors []int) error {
	for _, s := range sectors {
		if s < 1 || s > tess.Sectors {
			return fmt.Errorf("sector %d outside known range [1, %d]", s, tess.Sectors)
		}
	}
	return nil
}
