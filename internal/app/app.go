package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/five82/atlas/internal/config"
	"github.com/five82/atlas/internal/detail"
	"github.com/five82/atlas/internal/kv"
	"github.com/five82/atlas/internal/listing"
	"github.com/five82/atlas/internal/logging"
	"github.com/five82/atlas/internal/metrics"
	"github.com/five82/atlas/internal/prefs"
	"github.com/five82/atlas/internal/restcountries"
	"github.com/five82/atlas/internal/session"
	"github.com/five82/atlas/internal/state"
	"github.com/five82/atlas/internal/ui"
)

// Options configure the atlas application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/atlas/prefs.toml
	Ephemeral  bool   // keep sessions and favorites in memory only

	// Overrides used by tests. Nil selects the configured implementation.
	Source restcountries.Source
	Store  kv.Store
	Logger *zap.Logger
}

// App owns every long-lived collaborator. It is built once by Open and
// passed down explicitly; nothing here is global.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Collector
	Source   restcountries.Source
	Catalog  *state.Store
	Session  *session.Store
	Resolver *detail.Resolver

	prefsPath string
	closers   []func() error
}

// Open loads configuration and wires the application. The caller must Close it.
func Open(ctx context.Context, opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &App{
		Config:    cfg,
		Registry:  prometheus.NewRegistry(),
		Catalog:   &state.Store{},
		prefsPath: opts.PrefsPath,
	}
	a.Metrics = metrics.NewCollector(a.Registry)

	a.Logger = opts.Logger
	if a.Logger == nil {
		logger, err := logging.New(cfg.LogPath(), cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		a.Logger = logger
		a.closers = append(a.closers, func() error {
			_ = logger.Sync()
			return nil
		})
	}

	a.Source = opts.Source
	if a.Source == nil {
		client, err := restcountries.NewClient(restcountries.Options{
			BaseURL:           cfg.APIBaseURL,
			Timeout:           cfg.RequestTimeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Metrics:           a.Metrics,
			Logger:            a.Logger.Named("restcountries"),
		})
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("init api client: %w", err)
		}
		a.Source = client
	}

	store := opts.Store
	switch {
	case store != nil:
	case opts.Ephemeral:
		store = kv.NewMemory()
	default:
		db, err := kv.Open(cfg.StorePath())
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		store = db
	}

	a.Session = session.New(store,
		session.WithMetrics(a.Metrics),
		session.WithLogger(a.Logger.Named("session")),
	)
	if err := a.Session.Restore(); err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Resolver = detail.NewResolver(a.Source, a.Logger.Named("detail"))

	a.Logger.Info("atlas started",
		zap.String("api", cfg.APIBaseURL),
		zap.Bool("ephemeral", opts.Ephemeral || opts.Store != nil),
		zap.Bool("logged_in", a.Session.LoggedIn()),
	)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewReconciler returns a listing reconciler configured for this app.
func (a *App) NewReconciler() *listing.Reconciler {
	return listing.New(
		listing.WithDebounce(a.Config.SearchDebounce),
		listing.WithMetrics(a.Metrics),
		listing.WithLogger(a.Logger.Named("listing")),
	)
}

// Run boots the TUI until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	a, err := Open(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return a.Run(ctx)
}

// Run starts the catalog refresher, the optional metrics server and the UI.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	userPrefs := prefs.Load(a.prefsPath)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		runRefresher(gctx, a.Catalog, a.Source, a.Config.RefreshEvery, a.Logger.Named("refresher"))
		return nil
	})

	if addr := strings.TrimSpace(a.Config.MetricsAddr); addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           metrics.Router(a.Registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			a.Logger.Info("metrics server listening", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer cancel()
		return ui.Run(ui.Options{
			Context:        gctx,
			Source:         a.Source,
			Catalog:        a.Catalog,
			Session:        a.Session,
			Resolver:       a.Resolver,
			Listing:        a.NewReconciler(),
			Logger:         a.Logger.Named("ui"),
			ThemeName:      userPrefs.Theme,
			FilterType:     userPrefs.FilterType,
			PrefsPath:      a.prefsPath,
			MapsKey:        a.Config.MapsEmbedKey,
			RequestTimeout: a.Config.RequestTimeout,
		})
	})

	return g.Wait()
}
