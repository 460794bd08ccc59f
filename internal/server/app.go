// Package server assembles the auth service: it connects the credential
// store, serves the HTTP API and tears both down again on Stop or on a
// termination signal.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/events"
	"github.com/dmitrijs2005/gophauth/internal/server/httpapi"
	"github.com/dmitrijs2005/gophauth/internal/server/lifecycle"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/resources"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// Subjects the app publishes under.
const (
	AppSubject   = "Auth App"
	StoreSubject = "Auth Model"
)

type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateStarted  State = "started"
	StateStopping State = "stopping"
)

// ErrStoppedWhileStarting is returned by Start when Stop ran before the
// listener was bound.
var ErrStoppedWhileStarting = errors.New("stopped while starting")

// Options are the optional collaborators of an App.
type Options struct {
	// Bus receives every notification. A nil bus drops them.
	Bus    *events.Bus
	Logger logging.Logger
	// Registry backs /metrics when metrics are enabled. Defaults to a fresh
	// registry.
	Registry *prometheus.Registry
	// HandleSignals attaches SIGINT, SIGQUIT and SIGTERM handlers on Start.
	// A signal stops the app and exits the process.
	HandleSignals bool
	// Exit replaces os.Exit after a signal-triggered stop.
	Exit func(code int)
}

type App struct {
	config    *config.Config
	opts      Options
	logger    logging.Logger
	em        *events.Emitter
	repos     repomanager.RepositoryManager
	orch      *resources.Orchestrator
	access    *auth.Signer
	refresh   *auth.Signer
	passwords auth.Passwords
	metrics   *httpapi.Metrics

	mu    sync.Mutex
	state State
	lc    *lifecycle.Lifecycle
	srv   *http.Server
	ln    net.Listener
	fatal chan error
}

// NewApp validates the key material and store settings of c. Nothing is
// connected until Start.
func NewApp(c *config.Config, opts Options) (*App, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Nop{}
	}

	accessKeys, err := auth.LoadKeyPair(c.AccessKey, c.AccessPublicKey)
	if err != nil {
		return nil, fmt.Errorf("access token keys: %w", err)
	}
	refreshKeys, err := auth.LoadKeyPair(c.RefreshKey, c.RefreshPublicKey)
	if err != nil {
		return nil, fmt.Errorf("refresh token keys: %w", err)
	}

	repos, err := repomanager.NewManager(repomanager.Options{
		Users:         repomanager.Backend(c.UsersBackend),
		RefreshTokens: repomanager.Backend(c.TokensBackend),
		PostgresDSN:   c.DatabaseDSN,
		PostgresOptions: resources.PostgresOptions{
			MaxOpenConns:    c.DBMaxOpenConns,
			MaxIdleConns:    c.DBMaxIdleConns,
			ConnMaxLifetime: c.DBConnMaxLifetime,
		},
		Migrate: c.Migrate,
		Redis: &redis.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		},
		RedisPrefix: c.RedisPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("repositories: %w", err)
	}

	app := &App{
		config:    c,
		opts:      opts,
		logger:    opts.Logger,
		em:        opts.Bus.Emitter(AppSubject, "server"),
		repos:     repos,
		orch:      resources.NewOrchestrator(opts.Bus.Emitter(StoreSubject, "store"), repos.Resources()...),
		access:    auth.NewSigner(c.Issuer, common.TokenTypeAccess, accessKeys, c.AccessTokenTTL),
		refresh:   auth.NewSigner(c.Issuer, common.TokenTypeRefresh, refreshKeys, c.RefreshTokenTTL),
		passwords: auth.NewPasswords(c.BcryptCost),
		state:     StateStopped,
	}

	if c.Metrics {
		reg := opts.Registry
		if reg == nil {
			reg = prometheus.NewRegistry()
		}
		if app.metrics, err = httpapi.NewMetrics(reg, reg); err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
	}
	return app, nil
}

func (app *App) State() State {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.state
}

// Addr is the bound listener address, or "" when not listening.
func (app *App) Addr() string {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.ln == nil {
		return ""
	}
	return app.ln.Addr().String()
}

// Start connects the store, builds the services and starts serving. It is a
// no-op unless the app is stopped. If anything fails the app is stopped
// again and the error returned.
func (app *App) Start(ctx context.Context) error {
	app.mu.Lock()
	if app.state != StateStopped {
		app.mu.Unlock()
		return nil
	}
	lc := lifecycle.New(lifecycle.Options{
		Emitter:       app.em,
		Exit:          app.opts.Exit,
		SignalTimeout: app.config.ShutdownTimeout,
		OnSignal: func(ctx context.Context, sig string) {
			_ = app.stop(ctx, sig)
		},
	})
	// Registered before anything is connected so a Stop racing Start still
	// tears down whatever came up.
	lc.Register(app.teardown)
	app.state = StateStarting
	app.lc = lc
	app.fatal = make(chan error, 1)
	app.mu.Unlock()

	app.em.Notify(events.Starting, nil)
	app.logger.Info(ctx, "Starting app...", "addr", app.config.ListenAddr)
	if app.opts.HandleSignals {
		lc.Listen()
	}

	handler, err := app.connect(ctx)
	if app.superseded(ctx, lc) {
		return ErrStoppedWhileStarting
	}
	if err != nil {
		return app.abort(ctx, err)
	}

	ln, err := net.Listen("tcp", app.config.ListenAddr)
	if err != nil {
		return app.abort(ctx, fmt.Errorf("listen: %w", err))
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	app.mu.Lock()
	if app.state != StateStarting || app.lc != lc {
		app.mu.Unlock()
		_ = ln.Close()
		app.superseded(ctx, lc)
		return ErrStoppedWhileStarting
	}
	app.srv, app.ln = srv, ln
	fatal := app.fatal
	app.mu.Unlock()

	app.em.Notify(events.Listening, ln.Addr().String())
	go app.serve(srv, ln, fatal)

	app.mu.Lock()
	started := app.lc == lc && app.state == StateStarting
	if started {
		app.state = StateStarted
	}
	app.mu.Unlock()

	if started {
		app.em.Notify(events.Started, nil)
	}
	return nil
}

// connect brings up the store and returns the HTTP handler built on it.
func (app *App) connect(ctx context.Context) (http.Handler, error) {
	if err := app.orch.Connect(ctx); err != nil {
		return nil, err
	}
	store, err := app.repos.Open(ctx, app.orch)
	if err != nil {
		return nil, err
	}

	tokens := services.NewTokenAuthority(
		store.Users, store.RefreshTokens,
		app.access, app.refresh, app.passwords,
		app.em.Component("tokens"),
	)
	return httpapi.NewRouter(httpapi.Deps{
		Tokens:  tokens,
		Users:   services.NewUserService(store.Users, app.passwords),
		Emitter: app.em,
		Metrics: app.metrics,
		State:   func() string { return string(app.State()) },
	}), nil
}

// superseded reports whether a Stop has taken over since Start installed lc.
// A Stop that ran before the store connected found nothing to disconnect, so
// the store is released here unless a later Start already owns it.
func (app *App) superseded(ctx context.Context, lc *lifecycle.Lifecycle) bool {
	app.mu.Lock()
	if app.state == StateStarting && app.lc == lc {
		app.mu.Unlock()
		return false
	}
	owned := app.lc == nil || app.lc == lc
	app.mu.Unlock()

	if owned {
		if err := app.orch.Disconnect(context.WithoutCancel(ctx)); err != nil {
			app.em.Fail(err, nil)
		}
	}
	return true
}

func (app *App) abort(ctx context.Context, err error) error {
	app.em.Fail(err, nil)
	_ = app.Stop(context.WithoutCancel(ctx))
	return err
}

// serve runs until the server is shut down. Any other serve error is fatal
// and stops the app.
func (app *App) serve(srv *http.Server, ln net.Listener, fatal chan<- error) {
	err := srv.Serve(ln)
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return
	}
	app.em.Fail(err, nil)
	select {
	case fatal <- err:
	default:
	}
	_ = app.Stop(context.Background())
}

// teardown closes the listener gracefully, then disconnects the store.
func (app *App) teardown(ctx context.Context, _ string) error {
	app.mu.Lock()
	srv, ln := app.srv, app.ln
	app.mu.Unlock()

	var errs []error
	if srv == nil {
		app.em.Notify(events.NotListening, nil)
	} else {
		app.em.Notify(events.Closing, nil)
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
			_ = srv.Close()
		} else {
			app.em.Notify(events.Closed, nil)
		}
		// Serve may not have taken ownership of the listener yet.
		_ = ln.Close()
	}

	if err := app.orch.Disconnect(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Stop tears the app down. It is idempotent and safe to call concurrently:
// every caller waits for the same teardown.
func (app *App) Stop(ctx context.Context) error {
	return app.stop(ctx, "stop")
}

// stop is shared by Stop and the signal handlers; trigger names the cause.
func (app *App) stop(ctx context.Context, trigger string) error {
	app.mu.Lock()
	if app.state == StateStopped {
		app.mu.Unlock()
		return nil
	}
	lc := app.lc
	first := app.state != StateStopping
	app.state = StateStopping
	app.mu.Unlock()

	if first {
		app.em.Notify(events.Stopping, nil)
	}
	lc.Run(ctx, trigger, nil)

	app.mu.Lock()
	last := app.lc == lc
	if last {
		app.state = StateStopped
		app.lc = nil
		app.srv, app.ln = nil, nil
	}
	app.mu.Unlock()

	if last {
		app.em.Notify(events.Stopped, nil)
		app.logger.Info(ctx, "App stopped")
	}
	return nil
}

// Run starts the app and blocks until ctx is cancelled or serving fails,
// then stops it within the configured shutdown timeout. It returns the
// start or serve error, if any.
func (app *App) Run(ctx context.Context) error {
	if err := app.Start(ctx); err != nil {
		return err
	}

	app.mu.Lock()
	fatal := app.fatal
	app.mu.Unlock()

	var err error
	select {
	case <-ctx.Done():
	case err = <-fatal:
	}

	stopCtx := context.WithoutCancel(ctx)
	if t := app.config.ShutdownTimeout; t > 0 {
		var cancel context.CancelFunc
		stopCtx, cancel = context.WithTimeout(stopCtx, t)
		defer cancel()
	}
	_ = app.Stop(stopCtx)
	return err
}
