// Package server initializes and runs the account service: it wires the
// credential store, token issuer, session registry and audit sinks, starts
// the gRPC endpoint plus the metrics/health HTTP endpoint and shuts them down
// on SIGINT/SIGTERM.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/medaccount/internal/api"
	"github.com/dmitrijs2005/medaccount/internal/buildinfo"
	"github.com/dmitrijs2005/medaccount/internal/logging"
	"github.com/dmitrijs2005/medaccount/internal/server/audit"
	"github.com/dmitrijs2005/medaccount/internal/server/avatars"
	"github.com/dmitrijs2005/medaccount/internal/server/config"
	"github.com/dmitrijs2005/medaccount/internal/server/metrics"
	"github.com/dmitrijs2005/medaccount/internal/server/password"
	"github.com/dmitrijs2005/medaccount/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/medaccount/internal/server/repositories/revocations"
	"github.com/dmitrijs2005/medaccount/internal/server/services"
	"github.com/dmitrijs2005/medaccount/internal/server/sessions"
	"github.com/dmitrijs2005/medaccount/internal/server/tokens"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/medaccount/internal/server/grpc"
)

// ServiceName identifies the service in health responses and traces.
const ServiceName = "medaccount"

type App struct {
	config  *config.Config
	logger  logging.Logger
	repos   repomanager.RepositoryManager
	auth    *services.AuthService
	account *services.AccountService
	metrics *metrics.Metrics

	closers         []io.Closer
	shutdownTracing func(context.Context) error
	now             func() time.Time
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger, err := logging.New(c.LogFormat, c.LogLevel, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	app := &App{config: c, logger: logger, now: time.Now}

	if err := app.initStore(ctx); err != nil {
		app.close(ctx)
		return nil, err
	}

	if err := app.repos.RunMigrations(ctx); err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	recorder, err := app.initAudit()
	if err != nil {
		app.close(ctx)
		return nil, err
	}

	m, err := metrics.New(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	if err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("metrics init error: %w", err)
	}
	app.metrics = m
	app.shutdownTracing = metrics.InitTracing(ServiceName, buildinfo.Version)

	deps := services.Deps{
		Repos:  app.repos,
		Hasher: password.NewBcryptHasher(c.BcryptCost),
		Issuer: tokens.NewIssuer(tokens.Config{
			Secret:        []byte(c.SecretKey),
			AccessTTL:     c.AccessTTL,
			RefreshTTL:    c.RefreshTTL,
			RotateRefresh: c.RotateRefresh,
		}, app.repos.Revocations()),
		Sessions: sessions.NewRegistry(app.repos.Sessions()),
		Audit:    recorder,
		Metrics:  m,
		Logger:   logger,
	}

	if c.S3Bucket != "" {
		store, err := avatars.NewS3Store(ctx, avatars.Config{
			Region:    c.S3Region,
			AccessKey: c.S3RootUser,
			SecretKey: c.S3RootPassword,
			Endpoint:  c.S3BaseEndpoint,
			Bucket:    c.S3Bucket,
		})
		if err != nil {
			app.close(ctx)
			return nil, err
		}
		deps.Avatars = store
	}

	app.auth = services.NewAuthService(deps, services.AuthPolicy{RevokeOnPasswordChange: c.RevokeOnPasswordChange})
	app.account = services.NewAccountService(deps)

	return app, nil
}

// initStore selects Postgres when a DSN is configured and the in-memory
// store otherwise. Redis, when configured, takes over the revocation set.
func (app *App) initStore(ctx context.Context) error {
	if app.config.DatabaseDSN == "" {
		app.logger.Warn(ctx, "No database DSN configured, using in-memory store")
		app.repos = repomanager.NewMemoryRepositoryManager()
		return nil
	}

	db, err := repomanager.OpenPostgres(ctx, app.config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}

	var opts []repomanager.Option
	if app.config.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: app.config.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			_ = db.Close()
			return fmt.Errorf("redis init error: %w", err)
		}
		app.closers = append(app.closers, client)
		opts = append(opts, repomanager.WithRevocations(revocations.NewRedisRepository(client)))
	}

	app.repos = repomanager.NewPostgresRepositoryManager(db, opts...)
	return nil
}

func (app *App) initAudit() (*audit.Recorder, error) {
	sinks := audit.MultiSink{audit.NewLogSink(app.logger)}

	if app.config.AMQPURL != "" {
		sink, err := audit.DialAMQP(app.config.AMQPURL, audit.DefaultExchange)
		if err != nil {
			return nil, fmt.Errorf("amqp init error: %w", err)
		}
		app.closers = append(app.closers, sink)
		sinks = append(sinks, sink)
	}

	return audit.NewRecorder(sinks, app.logger), nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.auth, app.account, buildinfo.Version)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) httpHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.metrics.Handler())
	mux.HandleFunc("/healthz", app.healthz)
	return mux
}

func (app *App) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(api.HealthResponse{
		Status:    "healthy",
		Service:   ServiceName,
		Version:   buildinfo.Version,
		Timestamp: app.now().UTC(),
	})
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.HTTPAddr,
		Handler:           app.httpHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.HTTPAddr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// purgeRevocations drops revocation entries whose tokens have expired anyway.
func (app *App) purgeRevocations(ctx context.Context) {
	if app.config.PurgeInterval <= 0 {
		return
	}

	ticker := time.NewTicker(app.config.PurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.repos.Revocations().Purge(ctx, app.now())
			if err != nil {
				app.logger.Warn(ctx, "revocation purge failed", "error", err.Error())
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "purged expired revocations", "count", n)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "version", buildinfo.Version)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.purgeRevocations(ctx)
	}()

	wg.Wait()

	app.close(context.Background())
	app.logger.Info(context.Background(), "App stopped")
}

func (app *App) close(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Warn(ctx, "close failed", "error", err.Error())
		}
	}
	app.closers = nil

	if app.repos != nil {
		if err := app.repos.Close(); err != nil {
			app.logger.Warn(ctx, "store close failed", "error", err.Error())
		}
	}
	if app.shutdownTracing != nil {
		_ = app.shutdownTracing(ctx)
	}
}
