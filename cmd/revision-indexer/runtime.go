package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/emperorhan/revision-indexer/internal/alert"
	"github.com/emperorhan/revision-indexer/internal/cache"
	"github.com/emperorhan/revision-indexer/internal/circuitbreaker"
	"github.com/emperorhan/revision-indexer/internal/classifier"
	"github.com/emperorhan/revision-indexer/internal/metrics"
	"github.com/emperorhan/revision-indexer/internal/pipeline"
	"github.com/emperorhan/revision-indexer/internal/pipeline/retry"
	"github.com/emperorhan/revision-indexer/internal/store"
	"github.com/emperorhan/revision-indexer/internal/store/postgres"
	redispkg "github.com/emperorhan/revision-indexer/internal/store/redis"
	"github.com/emperorhan/revision-indexer/internal/tracing"
)

const serviceName = "revision-indexer"

// runtime holds the connections opened for one command invocation.
type runtime struct {
	db              *postgres.DB
	revisions       *postgres.RevisionRepo
	store           store.RevisionStore
	scoreCache      *redispkg.ScoreCache
	alerter         alert.Alerter
	shutdownTracing func(context.Context) error
}

func (a *app) openRuntime(ctx context.Context) (*runtime, error) {
	cfg := a.cfg
	rt := &runtime{alerter: a.newAlerter()}

	tracingEndpoint := ""
	if cfg.Tracing.Enabled {
		tracingEndpoint = cfg.Tracing.Endpoint
	}
	shutdown, err := tracing.Init(ctx, serviceName, tracingEndpoint, cfg.Tracing.Insecure, cfg.Tracing.SampleRatio)
	if err != nil {
		return nil, fmt.Errorf("initialize tracing: %w", err)
	}
	rt.shutdownTracing = shutdown
	if cfg.Tracing.Enabled {
		a.logger.Info("tracing enabled", "endpoint", cfg.Tracing.Endpoint, "sample_ratio", cfg.Tracing.SampleRatio)
	}

	db, err := postgres.New(ctx, postgres.Config{
		URL:                cfg.DB.URL,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetime:    cfg.DB.ConnMaxLifetime,
		StatementTimeoutMS: cfg.DB.StatementTimeoutMS,
	})
	if err != nil {
		rt.Close(ctx, a.logger)
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	rt.db = db
	rt.revisions = postgres.NewRevisionRepo(db)
	rt.store = store.WithRetry(rt.revisions, retry.Policy{
		MaxAttempts: cfg.Pipeline.StoreRetryAttempts,
		Logger:      a.logger.With("component", "store"),
	})
	a.logger.Info("connected to database")

	if cfg.Redis.URL != "" {
		sc, err := redispkg.Dial(ctx, cfg.Redis.URL, cfg.Cache.TTL)
		if err != nil {
			// The shared tier only saves classifier calls.
			a.logger.Warn("redis score cache disabled", "error", err)
		} else {
			rt.scoreCache = sc
			a.logger.Info("redis score cache enabled")
		}
	}
	return rt, nil
}

func (rt *runtime) Close(ctx context.Context, logger *slog.Logger) {
	if rt.scoreCache != nil {
		if err := rt.scoreCache.Close(); err != nil {
			logger.Warn("redis close error", "error", err)
		}
	}
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			logger.Warn("database close error", "error", err)
		}
	}
	if rt.shutdownTracing != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := rt.shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}
}

// newAlerter returns nil when no alert channel is configured.
func (a *app) newAlerter() alert.Alerter {
	var channels []alert.Alerter
	if url := a.cfg.Alert.SlackWebhookURL; url != "" {
		channels = append(channels, alert.NewSlackAlerter(url))
	}
	if url := a.cfg.Alert.WebhookURL; url != "" {
		channels = append(channels, alert.NewWebhookAlerter(url))
	}
	if len(channels) == 0 {
		return nil
	}
	return alert.NewMultiAlerter(a.cfg.Alert.Cooldown, a.logger, channels...)
}

// sendAlert delivers synchronously with a bounded wait. Failures are logged.
func (a *app) sendAlert(ctx context.Context, rt *runtime, al alert.Alert) {
	if rt == nil || rt.alerter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := rt.alerter.Send(ctx, al); err != nil {
		a.logger.Warn("alert delivery failed", "type", al.Type, "error", err)
	}
}

// newClassifier builds the HTTP scoring client with the configured guards.
// An opening breaker raises an alert.
func (a *app) newClassifier(ctx context.Context, rt *runtime, run string) (*classifier.Client, error) {
	cfg := a.cfg.Classifier
	return classifier.NewClient(classifier.Config{
		BaseURL:   cfg.URL,
		Context:   cfg.Context,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
		RPS:       cfg.RPS,
		Burst:     cfg.Burst,
		Retry: retry.Policy{
			MaxAttempts: 3,
			Logger:      a.logger.With("component", "classifier"),
		},
		Breaker: circuitbreaker.Config{
			Name: "classifier",
			OnStateChange: func(name string, _, to circuitbreaker.State) {
				if to != circuitbreaker.StateOpen {
					return
				}
				go a.sendAlert(ctx, rt, alert.Alert{
					Type:    alert.AlertTypeCircuitOpen,
					Run:     run,
					Title:   "Classifier circuit open",
					Message: "scoring requests are rejected until the breaker probes again",
					Fields:  map[string]string{"breaker": name, "url": cfg.URL},
				})
			},
		},
	}, a.logger)
}

// newRevertScorer layers the in-process and shared caches over client.
func (a *app) newRevertScorer(client classifier.Scorer, rt *runtime) *classifier.CachedScorer {
	local := cache.NewLRU[int64, float64](a.cfg.Cache.Size, a.cfg.Cache.TTL)
	var remote classifier.ScoreCache
	if rt.scoreCache != nil {
		remote = rt.scoreCache
	}
	return classifier.NewCachedScorer(client, local, remote, a.logger)
}

// serve runs work next to the health server and pool sampler. It returns
// when work does, or after SIGINT/SIGTERM cancels it.
func (a *app) serve(ctx context.Context, rt *runtime, health *pipeline.PipelineHealth, work func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	g, gCtx := errgroup.WithContext(ctx)

	if a.cfg.Server.HealthPort > 0 {
		g.Go(func() error {
			return runHealthServer(gCtx, a.cfg.Server.HealthPort, health, a.logger)
		})
	}

	if rt.db != nil {
		startDBPoolStatsPump(gCtx, rt.db.DB, a.cfg.DB.PoolStatsIntervalMS, a.logger)
	}

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			a.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	g.Go(func() error {
		defer cancel()
		err := work(gCtx)
		if err != nil && !pipeline.IsCancellation(err) {
			a.sendAlert(ctx, rt, alert.Alert{
				Type:    alert.AlertTypeRunFailed,
				Run:     health.Name(),
				Title:   "Run failed",
				Message: err.Error(),
			})
		}
		return err
	})

	return g.Wait()
}

type dbStatsProvider interface {
	Stats() sql.DBStats
}

func collectDBPoolStats(db dbStatsProvider) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("db pool stats collection panicked: %v", r)
		}
	}()
	if db == nil {
		return errors.New("db stats provider is nil")
	}
	metrics.ObserveDBStats(db.Stats())
	return nil
}

func startDBPoolStatsPump(ctx context.Context, db dbStatsProvider, intervalMS int, logger *slog.Logger) {
	if db == nil || intervalMS <= 0 {
		return
	}

	ticker := time.NewTicker(time.Duration(intervalMS) * time.Millisecond)

	go func() {
		defer ticker.Stop()

		if err := collectDBPoolStats(db); err != nil {
			logger.Warn("failed to collect initial db pool stats", "error", err)
		}

		for {
			select {
			case <-ctx.Done():
				logger.Debug("db pool stats sampler stopped")
				return
			case <-ticker.C:
				if err := collectDBPoolStats(db); err != nil {
					logger.Warn("failed to collect db pool stats", "error", err)
				}
			}
		}
	}()
}

func newHealthMux(health *pipeline.PipelineHealth) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/healthz", health.Handler())
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func runHealthServer(ctx context.Context, port int, health *pipeline.PipelineHealth, logger *slog.Logger) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           newHealthMux(health),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("health server shutdown error", "error", err)
		}
	}()

	logger.Info("health server started", "port", port)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}
