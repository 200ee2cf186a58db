package di

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"RegimeFlow/internal/domain/repository"
	"RegimeFlow/internal/handler/api"
	internalrepo "RegimeFlow/internal/repository"
	svcmetrics "RegimeFlow/internal/service/metrics"
	"RegimeFlow/internal/service/ratelimit"
	"RegimeFlow/internal/services/backtest"
	"RegimeFlow/internal/services/blend"
	"RegimeFlow/internal/services/regime"
	"RegimeFlow/internal/services/signals"
	"RegimeFlow/internal/services/sizing"
	"RegimeFlow/internal/usecase"
	"RegimeFlow/pkg/cache"
	pkgch "RegimeFlow/pkg/clickhouse"
	"RegimeFlow/pkg/config"
	xhttp "RegimeFlow/pkg/http"
	pkgkafka "RegimeFlow/pkg/kafka"
	applogger "RegimeFlow/pkg/logger"
	"RegimeFlow/pkg/metrics"
	"RegimeFlow/pkg/server"
)

// ProvideLogger builds the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideRecorder creates the Prometheus recorder on its own registry.
func ProvideRecorder() *metrics.Recorder {
	return metrics.New()
}

// ProvideMetrics exposes the recorder through the domain port.
func ProvideMetrics(rec *metrics.Recorder) repository.Metrics {
	return rec
}

// ProvideClickHouseClient connects when ClickHouse is enabled, nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closes := internalrepo.NewCHPanelStore(client.DB(), closesTable(cfg), nil, "", time.Time{}, time.Time{})
	if err := client.InitSchema(ctx, []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", cfg.ClickHouse.Database),
		closes.Schema(),
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

func closesTable(cfg *config.Config) string {
	return cfg.ClickHouse.Database + "." + cfg.ClickHouse.Table
}

// ProvideCacheService returns the Redis cache when enabled, an in-memory
// cache when only the memory tier is on, nil otherwise.
func ProvideCacheService(cfg *config.Config) (cache.Service, error) {
	switch {
	case cfg.Cache.Redis:
		rc, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.Redis.Host),
			cache.WithRedisPort(cfg.Redis.Port),
			cache.WithRedisPassword(cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
			cache.WithRedisPrefix(cfg.Redis.Prefix),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return rc, nil
	case cfg.Cache.Memory:
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MaxItems),
			cache.WithMemoryDefaultTTL(cfg.Cache.TTL),
		), nil
	}
	return nil, nil
}

// ProvideKafkaProducer creates a Kafka producer when publishing is enabled.
func ProvideKafkaProducer(cfg *config.Config, rec *metrics.Recorder) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.ReadTimeout),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithRegisterer(rec.Registry()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideCSVStore is the on-disk panel cache. It also writes equity curves.
func ProvideCSVStore(cfg *config.Config, l *applogger.Logger) *internalrepo.CSVStore {
	s := internalrepo.NewCSVStore(filepath.Clean(cfg.Cache.Dir), cfg.Data.VIXTicker)
	s.SetLogger(l)
	return s
}

// ProvideFeed assembles the cache tiers and loaders in fallback order.
func ProvideFeed(
	cfg *config.Config,
	l *applogger.Logger,
	csv *internalrepo.CSVStore,
	cs cache.Service,
	ch *pkgch.Client,
) (*internalrepo.FeedChain, error) {
	d := cfg.Data
	var tiers []repository.PanelStore
	var loaders []repository.Loader

	if cs != nil {
		name := "memory"
		if cfg.Cache.Redis {
			name = "redis"
		}
		symbols := append(append([]string(nil), d.Tickers...), d.VIXTicker)
		snap := internalrepo.NewSnapshotPanelStore(cs, name, symbols, d.StartDate(), d.EndDate(), cfg.Cache.TTL)
		snap.SetLogger(l)
		tiers = append(tiers, snap)
	}
	if cfg.Cache.CSV {
		tiers = append(tiers, csv)
	}

	if d.PreferDownload && d.DownloadURL != "" {
		feed := internalrepo.NewHTTPFeed(internalrepo.HTTPFeedConfig{
			URLTemplate:       d.DownloadURL,
			Tickers:           d.Tickers,
			VIXTicker:         d.VIXTicker,
			Start:             d.StartDate(),
			End:               d.EndDate(),
			Retries:           d.Retries,
			Backoff:           d.Backoff,
			RequestsPerSecond: d.RequestsPerSec,
		}, xhttp.NewClient(xhttp.WithTimeout(d.Timeout)), ratelimit.New())
		feed.SetLogger(l)
		loaders = append(loaders, feed)
	}
	if ch != nil && cfg.ClickHouse.Source {
		store := internalrepo.NewCHPanelStore(ch.DB(), closesTable(cfg), d.Tickers, d.VIXTicker, d.StartDate(), d.EndDate())
		store.SetLogger(l)
		loaders = append(loaders, store)
	}
	synth, err := internalrepo.NewSyntheticFeed(internalrepo.SyntheticConfig{
		Mode:    d.SyntheticMode,
		Tickers: d.Tickers,
		Start:   d.StartDate(),
		End:     d.EndDate(),
		Seed:    d.SyntheticSeed,
	})
	if err != nil {
		return nil, err
	}
	loaders = append(loaders, synth)

	chain := internalrepo.NewFeedChain(tiers, loaders, d.ForceRefresh, d.Pause)
	chain.SetLogger(l)
	return chain, nil
}

// ProvideStrategy builds every strategy component from config.
func ProvideStrategy(cfg *config.Config, m repository.Metrics, l *applogger.Logger) (*usecase.RegimeStrategy, error) {
	s := cfg.Strategy
	est, err := regime.NewEstimator(cfg.RegimeConfig(), regime.WithLogger(l))
	if err != nil {
		return nil, err
	}
	mom, err := signals.NewMomentum(s.Momentum)
	if err != nil {
		return nil, err
	}
	pairs, err := signals.NewPairs(s.Pairs)
	if err != nil {
		return nil, err
	}
	ts, err := signals.NewTimeSeries(s.TimeSeries)
	if err != nil {
		return nil, err
	}
	def, err := signals.NewDefensive(s.Defensive)
	if err != nil {
		return nil, err
	}
	bl, err := blend.NewBlender(s.Blend)
	if err != nil {
		return nil, err
	}
	sz, err := sizing.NewSizer(cfg.SizingConfig())
	if err != nil {
		return nil, err
	}
	strat := usecase.NewRegimeStrategy(est, mom, pairs, ts, def, bl, sz, m)
	strat.SetLogger(l)
	return strat, nil
}

// ProvideEngine creates the backtest engine.
func ProvideEngine(cfg *config.Config) (*backtest.Engine, error) {
	return backtest.NewEngine(cfg.BacktestConfig())
}

// ProvideRunner wires the backtest use case and its sinks.
func ProvideRunner(
	cfg *config.Config,
	l *applogger.Logger,
	feed *internalrepo.FeedChain,
	strat *usecase.RegimeStrategy,
	engine *backtest.Engine,
	m repository.Metrics,
	csv *internalrepo.CSVStore,
	producer *pkgkafka.Producer,
	ch *pkgch.Client,
) (*usecase.BacktestRunner, error) {
	r := usecase.NewBacktestRunner(feed, strat, engine, m, usecase.RunnerConfig{
		MaxRows:         cfg.Data.MaxRows,
		Start:           cfg.Data.StartDate(),
		End:             cfg.Data.EndDate(),
		EquityCurvePath: cfg.Backtest.EquityCurvePath,
	})
	r.SetLogger(l)
	r.SetCurveWriter(csv)

	if producer != nil {
		r.AddPublisher(internalrepo.NewKafkaReportPublisher(producer, cfg.Kafka.Topic))
	}
	if ch != nil && cfg.ClickHouse.StoreReports {
		store := internalrepo.NewClickHouseReportStore(ch.DB(), cfg.ClickHouse.Database)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Init(ctx); err != nil {
			return nil, fmt.Errorf("report store: %w", err)
		}
		r.AddStore(store)
	}
	return r, nil
}

// ProvideReportHandler serves the last run.
func ProvideReportHandler(l *applogger.Logger, runner *usecase.BacktestRunner, rec *metrics.Recorder) *api.BacktestEchoHandler {
	return api.NewBacktestEchoHandler(l, runner, svcmetrics.NewReportMetrics(rec.Registry()))
}

// ProvideApp creates the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	runner *usecase.BacktestRunner,
	handler *api.BacktestEchoHandler,
	rec *metrics.Recorder,
	cs cache.Service,
	ch *pkgch.Client,
) *server.App {
	app := server.New(cfg, runner, l)
	app.SetHTTPHandler(handler)
	app.SetMetrics(rec.Registry(), rec)
	if rc, ok := cs.(*cache.RedisCache); ok {
		app.AddCloser(rc)
	}
	if ch != nil {
		app.AddCloser(ch)
	}
	return app
}
