package server

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"RegimeFlow/internal/usecase"
	"RegimeFlow/pkg/config"
	xhttp "RegimeFlow/pkg/http"
	applogger "RegimeFlow/pkg/logger"
)

// Pusher sends collected metrics to a Pushgateway.
type Pusher interface {
	Push(url, job string) error
}

// App encapsulates one backtest run and the optional report server.
type App struct {
	cfg      *config.Config
	runner   *usecase.BacktestRunner
	handler  xhttp.Handler
	gatherer prometheus.Gatherer
	pusher   Pusher
	closers  []io.Closer
	l        *applogger.Logger

	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, runner *usecase.BacktestRunner, l *applogger.Logger) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, runner: runner, l: l}
}

// SetHTTPHandler allows DI to inject the report handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.handler = h }

// SetMetrics exposes g on /metrics and pushes through p after a batch run.
// Either may be nil.
func (a *App) SetMetrics(g prometheus.Gatherer, p Pusher) {
	a.gatherer = g
	a.pusher = p
}

// AddCloser registers an infrastructure client released by Close.
func (a *App) AddCloser(c io.Closer) {
	if c != nil {
		a.closers = append(a.closers, c)
	}
}

// Logger is the application logger.
func (a *App) Logger() *applogger.Logger { return a.l }

// RunOnce executes one backtest and pushes metrics when a gateway is set.
func (a *App) RunOnce(ctx context.Context) (*usecase.RunResult, error) {
	res, err := a.runner.Run(ctx)
	if err != nil {
		return nil, err
	}
	if url := a.cfg.Metrics.PushGateway; url != "" && a.pusher != nil {
		if err := a.pusher.Push(url, a.cfg.Metrics.Job); err != nil {
			a.l.Warn("metrics push failed", applogger.String("url", url), applogger.Error(err))
		}
	}
	return res, nil
}

// Serve exposes the last run over HTTP until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(a.cfg.Server.Host),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	}
	if a.cfg.Metrics.Enabled && a.gatherer != nil {
		opts = append(opts, xhttp.WithMetrics(a.gatherer))
	}
	a.httpServer = xhttp.NewServer(a.handler, a.l, opts...)

	errCh := a.httpServer.Start()
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.l.Info("shutdown signal received")
	return a.httpServer.Stop(context.WithoutCancel(ctx))
}

// Close releases the runner's sinks and the infrastructure clients.
func (a *App) Close() error {
	errs := []error{a.runner.Close()}
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.l.Warn("shutdown incomplete", applogger.Error(err))
		return err
	}
	a.l.Info("shutdown complete")
	return nil
}
