package repository

import (
	"context"
	"errors"

	"RegimeFlow/internal/domain/models"
)

// ErrNotFound is returned by a PanelStore that holds no snapshot.
var ErrNotFound = errors.New("panel not found")

// PriceFeed supplies an aligned price panel and its volatility index.
type PriceFeed interface {
	Load(ctx context.Context) (*models.Panel, *models.Series, error)
}

// Loader is a PriceFeed source that can name itself in logs.
type Loader interface {
	PriceFeed
	Name() string
}

// PanelStore persists a price panel and volatility index between runs.
type PanelStore interface {
	Loader
	Save(ctx context.Context, prices *models.Panel, vix *models.Series) error
}

// ReportPublisher ships a finished run downstream.
type ReportPublisher interface {
	Publish(ctx context.Context, r *models.Report) error
	Close() error
}

// ReportStore keeps the run summary and daily P&L.
type ReportStore interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, r *models.Report, days []models.DailyResult) error
	Health(ctx context.Context) error
	Close() error
}

type Metrics interface {
	RecordStage(stage string, seconds float64)
	RecordDegeneracy(kind string, n int)
	RecordError(kind string)
	RecordSummary(s models.Summary)
	RecordExposure(maxAbs float64)
}

// CurveWriter exports the daily equity curve of a run.
type CurveWriter interface {
	WriteCurve(ctx context.Context, path string, days []models.DailyResult) error
}
