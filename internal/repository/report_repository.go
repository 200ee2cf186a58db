package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"RegimeFlow/internal/domain/models"
	"RegimeFlow/internal/domain/repository"
	pkgkafka "RegimeFlow/pkg/kafka"
)

// ClickHouseReportStore implements ReportStore for ClickHouse. Runs and
// their daily rows live in two tables sharing run_id.
type ClickHouseReportStore struct {
	db       *sql.DB
	runs     string
	daily    string
	database string
}

// NewClickHouseReportStore creates ClickHouse report storage in database.
func NewClickHouseReportStore(db *sql.DB, database string) repository.ReportStore {
	return &ClickHouseReportStore{
		db:       db,
		database: database,
		runs:     database + ".backtest_runs",
		daily:    database + ".backtest_daily",
	}
}

func (s *ClickHouseReportStore) Init(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", s.database),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (run_id String, generated_at DateTime, source String, "+
			"start Date, end Date, days UInt32, regime_strategy String, cagr Nullable(Float64), "+
			"sharpe Nullable(Float64), max_drawdown Nullable(Float64), payload String) "+
			"ENGINE=MergeTree ORDER BY (generated_at, run_id)", s.runs),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (run_id String, d Date, gross Float64, cost Float64, "+
			"turnover Float64, net Float64, equity Float64) ENGINE=MergeTree ORDER BY (run_id, d)", s.daily),
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("init report schema: %w", err)
		}
	}
	return nil
}

func nullable(v models.Stat) sql.NullFloat64 {
	return sql.NullFloat64{Float64: float64(v), Valid: v.Defined()}
}

func (s *ClickHouseReportStore) Store(ctx context.Context, r *models.Report, days []models.DailyResult) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	q := fmt.Sprintf("INSERT INTO %s (run_id, generated_at, source, start, end, days, regime_strategy, "+
		"cagr, sharpe, max_drawdown, payload) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", s.runs)
	_, err = s.db.ExecContext(ctx, q,
		r.RunID,
		r.GeneratedAt,
		r.Source,
		r.Start,
		r.End,
		uint32(r.Days),
		r.Strategy,
		nullable(r.Summary.CAGR),
		nullable(r.Summary.Sharpe),
		nullable(r.Summary.MaxDrawdown),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("store run: %w", err)
	}
	return s.storeDaily(ctx, r.RunID, days)
}

func (s *ClickHouseReportStore) storeDaily(ctx context.Context, runID string, days []models.DailyResult) error {
	for start := 0; start < len(days); start += insertChunk {
		end := min(start+insertChunk, len(days))
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*7)
		for _, d := range days[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args, runID, d.Date, d.Gross, d.Cost, d.Turnover, d.Net, d.Equity)
		}
		q := fmt.Sprintf("INSERT INTO %s (run_id, d, gross, cost, turnover, net, equity) VALUES %s",
			s.daily, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("store daily: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseReportStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseReportStore) Close() error {
	return nil // Managed by pkg
}

// KafkaReportPublisher implements ReportPublisher for Kafka.
type KafkaReportPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaReportPublisher creates a Kafka publisher keyed by run id.
func NewKafkaReportPublisher(producer *pkgkafka.Producer, topic string) repository.ReportPublisher {
	return &KafkaReportPublisher{producer: producer, topic: topic}
}

func (p *KafkaReportPublisher) Publish(ctx context.Context, r *models.Report) error {
	return p.producer.Publish(ctx, p.topic, []byte(r.RunID), r)
}

func (p *KafkaReportPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
