package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"RegimeFlow/internal/domain/models"
	drepo "RegimeFlow/internal/domain/repository"
	applogger "RegimeFlow/pkg/logger"
	"RegimeFlow/pkg/util"
)

const insertChunk = 2000

// CHPanelStore keeps daily closes in ClickHouse as (symbol, d, close) rows
// and pivots them into a panel on load.
type CHPanelStore struct {
	db        *sql.DB
	table     string
	tickers   []string
	vixTicker string
	start     time.Time
	end       time.Time
	l         *applogger.Logger
}

func NewCHPanelStore(db *sql.DB, table string, tickers []string, vixTicker string, start, end time.Time) *CHPanelStore {
	return &CHPanelStore{
		db:        db,
		table:     table,
		tickers:   tickers,
		vixTicker: vixTicker,
		start:     start,
		end:       end,
		l:         applogger.Nop(),
	}
}

// SetLogger injects a structured logger.
func (s *CHPanelStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *CHPanelStore) Name() string { return "clickhouse" }

// Schema returns the DDL for the closes table.
func (s *CHPanelStore) Schema() string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (symbol String, d Date, close Float64) "+
		"ENGINE=ReplacingMergeTree ORDER BY (symbol, d)", s.table)
}

func (s *CHPanelStore) Load(ctx context.Context) (*models.Panel, *models.Series, error) {
	start := time.Now()
	symbols := append(append([]string(nil), s.tickers...), s.vixTicker)
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(symbols)), ", ")
	q := fmt.Sprintf(`
        SELECT symbol, d, close
        FROM %s
        WHERE symbol IN (%s) AND d >= ? AND d <= ?
        ORDER BY d ASC, symbol ASC
    `, s.table, marks)

	args := make([]interface{}, 0, len(symbols)+2)
	for _, sym := range symbols {
		args = append(args, sym)
	}
	end := s.end
	if end.IsZero() {
		end = util.TruncateDay(time.Now())
	}
	args = append(args, s.start, end)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse load_panel query error", applogger.String("table", s.table), applogger.Error(err))
		return nil, nil, fmt.Errorf("load panel: %w", err)
	}
	defer rows.Close()

	data := make(map[string]closes, len(symbols))
	n := 0
	for rows.Next() {
		var sym string
		var d time.Time
		var c float64
		if err := rows.Scan(&sym, &d, &c); err != nil {
			s.l.Error("clickhouse load_panel scan error", applogger.String("table", s.table), applogger.Error(err))
			return nil, nil, fmt.Errorf("scan close: %w", err)
		}
		if data[sym] == nil {
			data[sym] = make(closes)
		}
		data[sym][util.TruncateDay(d)] = c
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("rows: %w", err)
	}
	if n == 0 {
		return nil, nil, fmt.Errorf("%s: %w", s.table, drepo.ErrNotFound)
	}
	for _, sym := range s.tickers {
		if len(data[sym]) == 0 {
			return nil, nil, models.NewContractError("%s has no closes for %s", s.table, sym)
		}
	}

	prices, vix, err := assemble(s.tickers, s.vixTicker, data)
	if err != nil {
		return nil, nil, err
	}
	s.l.Info("clickhouse load_panel ok",
		applogger.String("table", s.table),
		applogger.Int("rows", n),
		applogger.Int("dates", prices.Rows()),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return prices, vix, nil
}

// Save batch-inserts every defined close, volatility index included.
func (s *CHPanelStore) Save(ctx context.Context, prices *models.Panel, vix *models.Series) error {
	type row struct {
		sym string
		d   time.Time
		c   float64
	}
	var all []row
	for i, d := range prices.Dates {
		for j, sym := range prices.Assets {
			if v := prices.Values[i][j]; !math.IsNaN(v) {
				all = append(all, row{sym, d, v})
			}
		}
		if v := vix.Values[i]; !math.IsNaN(v) {
			all = append(all, row{s.vixTicker, d, v})
		}
	}

	for lo := 0; lo < len(all); lo += insertChunk {
		hi := min(lo+insertChunk, len(all))
		values := make([]string, 0, hi-lo)
		args := make([]interface{}, 0, 3*(hi-lo))
		for _, r := range all[lo:hi] {
			values = append(values, "(?, ?, ?)")
			args = append(args, r.sym, r.d, r.c)
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, d, close) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse save_panel error", applogger.String("table", s.table), applogger.Error(err))
			return fmt.Errorf("save panel: %w", err)
		}
	}
	return nil
}
