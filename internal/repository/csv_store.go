package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"RegimeFlow/internal/domain/models"
	drepo "RegimeFlow/internal/domain/repository"
	applogger "RegimeFlow/pkg/logger"
	"RegimeFlow/pkg/util"
)

const (
	pricesFile = "prices.csv"
	vixFile    = "vix.csv"
)

// CSVStore keeps the panel as prices.csv and vix.csv in one directory.
// Floats are written in shortest round-trip form and NaN as an empty cell,
// so Save followed by Load reproduces the panel exactly.
type CSVStore struct {
	dir       string
	vixColumn string
	l         *applogger.Logger
}

func NewCSVStore(dir, vixColumn string) *CSVStore {
	if vixColumn == "" {
		vixColumn = "^VIX"
	}
	return &CSVStore{dir: dir, vixColumn: vixColumn, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CSVStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *CSVStore) Name() string { return "csv" }

// Load reads both tables and aligns them on their common dates.
func (s *CSVStore) Load(ctx context.Context) (*models.Panel, *models.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	pDates, assets, pRows, err := readTable(filepath.Join(s.dir, pricesFile))
	if err != nil {
		return nil, nil, err
	}
	vDates, vCols, vRows, err := readTable(filepath.Join(s.dir, vixFile))
	if err != nil {
		return nil, nil, err
	}
	if len(vCols) != 1 {
		return nil, nil, models.NewContractError("%s has %d value columns, want 1", vixFile, len(vCols))
	}

	vixAt := make(map[time.Time]float64, len(vDates))
	for i, d := range vDates {
		vixAt[d] = vRows[i][0]
	}
	type rec struct {
		d   time.Time
		row []float64
	}
	var recs []rec
	for i, d := range pDates {
		if _, ok := vixAt[d]; ok {
			recs = append(recs, rec{d, pRows[i]})
		}
	}
	sort.SliceStable(recs, func(a, b int) bool { return recs[a].d.Before(recs[b].d) })

	prices := &models.Panel{Assets: assets}
	vix := &models.Series{}
	for _, r := range recs {
		prices.Dates = append(prices.Dates, r.d)
		prices.Values = append(prices.Values, r.row)
		vix.Dates = append(vix.Dates, r.d)
		vix.Values = append(vix.Values, vixAt[r.d])
	}
	s.l.Debug("csv cache loaded",
		applogger.String("dir", s.dir),
		applogger.Int("dates", prices.Rows()),
		applogger.Int("assets", prices.Cols()),
	)
	return prices, vix, nil
}

// Save writes both tables, replacing any previous snapshot.
func (s *CSVStore) Save(ctx context.Context, prices *models.Panel, vix *models.Series) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	err := writeFile(filepath.Join(s.dir, pricesFile), func(w *csv.Writer) error {
		if err := w.Write(append([]string{"date"}, prices.Assets...)); err != nil {
			return err
		}
		rec := make([]string, prices.Cols()+1)
		for i, d := range prices.Dates {
			rec[0] = util.FormatDate(d)
			for j, v := range prices.Values[i] {
				rec[j+1] = formatFloat(v)
			}
			if err := w.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(s.dir, vixFile), func(w *csv.Writer) error {
		if err := w.Write([]string{"date", s.vixColumn}); err != nil {
			return err
		}
		for i, d := range vix.Dates {
			if err := w.Write([]string{util.FormatDate(d), formatFloat(vix.Values[i])}); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteCurve exports date,equity,net_return.
func (s *CSVStore) WriteCurve(ctx context.Context, path string, days []models.DailyResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create curve dir: %w", err)
		}
	}
	return writeFile(path, func(w *csv.Writer) error {
		if err := w.Write([]string{"date", "equity", "net_return"}); err != nil {
			return err
		}
		for _, d := range days {
			if err := w.Write([]string{util.FormatDate(d.Date), formatFloat(d.Equity), formatFloat(d.Net)}); err != nil {
				return err
			}
		}
		return nil
	})
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// writeFile writes through a temp file so readers never see a partial table.
func writeFile(path string, fill func(*csv.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := fill(w); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}

func readTable(path string) ([]time.Time, []string, [][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, nil, fmt.Errorf("%s: %w", path, drepo.ErrNotFound)
		}
		return nil, nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, nil, fmt.Errorf("%s is empty: %w", path, drepo.ErrNotFound)
		}
		return nil, nil, nil, fmt.Errorf("read %s header: %w", path, err)
	}
	if len(header) < 2 {
		return nil, nil, nil, models.NewContractError("%s header has no value columns", path)
	}
	cols := append([]string(nil), header[1:]...)

	var dates []time.Time
	var rows [][]float64
	seen := make(map[time.Time]struct{})
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, nil, fmt.Errorf("read %s: %w", path, err)
		}
		d, err := time.Parse(util.DateLayout, rec[0])
		if err != nil {
			return nil, nil, nil, models.NewContractError("%s line %d: bad date %q", path, line, rec[0])
		}
		if _, dup := seen[d]; dup {
			return nil, nil, nil, models.NewContractError("%s line %d: duplicate date %s", path, line, rec[0])
		}
		seen[d] = struct{}{}
		row := make([]float64, len(cols))
		for j, cell := range rec[1:] {
			if cell == "" {
				row[j] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, nil, nil, models.NewContractError("%s line %d: bad value %q", path, line, cell)
			}
			row[j] = v
		}
		dates = append(dates, d)
		rows = append(rows, row)
	}
	return dates, cols, rows, nil
}
