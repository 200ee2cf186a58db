package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"RegimeFlow/internal/domain/models"
	drepo "RegimeFlow/internal/domain/repository"
	"RegimeFlow/pkg/cache"
	applogger "RegimeFlow/pkg/logger"
	"RegimeFlow/pkg/util"
)

// snapshot is the cached form of a panel. Stat cells carry NaN as null.
type snapshot struct {
	Dates  []time.Time     `json:"dates"`
	Assets []string        `json:"assets"`
	Prices [][]models.Stat `json:"prices"`
	VIX    []models.Stat   `json:"vix"`
}

// SnapshotPanelStore caches the whole panel as one JSON value in a
// cache.Service (Redis in production, in-memory in tests and offline runs).
type SnapshotPanelStore struct {
	c    cache.Service
	key  string
	ttl  time.Duration
	name string
	l    *applogger.Logger
}

// NewSnapshotPanelStore keys the snapshot by universe and date range so a
// changed configuration never reads a stale panel.
func NewSnapshotPanelStore(c cache.Service, name string, tickers []string, start, end time.Time, ttl time.Duration) *SnapshotPanelStore {
	key := cache.GenerateKeyWithParams("panel",
		cache.HashKey(strings.Join(tickers, ",")),
		util.FormatDate(start),
		util.FormatDate(end),
	)
	if name == "" {
		name = "snapshot"
	}
	return &SnapshotPanelStore{c: c, key: key, ttl: ttl, name: name, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *SnapshotPanelStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *SnapshotPanelStore) Name() string { return s.name }

// Key is the cache key of the snapshot.
func (s *SnapshotPanelStore) Key() string { return s.key }

func (s *SnapshotPanelStore) Load(ctx context.Context) (*models.Panel, *models.Series, error) {
	var snap snapshot
	if err := s.c.Get(ctx, s.key, &snap); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil, fmt.Errorf("%s %s: %w", s.name, s.key, drepo.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("%s get: %w", s.name, err)
	}
	if len(snap.Prices) != len(snap.Dates) || len(snap.VIX) != len(snap.Dates) {
		return nil, nil, models.NewContractError("%s snapshot %s is inconsistent", s.name, s.key)
	}
	prices := &models.Panel{Dates: snap.Dates, Assets: snap.Assets, Values: make([][]float64, len(snap.Dates))}
	vix := &models.Series{Dates: snap.Dates, Values: make([]float64, len(snap.Dates))}
	for i, row := range snap.Prices {
		vals := make([]float64, len(row))
		for j, v := range row {
			vals[j] = float64(v)
		}
		prices.Values[i] = vals
		vix.Values[i] = float64(snap.VIX[i])
	}
	s.l.Debug("panel snapshot hit", applogger.String("tier", s.name), applogger.String("key", s.key))
	return prices, vix, nil
}

func (s *SnapshotPanelStore) Save(ctx context.Context, prices *models.Panel, vix *models.Series) error {
	snap := snapshot{
		Dates:  prices.Dates,
		Assets: prices.Assets,
		Prices: make([][]models.Stat, prices.Rows()),
		VIX:    make([]models.Stat, vix.Len()),
	}
	for i, row := range prices.Values {
		cells := make([]models.Stat, len(row))
		for j, v := range row {
			cells[j] = models.Stat(v)
		}
		snap.Prices[i] = cells
	}
	for i, v := range vix.Values {
		snap.VIX[i] = models.Stat(v)
	}
	if err := s.c.Set(ctx, s.key, snap, s.ttl); err != nil {
		return fmt.Errorf("%s set: %w", s.name, err)
	}
	return nil
}
