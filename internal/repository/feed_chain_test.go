package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeFlow/internal/domain/models"
	drepo "RegimeFlow/internal/domain/repository"
	"RegimeFlow/pkg/cache"
)

type stubLoader struct {
	name  string
	err   error
	calls int
}

func (s *stubLoader) Name() string { return s.name }

func (s *stubLoader) Load(context.Context) (*models.Panel, *models.Series, error) {
	s.calls++
	if s.err != nil {
		return nil, nil, s.err
	}
	p, v := samplePanel()
	return p, v, nil
}

type brokenTier struct{ saves int }

func (b *brokenTier) Name() string { return "broken" }

func (b *brokenTier) Load(context.Context) (*models.Panel, *models.Series, error) {
	return nil, nil, errors.New("disk on fire")
}

func (b *brokenTier) Save(context.Context, *models.Panel, *models.Series) error {
	b.saves++
	return errors.New("read-only")
}

func memoryTier() *SnapshotPanelStore {
	return NewSnapshotPanelStore(cache.NewMemoryCache(), "memory", []string{"SPY", "TLT"}, day(0), day(2), time.Hour)
}

func TestFeedChainFallsBackAndWritesBack(t *testing.T) {
	ctx := context.Background()
	tier := memoryTier()
	broken := &brokenTier{}
	down := &stubLoader{name: "download", err: errors.New("timeout")}
	synth := &stubLoader{name: "synthetic"}

	chain := NewFeedChain([]drepo.PanelStore{broken, tier}, []drepo.Loader{down, synth}, false, 0)
	prices, _, err := chain.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "synthetic", chain.LastSource())
	assert.Equal(t, 3, prices.Rows())
	assert.Equal(t, 1, down.calls)
	assert.Equal(t, 1, broken.saves)

	// second load is served by the cache the first one filled
	_, _, err = chain.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "memory", chain.LastSource())
	assert.Equal(t, 1, synth.calls)
}

func TestFeedChainForceRefreshSkipsCache(t *testing.T) {
	ctx := context.Background()
	tier := memoryTier()
	p, v := samplePanel()
	require.NoError(t, tier.Save(ctx, p, v))

	synth := &stubLoader{name: "synthetic"}
	chain := NewFeedChain([]drepo.PanelStore{tier}, []drepo.Loader{synth}, true, 0)
	_, _, err := chain.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "synthetic", chain.LastSource())
	assert.Equal(t, 1, synth.calls)
}

func TestFeedChainJoinsLoaderErrors(t *testing.T) {
	errA, errB := errors.New("a down"), errors.New("b down")
	chain := NewFeedChain(nil, []drepo.Loader{
		&stubLoader{name: "a", err: errA},
		&stubLoader{name: "b", err: errB},
	}, false, time.Millisecond)

	_, _, err := chain.Load(context.Background())
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.ErrorContains(t, err, "load prices")
}

func TestFeedChainPauseHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := &stubLoader{name: "a", err: errors.New("down")}
	second := &stubLoader{name: "b"}
	chain := NewFeedChain(nil, []drepo.Loader{first, second}, false, time.Hour)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, _, err := chain.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, second.calls)
}

func TestFeedChainRejectsInvalidPanels(t *testing.T) {
	bad := &badLoader{}
	chain := NewFeedChain(nil, []drepo.Loader{bad}, false, 0)
	_, _, err := chain.Load(context.Background())
	assert.ErrorIs(t, err, models.ErrDataContract)
}

type badLoader struct{}

func (badLoader) Name() string { return "bad" }

func (badLoader) Load(context.Context) (*models.Panel, *models.Series, error) {
	p, v := samplePanel()
	p.Values[0][0] = -1
	return p, v, nil
}
