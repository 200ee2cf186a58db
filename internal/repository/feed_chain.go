package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"RegimeFlow/internal/domain/models"
	drepo "RegimeFlow/internal/domain/repository"
	applogger "RegimeFlow/pkg/logger"
)

// FeedChain reads through cache tiers, falls back to loaders in order and
// writes whatever it loaded back to every tier.
type FeedChain struct {
	tiers        []drepo.PanelStore
	loaders      []drepo.Loader
	forceRefresh bool
	pause        time.Duration
	l            *applogger.Logger

	mu     sync.Mutex
	source string
}

func NewFeedChain(tiers []drepo.PanelStore, loaders []drepo.Loader, forceRefresh bool, pause time.Duration) *FeedChain {
	return &FeedChain{
		tiers:        tiers,
		loaders:      loaders,
		forceRefresh: forceRefresh,
		pause:        pause,
		l:            applogger.Nop(),
	}
}

// SetLogger injects a structured logger.
func (c *FeedChain) SetLogger(l *applogger.Logger) {
	if l != nil {
		c.l = l
	}
}

// LastSource names the tier or loader that served the last Load.
func (c *FeedChain) LastSource() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

func (c *FeedChain) setSource(s string) {
	c.mu.Lock()
	c.source = s
	c.mu.Unlock()
}

func (c *FeedChain) Load(ctx context.Context) (*models.Panel, *models.Series, error) {
	if !c.forceRefresh {
		for _, t := range c.tiers {
			prices, vix, err := t.Load(ctx)
			if err == nil {
				if verr := models.ValidateInputs(prices, vix); verr != nil {
					c.l.Warn("cached panel rejected", applogger.String("tier", t.Name()), applogger.Error(verr))
					continue
				}
				c.l.Info("panel served from cache",
					applogger.String("tier", t.Name()),
					applogger.Int("dates", prices.Rows()),
					applogger.Int("assets", prices.Cols()),
				)
				c.setSource(t.Name())
				return prices, vix, nil
			}
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			if !errors.Is(err, drepo.ErrNotFound) {
				c.l.Warn("cache tier failed", applogger.String("tier", t.Name()), applogger.Error(err))
			}
		}
	}

	var errs []error
	for i, ld := range c.loaders {
		if i > 0 && c.pause > 0 {
			t := time.NewTimer(c.pause)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, nil, ctx.Err()
			case <-t.C:
			}
		}
		prices, vix, err := ld.Load(ctx)
		if err == nil {
			err = models.ValidateInputs(prices, vix)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			c.l.Warn("loader failed", applogger.String("loader", ld.Name()), applogger.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", ld.Name(), err))
			continue
		}
		c.l.Info("panel loaded",
			applogger.String("loader", ld.Name()),
			applogger.Int("dates", prices.Rows()),
			applogger.Int("assets", prices.Cols()),
		)
		c.setSource(ld.Name())
		c.writeBack(ctx, prices, vix)
		return prices, vix, nil
	}
	if len(errs) == 0 {
		return nil, nil, errors.New("load prices: no loaders configured")
	}
	return nil, nil, fmt.Errorf("load prices: %w", errors.Join(errs...))
}

func (c *FeedChain) writeBack(ctx context.Context, prices *models.Panel, vix *models.Series) {
	for _, t := range c.tiers {
		if err := t.Save(ctx, prices, vix); err != nil {
			c.l.Warn("cache write failed", applogger.String("tier", t.Name()), applogger.Error(err))
		}
	}
}
