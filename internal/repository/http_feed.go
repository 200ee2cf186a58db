package repository

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"RegimeFlow/internal/domain/models"
	"RegimeFlow/internal/service/ratelimit"
	xhttp "RegimeFlow/pkg/http"
	applogger "RegimeFlow/pkg/logger"
	"RegimeFlow/pkg/util"
)

// HTTPFeedConfig describes where daily CSVs are downloaded from. URLTemplate
// may reference {ticker}, {start} and {end}.
type HTTPFeedConfig struct {
	URLTemplate       string
	Tickers           []string
	VIXTicker         string
	Start, End        time.Time
	Retries           int
	Backoff           time.Duration
	RequestsPerSecond float64
}

// HTTPFeed downloads one CSV per ticker with a Date column and a close column
// ("Adj Close" preferred over "Close").
type HTTPFeed struct {
	cfg    HTTPFeedConfig
	client *xhttp.Client
	lim    *ratelimit.Limiter
	l      *applogger.Logger
}

func NewHTTPFeed(cfg HTTPFeedConfig, client *xhttp.Client, lim *ratelimit.Limiter) *HTTPFeed {
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if lim == nil {
		lim = ratelimit.New()
	}
	return &HTTPFeed{cfg: cfg, client: client, lim: lim, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (f *HTTPFeed) SetLogger(l *applogger.Logger) {
	if l != nil {
		f.l = l
	}
}

func (f *HTTPFeed) Name() string { return "download" }

func (f *HTTPFeed) Load(ctx context.Context) (*models.Panel, *models.Series, error) {
	data := make(map[string]closes, len(f.cfg.Tickers)+1)
	for _, t := range append(append([]string(nil), f.cfg.Tickers...), f.cfg.VIXTicker) {
		c, err := f.fetch(ctx, t)
		if err != nil {
			return nil, nil, err
		}
		data[t] = c
	}
	return assemble(f.cfg.Tickers, f.cfg.VIXTicker, data)
}

func (f *HTTPFeed) url(ticker string) string {
	end := f.cfg.End
	if end.IsZero() {
		end = util.TruncateDay(time.Now())
	}
	r := strings.NewReplacer(
		"{ticker}", url.QueryEscape(ticker),
		"{start}", util.FormatDate(f.cfg.Start),
		"{end}", util.FormatDate(end),
	)
	return r.Replace(f.cfg.URLTemplate)
}

// fetch downloads one ticker, retrying with exponential backoff.
func (f *HTTPFeed) fetch(ctx context.Context, ticker string) (closes, error) {
	u := f.url(ticker)
	host := u
	if p, err := url.Parse(u); err == nil {
		host = p.Host
	}

	var lastErr error
	delay := f.cfg.Backoff
	for attempt := 1; attempt <= f.cfg.Retries; attempt++ {
		if err := f.lim.Wait(ctx, host, 1, f.cfg.RequestsPerSecond); err != nil {
			return nil, err
		}
		body, err := f.client.Fetch(ctx, &xhttp.RequestOptions{URL: u, Headers: map[string]string{"Accept": "text/csv"}})
		if err == nil {
			c, perr := parseCloses(body, f.cfg.Start, f.cfg.End)
			if perr == nil {
				f.l.Debug("ticker downloaded", applogger.String("ticker", ticker), applogger.Int("rows", len(c)))
				return c, nil
			}
			err = perr
		}
		lastErr = err
		f.l.Warn("ticker download failed",
			applogger.String("ticker", ticker),
			applogger.Int("attempt", attempt),
			applogger.Error(err),
		)
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 && se.Code != 429 {
			break
		}
		if attempt < f.cfg.Retries && delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
			delay *= 2
		}
	}
	return nil, fmt.Errorf("download %s: %w", ticker, lastErr)
}

func parseCloses(body []byte, start, end time.Time) (closes, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	dateCol, closeCol, adjCol := -1, -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date":
			dateCol = i
		case "close":
			closeCol = i
		case "adj close":
			adjCol = i
		}
	}
	if adjCol >= 0 {
		closeCol = adjCol
	}
	if dateCol < 0 || closeCol < 0 {
		return nil, models.NewContractError("csv has no date/close columns: %v", header)
	}

	out := make(closes)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(rec) <= dateCol || len(rec) <= closeCol {
			continue
		}
		d, ok := util.ParseDate(strings.TrimSpace(rec[dateCol]))
		if !ok {
			continue
		}
		if (!start.IsZero() && d.Before(start)) || (!end.IsZero() && d.After(end)) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[closeCol]), 64)
		if err != nil || math.IsNaN(v) || v <= 0 {
			continue
		}
		out[d] = v
	}
	if len(out) == 0 {
		return nil, models.NewContractError("csv has no usable rows")
	}
	return out, nil
}
