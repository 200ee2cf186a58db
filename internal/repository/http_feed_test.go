package repository

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeFlow/internal/domain/models"
	xhttp "RegimeFlow/pkg/http"
)

type csvServer struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]int // ticker -> leading 500s
	body  map[string]string
}

func (s *csvServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ticker := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), ".csv")
	s.mu.Lock()
	s.calls[ticker]++
	n := s.calls[ticker]
	s.mu.Unlock()

	if n <= s.fail[ticker] {
		http.Error(w, "busy", http.StatusInternalServerError)
		return
	}
	body, ok := s.body[ticker]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	fmt.Fprint(w, body)
}

func newFeed(t *testing.T, srv *csvServer, tickers ...string) *HTTPFeed {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return NewHTTPFeed(HTTPFeedConfig{
		URLTemplate:       ts.URL + "/{ticker}.csv?period1={start}&period2={end}",
		Tickers:           tickers,
		VIXTicker:         "^VIX",
		Start:             day(0),
		End:               day(10),
		Retries:           3,
		Backoff:           time.Millisecond,
		RequestsPerSecond: 1000,
	}, xhttp.NewClient(xhttp.WithTimeout(5*time.Second)), nil)
}

func TestHTTPFeedPrefersAdjustedCloseAndFills(t *testing.T) {
	srv := &csvServer{
		calls: map[string]int{},
		fail:  map[string]int{"TLT": 2},
		body: map[string]string{
			"SPY":  "Date,Open,Close,Adj Close\n2021-03-01,1,100,99\n2021-03-02,1,101,100\n2021-03-03,1,102,101\n",
			"TLT":  "Date,Close\n2021-03-01,90\n2021-03-03,92\n",
			"^VIX": "Date,Close\n2021-03-02,19\n2021-03-03,20\n2021-02-01,5\n",
		},
	}
	feed := newFeed(t, srv, "SPY", "TLT")
	assert.Equal(t, "download", feed.Name())

	prices, vix, err := feed.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 101}, prices.Col(0))
	assert.Equal(t, []float64{90, 92}, prices.Col(1))
	assert.Equal(t, []float64{19, 20}, vix.Values)
	assert.Equal(t, day(1), prices.Dates[0])
	assert.Equal(t, 3, srv.calls["TLT"])
}

func TestHTTPFeedDoesNotRetryNotFound(t *testing.T) {
	srv := &csvServer{calls: map[string]int{}, body: map[string]string{}}
	_, _, err := newFeed(t, srv, "NOPE").Load(context.Background())

	var se *xhttp.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, 1, srv.calls["NOPE"])
}

func TestHTTPFeedGivesUpAfterRetries(t *testing.T) {
	srv := &csvServer{
		calls: map[string]int{},
		fail:  map[string]int{"SPY": 10},
		body:  map[string]string{"SPY": "Date,Close\n2021-03-01,1\n"},
	}
	_, _, err := newFeed(t, srv, "SPY").Load(context.Background())
	assert.ErrorContains(t, err, "download SPY")
	assert.Equal(t, 3, srv.calls["SPY"])
}

func TestParseClosesRejectsMissingColumns(t *testing.T) {
	_, err := parseCloses([]byte("when,price\n2021-03-01,1\n"), day(0), day(5))
	assert.ErrorIs(t, err, models.ErrDataContract)

	_, err = parseCloses([]byte("Date,Close\n2021-03-01,null\nbad,3\n"), day(0), day(5))
	assert.ErrorIs(t, err, models.ErrDataContract)
}
