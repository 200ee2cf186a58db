package api

import (
	"math"
	"time"

	"github.com/labstack/echo/v4"

	"RegimeFlow/internal/domain/models"
	"RegimeFlow/internal/service/metrics"
	"RegimeFlow/internal/usecase"
	xhttp "RegimeFlow/pkg/http"
	xlogger "RegimeFlow/pkg/logger"
	"RegimeFlow/pkg/util"
)

// RunSource exposes the most recent backtest.
type RunSource interface {
	Latest() *usecase.RunResult
}

type RegimeRequest struct {
	From  string `query:"from" validate:"omitempty,datetime=2006-01-02"`
	To    string `query:"to" validate:"omitempty,datetime=2006-01-02"`
	Limit int    `query:"limit" default:"500" validate:"gte=1,lte=5000"`
}

type WeightsRequest struct {
	Date string `query:"date" validate:"omitempty,datetime=2006-01-02"`
}

// RegimePoint is one date of the regime diagnostics.
type RegimePoint struct {
	Date        string        `json:"date"`
	VIX         models.Stat   `json:"vix"`
	Label       models.Regime `json:"label"`
	Probability models.Stat   `json:"probability"`
	Regime      models.Regime `json:"regime"`
	Confidence  models.Stat   `json:"confidence"`
	Transition  models.Stat   `json:"transition"`
	Source      string        `json:"source"`
}

type WeightsResponse struct {
	Date        string             `json:"date"`
	Regime      models.Regime      `json:"regime"`
	Probability models.Stat        `json:"probability"`
	Multiplier  models.Stat        `json:"risk_multiplier"`
	VolScale    models.Stat        `json:"vol_scale"`
	Weights     map[string]float64 `json:"weights"`
	Raw         map[string]float64 `json:"raw_weights"`
	Sleeves     map[string]float64 `json:"sleeve_mix"`
}

// BacktestEchoHandler serves the last backtest run over Echo.
type BacktestEchoHandler struct {
	logger  *xlogger.Logger
	runs    RunSource
	metrics *metrics.ReportMetrics
}

func NewBacktestEchoHandler(logger *xlogger.Logger, runs RunSource, m *metrics.ReportMetrics) *BacktestEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &BacktestEchoHandler{logger: logger, runs: runs, metrics: m}
}

func (h *BacktestEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/backtest")
	g.GET("/summary", h.instrument("summary", h.Summary))
	g.GET("/regime", h.instrument("regime", h.Regime))
	g.GET("/weights", h.instrument("weights", h.Weights))
}

func (h *BacktestEchoHandler) instrument(endpoint string, next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if h.metrics != nil {
			h.metrics.Latency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
			if err != nil || c.Response().Status >= 400 {
				h.metrics.Errors.WithLabelValues(endpoint).Inc()
			}
		}
		return err
	}
}

func (h *BacktestEchoHandler) latest(c echo.Context) (*usecase.RunResult, error) {
	run := h.runs.Latest()
	if run == nil {
		return nil, xhttp.AppErrorResponse(c, xhttp.ErrUnavailable("no backtest has completed yet"))
	}
	return run, nil
}

func (h *BacktestEchoHandler) Summary(c echo.Context) error {
	run, err := h.latest(c)
	if run == nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, run.Report)
}

func (h *BacktestEchoHandler) Regime(c echo.Context) error {
	req := &RegimeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	run, err := h.latest(c)
	if run == nil {
		return err
	}
	from := util.ParseDateDefault(req.From, time.Time{})
	to := util.ParseDateDefault(req.To, time.Time{})
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
			Code:    "ERR_RANGE",
			Field:   "to",
			Message: "to must not be before from",
		}})
	}

	reg := run.Strategy.Regime
	bl := run.Strategy.Blend
	points := make([]RegimePoint, 0, min(req.Limit, len(reg.Dates)))
	for i, d := range reg.Dates {
		if (!from.IsZero() && d.Before(from)) || (!to.IsZero() && d.After(to)) {
			continue
		}
		if len(points) == req.Limit {
			break
		}
		points = append(points, RegimePoint{
			Date:        util.FormatDate(d),
			VIX:         models.Stat(run.VIX.Values[i]),
			Label:       reg.Labels[i],
			Probability: models.Stat(reg.Smoothed[i]),
			Regime:      reg.Regimes[i],
			Confidence:  models.Stat(bl.Confidence[i]),
			Transition:  models.Stat(bl.Transition[i]),
			Source:      reg.Sources[i].String(),
		})
	}
	return xhttp.SuccessResponse(c, points)
}

func (h *BacktestEchoHandler) Weights(c echo.Context) error {
	req := &WeightsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	run, err := h.latest(c)
	if run == nil {
		return err
	}
	w := run.Strategy.Weights
	i := w.Rows() - 1
	if req.Date != "" {
		d, _ := util.ParseDate(req.Date)
		var ok bool
		if i, ok = w.RowIndex(d); !ok {
			h.logger.Debug("weights date not in run", xlogger.String("date", req.Date))
			return xhttp.AppErrorResponse(c, xhttp.ErrNotFound("date", "no weights for "+req.Date))
		}
	}

	st := run.Strategy
	mix := st.Blend.Mix[i]
	resp := WeightsResponse{
		Date:        util.FormatDate(w.Dates[i]),
		Regime:      st.Regime.Regimes[i],
		Probability: models.Stat(st.Regime.Smoothed[i]),
		Multiplier:  models.Stat(st.Scale.Multiplier[i]),
		VolScale:    models.Stat(st.Scale.VolScale[i]),
		Weights:     make(map[string]float64, w.Cols()),
		Raw:         make(map[string]float64, w.Cols()),
		Sleeves: map[string]float64{
			"momentum":   mix.Momentum,
			"pairs":      mix.Pairs,
			"timeseries": mix.TimeSeries,
			"defensive":  mix.Defensive,
		},
	}
	for j, a := range w.Assets {
		resp.Weights[a] = clean(w.Values[i][j])
		resp.Raw[a] = clean(st.Raw.Values[i][j])
	}
	return xhttp.SuccessResponse(c, resp)
}

func clean(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
