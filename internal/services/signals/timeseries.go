package signals

import (
	"math"

	"RegimeFlow/internal/domain/models"
	"RegimeFlow/internal/services/features"
)

// TimeSeriesConfig lists the trend lookbacks averaged by the sleeve.
type TimeSeriesConfig struct {
	Lookbacks []int `yaml:"lookbacks" validate:"dive,gte=1"`
}

func DefaultTimeSeriesConfig() TimeSeriesConfig {
	return TimeSeriesConfig{Lookbacks: []int{21, 63, 126}}
}

func (c TimeSeriesConfig) Validate() error {
	for _, l := range c.Lookbacks {
		if l <= 0 {
			return models.NewConfigError("timeseries.lookbacks", "lookback must be positive, got %d", l)
		}
	}
	return nil
}

// TimeSeriesResult holds the averaged overlay and one component per lookback,
// in configured order.
type TimeSeriesResult struct {
	Positions  *models.Panel
	Lookbacks  []int
	Components []*models.Panel
}

// Component returns the panel for lookback l.
func (r *TimeSeriesResult) Component(l int) (*models.Panel, bool) {
	for k, lb := range r.Lookbacks {
		if lb == l {
			return r.Components[k], true
		}
	}
	return nil, false
}

// TimeSeries is a sign-of-trend overlay, demeaned across assets and
// normalised to unit gross.
type TimeSeries struct {
	cfg TimeSeriesConfig
}

func NewTimeSeries(cfg TimeSeriesConfig) (*TimeSeries, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &TimeSeries{cfg: cfg}, nil
}

// Positions averages the per-lookback overlays. No lookbacks yields zeros.
func (s *TimeSeries) Positions(prices *models.Panel) (*TimeSeriesResult, error) {
	res := &TimeSeriesResult{
		Positions: models.ZerosLike(prices),
		Lookbacks: append([]int(nil), s.cfg.Lookbacks...),
	}
	if len(s.cfg.Lookbacks) == 0 {
		return res, nil
	}
	for _, l := range s.cfg.Lookbacks {
		c, err := s.Component(prices, l)
		if err != nil {
			return nil, err
		}
		res.Components = append(res.Components, c)
		for i, row := range c.Values {
			for j, v := range row {
				res.Positions.Values[i][j] += v
			}
		}
	}
	k := float64(len(s.cfg.Lookbacks))
	for _, row := range res.Positions.Values {
		for j := range row {
			row[j] /= k
		}
	}
	return res, nil
}

// Component computes the overlay for a single lookback.
func (s *TimeSeries) Component(prices *models.Panel, lookback int) (*models.Panel, error) {
	if lookback <= 0 {
		return nil, models.NewConfigError("timeseries.lookbacks", "lookback must be positive, got %d", lookback)
	}
	out := models.ZerosLike(prices)
	signs := make([][]float64, prices.Cols())
	for j := range prices.Assets {
		col := prices.Col(j)
		logp := make([]float64, len(col))
		for i, p := range col {
			logp[i] = math.Log(p)
		}
		d := features.Diff(logp, lookback)
		for i, v := range d {
			// a flat move carries no signal
			if v == 0 || math.IsNaN(v) {
				d[i] = math.NaN()
				continue
			}
			d[i] = math.Copysign(1, v)
		}
		signs[j] = d
	}

	row := make([]float64, prices.Cols())
	for i := range prices.Dates {
		for j := range signs {
			row[j] = signs[j][i]
		}
		mean, _, n := features.RowMeanStd(row)
		if n == 0 {
			continue
		}
		gross := 0.0
		for _, v := range row {
			if !math.IsNaN(v) {
				gross += math.Abs(v - mean)
			}
		}
		if gross == 0 {
			continue
		}
		for j, v := range row {
			if !math.IsNaN(v) {
				out.Values[i][j] = (v - mean) / gross
			}
		}
	}
	return out, nil
}
