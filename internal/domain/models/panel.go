package models

import (
	"math"
	"time"
)

// Panel is a date × asset matrix. Rows follow Dates, columns follow Assets.
// NaN marks an explicitly missing observation.
type Panel struct {
	Dates  []time.Time
	Assets []string
	Values [][]float64
}

// Series is a single date-indexed column (volatility index, probabilities,
// returns).
type Series struct {
	Dates  []time.Time
	Values []float64
}

// NewPanel allocates a panel filled with fill.
func NewPanel(dates []time.Time, assets []string, fill float64) *Panel {
	values := make([][]float64, len(dates))
	for i := range values {
		row := make([]float64, len(assets))
		if fill != 0 {
			for j := range row {
				row[j] = fill
			}
		}
		values[i] = row
	}
	return &Panel{Dates: dates, Assets: assets, Values: values}
}

// ZerosLike returns a zero panel on the same axes.
func ZerosLike(p *Panel) *Panel {
	return NewPanel(p.Dates, p.Assets, 0)
}

func (p *Panel) Rows() int { return len(p.Dates) }

func (p *Panel) Cols() int { return len(p.Assets) }

// Index returns the column of asset.
func (p *Panel) Index(asset string) (int, bool) {
	for j, a := range p.Assets {
		if a == asset {
			return j, true
		}
	}
	return -1, false
}

// Col copies column j.
func (p *Panel) Col(j int) []float64 {
	out := make([]float64, len(p.Values))
	for i, row := range p.Values {
		out[i] = row[j]
	}
	return out
}

// SetCol overwrites column j.
func (p *Panel) SetCol(j int, col []float64) {
	for i := range p.Values {
		p.Values[i][j] = col[i]
	}
}

// Clone deep-copies the panel. Axes are copied as well so callers can slice
// independently.
func (p *Panel) Clone() *Panel {
	out := &Panel{
		Dates:  append([]time.Time(nil), p.Dates...),
		Assets: append([]string(nil), p.Assets...),
		Values: make([][]float64, len(p.Values)),
	}
	for i, row := range p.Values {
		out.Values[i] = append([]float64(nil), row...)
	}
	return out
}

// Head keeps the first n rows.
func (p *Panel) Head(n int) *Panel {
	if n <= 0 || n >= p.Rows() {
		return p.Clone()
	}
	out := p.Clone()
	out.Dates = out.Dates[:n]
	out.Values = out.Values[:n]
	return out
}

// Slice keeps rows with from <= date <= to. Zero bounds are open.
func (p *Panel) Slice(from, to time.Time) *Panel {
	out := &Panel{Assets: append([]string(nil), p.Assets...)}
	for i, d := range p.Dates {
		if !from.IsZero() && d.Before(from) {
			continue
		}
		if !to.IsZero() && d.After(to) {
			continue
		}
		out.Dates = append(out.Dates, d)
		out.Values = append(out.Values, append([]float64(nil), p.Values[i]...))
	}
	return out
}

// HasNaN reports whether any cell is NaN or infinite.
func (p *Panel) HasNaN() bool {
	for _, row := range p.Values {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return true
			}
		}
	}
	return false
}

// MaxAbs returns the largest absolute cell value, ignoring NaN.
func (p *Panel) MaxAbs() float64 {
	m := 0.0
	for _, row := range p.Values {
		for _, v := range row {
			if a := math.Abs(v); a > m {
				m = a
			}
		}
	}
	return m
}

// RowIndex locates date d.
func (p *Panel) RowIndex(d time.Time) (int, bool) {
	for i, x := range p.Dates {
		if x.Equal(d) {
			return i, true
		}
	}
	return -1, false
}

// Equal compares axes and values bit for bit, treating NaN == NaN.
func (p *Panel) Equal(o *Panel) bool {
	if p.Rows() != o.Rows() || p.Cols() != o.Cols() {
		return false
	}
	for j := range p.Assets {
		if p.Assets[j] != o.Assets[j] {
			return false
		}
	}
	for i := range p.Dates {
		if !p.Dates[i].Equal(o.Dates[i]) {
			return false
		}
		for j := range p.Assets {
			a, b := p.Values[i][j], o.Values[i][j]
			if math.IsNaN(a) && math.IsNaN(b) {
				continue
			}
			if math.Float64bits(a) != math.Float64bits(b) {
				return false
			}
		}
	}
	return true
}

func (s *Series) Len() int { return len(s.Values) }

// Clone deep-copies the series.
func (s *Series) Clone() *Series {
	return &Series{
		Dates:  append([]time.Time(nil), s.Dates...),
		Values: append([]float64(nil), s.Values...),
	}
}

// Head keeps the first n observations.
func (s *Series) Head(n int) *Series {
	out := s.Clone()
	if n > 0 && n < s.Len() {
		out.Dates = out.Dates[:n]
		out.Values = out.Values[:n]
	}
	return out
}

// Slice keeps observations with from <= date <= to. Zero bounds are open.
func (s *Series) Slice(from, to time.Time) *Series {
	out := &Series{}
	for i, d := range s.Dates {
		if !from.IsZero() && d.Before(from) {
			continue
		}
		if !to.IsZero() && d.After(to) {
			continue
		}
		out.Dates = append(out.Dates, d)
		out.Values = append(out.Values, s.Values[i])
	}
	return out
}
