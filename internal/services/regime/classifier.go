package regime

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// Classifier is a binary probabilistic classifier.
type Classifier interface {
	Fit(X [][]float64, y []float64) error
	PredictProba(x []float64) (float64, error)
}

// ClassifierFactory builds a fresh, unfitted classifier. One instance is
// used per walk-forward date.
type ClassifierFactory func() Classifier

var errNotFitted = errors.New("classifier is not fitted")

// LogisticRegression is an L2-regularised logistic model with an
// unpenalised intercept, fitted with L-BFGS. C is the inverse
// regularisation strength.
type LogisticRegression struct {
	C       float64
	MaxIter int

	coef      []float64
	intercept float64
}

// NewLogisticFactory returns a factory of logistic models.
func NewLogisticFactory(c float64, maxIter int) ClassifierFactory {
	return func() Classifier {
		return &LogisticRegression{C: c, MaxIter: maxIter}
	}
}

func (m *LogisticRegression) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("fit: %d samples, %d labels", len(X), len(y))
	}
	d := len(X[0])
	sign := make([]float64, len(y))
	for i, v := range y {
		sign[i] = 2*v - 1
	}

	// theta = [w_0 .. w_{d-1}, b]
	fn := func(theta []float64) float64 {
		w, b := theta[:d], theta[d]
		loss := 0.5 * floats.Dot(w, w)
		for i, row := range X {
			loss += m.C * softplus(-sign[i]*(floats.Dot(w, row)+b))
		}
		return loss
	}
	grad := func(g, theta []float64) {
		w, b := theta[:d], theta[d]
		copy(g[:d], w)
		g[d] = 0
		for i, row := range X {
			z := floats.Dot(w, row) + b
			coeff := -m.C * sign[i] * sigmoid(-sign[i]*z)
			floats.AddScaled(g[:d], coeff, row)
			g[d] += coeff
		}
	}

	settings := &optimize.Settings{
		MajorIterations:   m.MaxIter,
		GradientThreshold: 1e-4,
	}
	res, err := optimize.Minimize(optimize.Problem{Func: fn, Grad: grad}, make([]float64, d+1), settings, &optimize.LBFGS{})
	if res == nil {
		return fmt.Errorf("fit: %w", err)
	}
	if !floats.HasNaN(res.X) && !hasInf(res.X) {
		m.coef = append([]float64(nil), res.X[:d]...)
		m.intercept = res.X[d]
		return nil
	}
	if err == nil {
		err = errors.New("non-finite coefficients")
	}
	return fmt.Errorf("fit: %w", err)
}

func (m *LogisticRegression) PredictProba(x []float64) (float64, error) {
	if m.coef == nil {
		return math.NaN(), errNotFitted
	}
	return sigmoid(floats.Dot(m.coef, x) + m.intercept), nil
}

// Coefficients returns a copy of the fitted weights and intercept.
func (m *LogisticRegression) Coefficients() ([]float64, float64) {
	return append([]float64(nil), m.coef...), m.intercept
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// softplus computes log(1 + e^u) without overflow.
func softplus(u float64) float64 {
	if u > 0 {
		return u + math.Log1p(math.Exp(-u))
	}
	return math.Log1p(math.Exp(u))
}

func hasInf(xs []float64) bool {
	for _, v := range xs {
		if math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

// scaler standardises columns with the population moments of the rows it
// was fitted on. Zero-variance columns keep unit scale.
type scaler struct {
	mean  []float64
	scale []float64
}

func fitScaler(X [][]float64) *scaler {
	d := len(X[0])
	s := &scaler{mean: make([]float64, d), scale: make([]float64, d)}
	col := make([]float64, len(X))
	n := float64(len(X))
	for j := 0; j < d; j++ {
		for i, row := range X {
			col[i] = row[j]
		}
		mean, variance := stat.MeanVariance(col, nil)
		popStd := 0.0
		if len(X) > 1 {
			popStd = math.Sqrt(variance * (n - 1) / n)
		}
		s.mean[j] = mean
		s.scale[j] = 1
		if popStd > 0 && !math.IsNaN(popStd) {
			s.scale[j] = popStd
		}
	}
	return s
}

func (s *scaler) transform(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.mean[j]) / s.scale[j]
	}
	return out
}

func (s *scaler) transformAll(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = s.transform(row)
	}
	return out
}
