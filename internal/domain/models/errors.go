package models

import (
	"errors"
	"fmt"
)

var (
	// ErrDataContract marks input that violates the price/volatility feed
	// contract. Fatal for the run.
	ErrDataContract = errors.New("data contract violation")
	// ErrConfiguration marks invalid strategy parameters.
	ErrConfiguration = errors.New("configuration error")
)

// ContractError describes a data contract violation.
type ContractError struct {
	Reason string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDataContract, e.Reason)
}

func (e *ContractError) Unwrap() error { return ErrDataContract }

// ConfigError names the offending parameter.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

func NewContractError(format string, args ...interface{}) error {
	return &ContractError{Reason: fmt.Sprintf(format, args...)}
}

func NewConfigError(field, format string, args ...interface{}) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Degeneracy counts numeric substitutions applied during a run. None of them
// are errors; they are surfaced in diagnostics and metrics.
type Degeneracy struct {
	HedgeRatioDefaults int `json:"hedge_ratio_defaults"`
	UndefinedZScores   int `json:"undefined_zscores"`
	VolScaleFallbacks  int `json:"vol_scale_fallbacks"`
	VolScaleDefaults   int `json:"vol_scale_defaults"`
	SingleClassWindows int `json:"single_class_windows"`
	ClassifierFailures int `json:"classifier_failures"`
	IntensityDefaults  int `json:"intensity_defaults"`
	DefensiveFallbacks int `json:"defensive_fallbacks"`
}

// Add accumulates o into d.
func (d *Degeneracy) Add(o Degeneracy) {
	d.HedgeRatioDefaults += o.HedgeRatioDefaults
	d.UndefinedZScores += o.UndefinedZScores
	d.VolScaleFallbacks += o.VolScaleFallbacks
	d.VolScaleDefaults += o.VolScaleDefaults
	d.SingleClassWindows += o.SingleClassWindows
	d.ClassifierFailures += o.ClassifierFailures
	d.IntensityDefaults += o.IntensityDefaults
	d.DefensiveFallbacks += o.DefensiveFallbacks
}

// Counts flattens the counters for metric export.
func (d Degeneracy) Counts() map[string]int {
	return map[string]int{
		"hedge_ratio_default": d.HedgeRatioDefaults,
		"undefined_zscore":    d.UndefinedZScores,
		"vol_scale_fallback":  d.VolScaleFallbacks,
		"vol_scale_default":   d.VolScaleDefaults,
		"single_class_window": d.SingleClassWindows,
		"classifier_failure":  d.ClassifierFailures,
		"intensity_default":   d.IntensityDefaults,
		"defensive_fallback":  d.DefensiveFallbacks,
	}
}
