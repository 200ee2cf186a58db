package models

import (
	"math"
)

// ValidateInputs checks the feed contract for a price panel and its
// volatility index.
func ValidateInputs(prices *Panel, vix *Series) error {
	if prices == nil || vix == nil {
		return NewContractError("prices and volatility index are required")
	}
	if prices.Rows() == 0 || prices.Cols() == 0 {
		return NewContractError("price panel is empty (%d dates, %d assets)", prices.Rows(), prices.Cols())
	}
	if len(prices.Values) != prices.Rows() {
		return NewContractError("price panel has %d rows for %d dates", len(prices.Values), prices.Rows())
	}
	if vix.Len() != prices.Rows() || len(vix.Dates) != vix.Len() {
		return NewContractError("volatility index has %d observations, prices have %d dates", vix.Len(), prices.Rows())
	}

	seen := make(map[string]struct{}, prices.Cols())
	for _, a := range prices.Assets {
		if a == "" {
			return NewContractError("empty asset name")
		}
		if _, dup := seen[a]; dup {
			return NewContractError("duplicate asset %q", a)
		}
		seen[a] = struct{}{}
	}

	for i, d := range prices.Dates {
		if i > 0 && !d.After(prices.Dates[i-1]) {
			return NewContractError("dates not strictly increasing at %s", d.Format("2006-01-02"))
		}
		if !d.Equal(vix.Dates[i]) {
			return NewContractError("volatility index date %s does not match price date %s",
				vix.Dates[i].Format("2006-01-02"), d.Format("2006-01-02"))
		}
		row := prices.Values[i]
		if len(row) != prices.Cols() {
			return NewContractError("row %d has %d values for %d assets", i, len(row), prices.Cols())
		}
		for j, v := range row {
			if math.IsNaN(v) {
				continue
			}
			if v <= 0 || math.IsInf(v, 0) {
				return NewContractError("price %s on %s is %v", prices.Assets[j], d.Format("2006-01-02"), v)
			}
		}
		if v := vix.Values[i]; !math.IsNaN(v) && (v < 0 || math.IsInf(v, 0)) {
			return NewContractError("volatility index on %s is %v", d.Format("2006-01-02"), v)
		}
	}
	return nil
}
