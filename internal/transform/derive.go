package transform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"fredcli/pkg/contracts/domain"
)

// Round rounds v to places decimals with round-half-to-even on its shortest decimal form
func Round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).RoundBank(places).Float64()
	return f
}

// derive computes the derived column for the retained observations
func derive(obs []domain.Observation, opts Options) ([]float64, float64, error) {
	switch opts.Derive {
	case domain.DeriveNone, "":
		return nil, 0, nil
	case domain.DeriveScale:
		out := make([]float64, len(obs))
		for i, o := range obs {
			out[i] = Round(o.Value/opts.divisor(), opts.places())
		}
		return out, 0, nil
	case domain.DeriveIndex:
		baseline := obs[0].Value
		if baseline == 0 {
			return nil, 0, fmt.Errorf("%w: %s", ErrZeroBaseline, obs[0].Date.Format("2006-01-02"))
		}
		out := make([]float64, len(obs))
		for i, o := range obs {
			out[i] = Round(o.Value/baseline*100, opts.places())
		}
		return out, baseline, nil
	default:
		return nil, 0, fmt.Errorf("%w: unknown derive mode %q", ErrInvalidOptions, opts.Derive)
	}
}

// FormatValue renders an observation value in its shortest form: 7140, 4.3
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatDerived renders a derived float with at least one decimal: 100.0, 0.045
func FormatDerived(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
