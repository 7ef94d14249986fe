package statistic

import (
	"fmt"
	"slices"

	"github.com/couchcryptid/forecast-verification-service/internal/domain"
)

// MaxCategories is the largest number of digitization bins supported.
const MaxCategories = 10

var registry = buildRegistry()

func buildRegistry() map[string]Func {
	r := map[string]Func{
		"obs":               obsValue,
		"fcst":              fcstValue,
		"squared_obs":       squaredObs,
		"squared_fcst":      squaredFcst,
		"covariance":        covariance,
		"obs_anom":          obsAnom,
		"fcst_anom":         fcstAnom,
		"squared_obs_anom":  squaredObsAnom,
		"squared_fcst_anom": squaredFcstAnom,
		"anom_covariance":   anomCovariance,
		"n_valid":           nValid,
		"obs_digitized":     obsDigitized,
		"fcst_digitized":    fcstDigitized,
		"true_positives":    contingency(true, true),
		"false_positives":   contingency(false, true),
		"false_negatives":   contingency(true, false),
		"true_negatives":    contingency(false, false),
		"n_correct":         nCorrect,
		"mae":               mae,
		"mse":               mse,
		"bias":              bias,
		"mape":              mape,
		"smape":             smape,
		"brier":             brier,
		"seeps":             seeps,
		"crps":              crps,
	}
	for i := 1; i <= MaxCategories; i++ {
		r[fmt.Sprintf("n_obs_bin_%d", i)] = binCount(false, i)
		r[fmt.Sprintf("n_fcst_bin_%d", i)] = binCount(true, i)
	}
	return r
}

// Lookup returns the statistic registered under name.
func Lookup(name string) (Func, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, domain.Configf("unknown statistic %q", name)
	}
	return fn, nil
}

// Names lists the registered statistics in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ObsBin and FcstBin name the per-category count statistics.
func ObsBin(i int) string  { return fmt.Sprintf("n_obs_bin_%d", i) }
func FcstBin(i int) string { return fmt.Sprintf("n_fcst_bin_%d", i) }
