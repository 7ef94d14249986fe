package metric

import (
	"math"

	"github.com/couchcryptid/forecast-verification-service/internal/statistic"
)

// composeFunc turns one grouped value per statistic into the metric value.
// values follows the order returned by definition.statistics.
type composeFunc func(values []float64) float64

type definition struct {
	probabilistic bool
	// variables restricts the metric to these variables; nil allows any.
	variables   []string
	sparse      bool
	categorical bool
	// keySuffix extends the data key with the climatology period in use.
	keySuffix  string
	statistics func(s Spec) []string
	// compose is nil when the metric is its single statistic.
	compose func(s Spec) composeFunc
}

var precipOnly = []string{"precip"}

func fixed(names ...string) func(Spec) []string {
	return func(Spec) []string { return names }
}

func composed(fn composeFunc) func(Spec) composeFunc {
	return func(Spec) composeFunc { return fn }
}

var definitions = map[Kind]definition{
	MAE:  {statistics: fixed("mae")},
	MSE:  {statistics: fixed("mse")},
	Bias: {statistics: fixed("bias")},
	RMSE: {
		statistics: fixed("mse"),
		compose:    composed(func(v []float64) float64 { return math.Sqrt(v[0]) }),
	},
	MAPE:  {variables: precipOnly, statistics: fixed("mape")},
	SMAPE: {variables: precipOnly, statistics: fixed("smape")},
	CRPS:  {probabilistic: true, statistics: fixed("crps")},
	Brier: {probabilistic: true, variables: precipOnly, categorical: true, statistics: fixed("brier")},
	SEEPS: {variables: precipOnly, sparse: true, keySuffix: "-1991-2020", statistics: fixed("seeps")},
	ACC: {
		keySuffix:  "-1990-2019",
		statistics: fixed("squared_fcst_anom", "squared_obs_anom", "anom_covariance"),
		compose: composed(func(v []float64) float64 {
			fa2, oa2, cov := v[0], v[1], v[2]
			return cov / (math.Sqrt(fa2) * math.Sqrt(oa2))
		}),
	},
	Pearson: {
		variables:  precipOnly,
		statistics: fixed("fcst", "obs", "squared_fcst", "squared_obs", "covariance"),
		compose: composed(func(v []float64) float64 {
			f, o, sf, so, cov := v[0], v[1], v[2], v[3], v[4]
			return (cov - f*o) / (math.Sqrt(sf-f*f) * math.Sqrt(so-o*o))
		}),
	},
	Heidke: {
		variables:   precipOnly,
		categorical: true,
		statistics:  heidkeStatistics,
		compose:     heidke,
	},
	POD: {
		variables: precipOnly, sparse: true, categorical: true,
		statistics: fixed("true_positives", "false_negatives"),
		compose: composed(func(v []float64) float64 {
			tp, fn := v[0], v[1]
			return tp / (tp + fn)
		}),
	},
	FAR: {
		variables: precipOnly, sparse: true, categorical: true,
		statistics: fixed("false_positives", "true_negatives"),
		compose: composed(func(v []float64) float64 {
			fp, tn := v[0], v[1]
			return fp / (fp + tn)
		}),
	},
	ETS: {
		variables: precipOnly, sparse: true, categorical: true,
		statistics: fixed("true_positives", "false_positives", "false_negatives", "true_negatives"),
		compose: composed(func(v []float64) float64 {
			tp, fp, fn, tn := v[0], v[1], v[2], v[3]
			chance := (tp + fp) * (tp + fn) / (tp + fp + fn + tn)
			return (tp - chance) / (tp + fp + fn - chance)
		}),
	},
	CSI: {
		variables: precipOnly, sparse: true, categorical: true,
		statistics: fixed("true_positives", "false_positives", "false_negatives"),
		compose: composed(func(v []float64) float64 {
			tp, fp, fn := v[0], v[1], v[2]
			return tp / (tp + fp + fn)
		}),
	},
	FrequencyBias: {
		variables: precipOnly, sparse: true, categorical: true,
		statistics: fixed("true_positives", "false_positives", "false_negatives"),
		compose: composed(func(v []float64) float64 {
			tp, fp, fn := v[0], v[1], v[2]
			return (tp + fp) / (tp + fn)
		}),
	},
}

// heidkeStatistics lists n_correct, n_valid, then the forecast bin counts and
// the observed bin counts.
func heidkeStatistics(s Spec) []string {
	k := s.Categories()
	names := make([]string, 0, 2+2*k)
	names = append(names, "n_correct", "n_valid")
	for i := 1; i <= k; i++ {
		names = append(names, statistic.FcstBin(i))
	}
	for i := 1; i <= k; i++ {
		names = append(names, statistic.ObsBin(i))
	}
	return names
}

func heidke(s Spec) composeFunc {
	k := s.Categories()
	return func(v []float64) float64 {
		correct, valid := v[0], v[1]
		fcstBins, obsBins := v[2:2+k], v[2+k:2+2*k]
		expected := 0.0
		for i := range k {
			expected += fcstBins[i] * obsBins[i]
		}
		pc := correct / valid
		pe := expected / (valid * valid)
		return (pc - pe) / (1 - pe)
	}
}

func (d definition) allowsVariable(variable string) bool {
	if d.variables == nil {
		return true
	}
	for _, v := range d.variables {
		if v == variable {
			return true
		}
	}
	return false
}
