package metric

import (
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/forecast-verification-service/internal/domain"
	"github.com/couchcryptid/forecast-verification-service/internal/statistic"
)

// Kind enumerates the supported metrics.
type Kind int

const (
	MAE Kind = iota + 1
	MSE
	RMSE
	Bias
	MAPE
	SMAPE
	CRPS
	Brier
	SEEPS
	ACC
	Pearson
	Heidke
	POD
	FAR
	ETS
	CSI
	FrequencyBias
)

var kindNames = map[Kind]string{
	MAE:           "mae",
	MSE:           "mse",
	RMSE:          "rmse",
	Bias:          "bias",
	MAPE:          "mape",
	SMAPE:         "smape",
	CRPS:          "crps",
	Brier:         "brier",
	SEEPS:         "seeps",
	ACC:           "acc",
	Pearson:       "pearson",
	Heidke:        "heidke",
	POD:           "pod",
	FAR:           "far",
	ETS:           "ets",
	CSI:           "csi",
	FrequencyBias: "frequencybias",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// noKey is the data key of metrics that take no parameters.
const noKey = "none"

// Spec is a parsed metric name. Categorical metrics carry their bin edges.
type Spec struct {
	Kind  Kind
	Edges []float64
}

// ParseName parses names such as "mae" or "heidke-1-5-10-20". The text before
// the first dash selects the metric; the rest is its data key.
func ParseName(name string) (Spec, error) {
	base, key, hasKey := strings.Cut(strings.ToLower(strings.TrimSpace(name)), "-")
	var kind Kind
	for k, n := range kindNames {
		if n == base {
			kind = k
			break
		}
	}
	if kind == 0 {
		return Spec{}, domain.Configf("unknown metric %q, available metrics: %s", name, strings.Join(Names(), ", "))
	}

	def := definitions[kind]
	if !def.categorical {
		if hasKey && key != noKey {
			return Spec{}, domain.Configf("metric %q does not take a key", base)
		}
		return Spec{Kind: kind}, nil
	}
	if !hasKey || key == "" || key == noKey {
		return Spec{}, domain.Configf("a categorical metric must have a key that specifies the bins")
	}

	parts := strings.Split(key, "-")
	if len(parts) > statistic.MaxCategories-1 {
		return Spec{}, domain.Configf("categorical metrics support at most %d bins, got %d", statistic.MaxCategories, len(parts)+1)
	}
	edges := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return Spec{}, domain.Configf("invalid bin edge %q in metric %q", p, name)
		}
		edges[i] = v
	}
	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			return Spec{}, domain.Configf("bin edges of metric %q must be strictly increasing", name)
		}
	}
	return Spec{Kind: kind, Edges: edges}, nil
}

// DataKey returns the key that distinguishes statistics of this metric beyond
// the standard request fields.
func (s Spec) DataKey() string {
	if len(s.Edges) == 0 {
		return noKey
	}
	parts := make([]string, len(s.Edges))
	for i, e := range s.Edges {
		parts[i] = strconv.FormatFloat(e, 'g', -1, 64)
	}
	return strings.Join(parts, "-")
}

// String returns the wire name of the metric.
func (s Spec) String() string {
	if len(s.Edges) == 0 {
		return s.Kind.String()
	}
	return s.Kind.String() + "-" + s.DataKey()
}

// Categories returns the number of digitization bins.
func (s Spec) Categories() int {
	return len(s.Edges) + 1
}

// Names lists the registered metric names in sorted order.
func Names() []string {
	names := make([]string, 0, len(kindNames))
	for _, n := range kindNames {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
