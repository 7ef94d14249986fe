package grid

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// cubeJSON is the wire form of a Cube. Missing values are encoded as null.
type cubeJSON struct {
	LeadHours []float64   `json:"lead_hours"`
	Times     []time.Time `json:"times"`
	Lats      []float64   `json:"lats"`
	Lons      []float64   `json:"lons"`
	Members   []float64   `json:"members,omitempty"`
	Values    []*float64  `json:"values"`
	Sparse    bool        `json:"sparse,omitempty"`
	ProbType  ProbType    `json:"prob_type,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (c *Cube) MarshalJSON() ([]byte, error) {
	hours := make([]float64, len(c.Leads))
	for i, l := range c.Leads {
		hours[i] = l.Hours()
	}
	return json.Marshal(cubeJSON{
		LeadHours: hours,
		Times:     c.Times,
		Lats:      c.Lats,
		Lons:      c.Lons,
		Members:   c.Members,
		Values:    Nullable(c.Data),
		Sparse:    c.Meta.Sparse,
		ProbType:  c.Meta.ProbType,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Cube) UnmarshalJSON(b []byte) error {
	var w cubeJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	leads := make([]time.Duration, len(w.LeadHours))
	for i, h := range w.LeadHours {
		leads[i] = time.Duration(h * float64(time.Hour))
	}
	if len(leads) == 0 {
		leads = []time.Duration{0}
	}
	*c = Cube{
		Leads:   leads,
		Times:   w.Times,
		Lats:    w.Lats,
		Lons:    w.Lons,
		Members: w.Members,
		Data:    FromNullable(w.Values),
		Meta:    Meta{Sparse: w.Sparse, ProbType: w.ProbType},
	}
	if c.Meta.ProbType == "" {
		c.Meta.ProbType = Deterministic
	}
	if len(c.Data) != c.Len() {
		return fmt.Errorf("cube has %d values, coordinates describe %d", len(c.Data), c.Len())
	}
	return nil
}

// Nullable converts NaN to nil for JSON encoding.
func Nullable(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i := range values {
		if !math.IsNaN(values[i]) {
			v := values[i]
			out[i] = &v
		}
	}
	return out
}

// FromNullable converts nil to NaN.
func FromNullable(values []*float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	return out
}

type maskJSON struct {
	Lats   []float64  `json:"lats"`
	Lons   []float64  `json:"lons"`
	Values []*float64 `json:"values"`
}

// MarshalJSON implements json.Marshaler.
func (m *Mask) MarshalJSON() ([]byte, error) {
	return json.Marshal(maskJSON{Lats: m.Lats, Lons: m.Lons, Values: Nullable(m.Values)})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Mask) UnmarshalJSON(b []byte) error {
	var w maskJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if len(w.Values) != len(w.Lats)*len(w.Lons) {
		return fmt.Errorf("mask has %d values for a %dx%d grid", len(w.Values), len(w.Lats), len(w.Lons))
	}
	*m = Mask{Lats: w.Lats, Lons: w.Lons, Values: FromNullable(w.Values)}
	return nil
}

type labelsJSON struct {
	Lats   []float64 `json:"lats"`
	Lons   []float64 `json:"lons"`
	Values []string  `json:"values"`
}

// MarshalJSON implements json.Marshaler.
func (l *Labels) MarshalJSON() ([]byte, error) {
	return json.Marshal(labelsJSON{Lats: l.Lats, Lons: l.Lons, Values: l.Values})
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Labels) UnmarshalJSON(b []byte) error {
	var w labelsJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if len(w.Values) != len(w.Lats)*len(w.Lons) {
		return fmt.Errorf("labels have %d values for a %dx%d grid", len(w.Values), len(w.Lats), len(w.Lons))
	}
	*l = Labels{Lats: w.Lats, Lons: w.Lons, Values: w.Values}
	return nil
}
