package diagnostics

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/spatial-features/internal/model"
)

// Summary describes the distribution of one feature column.
type Summary struct {
	Name   string  `json:"name" csv:"name"`
	Count  int     `json:"count" csv:"count"`
	Mean   float64 `json:"mean" csv:"mean"`
	StdDev float64 `json:"std_dev" csv:"std_dev"`
	Min    float64 `json:"min" csv:"min"`
	Max    float64 `json:"max" csv:"max"`
}

// Summarize computes count, mean, sample standard deviation and range.
func Summarize(col model.FeatureColumn) Summary {
	s := Summary{Name: col.Name, Count: len(col.Values)}
	if s.Count == 0 {
		return s
	}
	s.Mean = stat.Mean(col.Values, nil)
	if s.Count > 1 {
		s.StdDev = stat.StdDev(col.Values, nil)
	}
	s.Min = floats.Min(col.Values)
	s.Max = floats.Max(col.Values)
	return s
}

// SummarizeTable summarises every column of t in order.
func SummarizeTable(t *model.FeatureTable) []Summary {
	out := make([]Summary, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = Summarize(c)
	}
	return out
}
