// Package feature computes distance-based features of target points against
// a reference point set: mean distance to the k nearest references and
// reference counts within a fixed radius.
package feature

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/spatial-features/internal/model"
	"github.com/sells-group/spatial-features/internal/spatial"
)

// Generator holds a validated reference set and its index. It is safe for
// concurrent use; queries only read the index.
type Generator struct {
	refs model.PointSet
	idx  spatial.Index
	opts Options
}

// NewGenerator validates refs and indexes them with the configured backend.
// An empty reference set is accepted: counts against it are zero, while
// nearest-neighbour queries fail.
func NewGenerator(refs model.PointSet, opts ...Option) (*Generator, error) {
	o := buildOptions(opts)
	if _, err := ParseKPolicy(string(o.KPolicy)); err != nil {
		return nil, err
	}
	if err := refs.Validate(); err != nil {
		return nil, eris.Wrap(err, "feature: reference set")
	}
	idx, err := spatial.New(o.Backend, refs.Points)
	if err != nil {
		return nil, eris.Wrap(err, "feature: build index")
	}
	return &Generator{refs: refs, idx: idx, opts: o}, nil
}

// References returns the number of indexed reference points.
func (g *Generator) References() int { return g.idx.Len() }

// CRS returns the reference set's coordinate system.
func (g *Generator) CRS() string { return g.refs.CRS }

// NearestNeighborDistance returns, for each target, the arithmetic mean of
// the k smallest distances to the reference set, in target order.
func (g *Generator) NearestNeighborDistance(targets model.PointSet, k int) ([]float64, error) {
	cols, err := g.NearestNeighborSweep(targets, []int{k})
	if err != nil {
		return nil, err
	}
	return cols[0], nil
}

// NearestNeighborSweep computes one nearest-neighbour column per k with a
// single index query of max(ks) neighbours per target.
func (g *Generator) NearestNeighborSweep(targets model.PointSet, ks []int) ([][]float64, error) {
	if len(ks) == 0 {
		return nil, eris.Wrap(model.ErrInvalidK, "feature: no k values")
	}
	if err := g.checkTargets(targets); err != nil {
		return nil, err
	}

	m := g.idx.Len()
	if m == 0 {
		return nil, eris.Wrap(model.ErrInsufficientReference, "feature: reference set is empty")
	}

	effective := make([]int, len(ks))
	maxK := 0
	var clamped []int
	for i, k := range ks {
		if k < 1 {
			return nil, eris.Wrapf(model.ErrInvalidK, "feature: k=%d", k)
		}
		if k > m {
			if g.opts.KPolicy != KPolicyAvailable {
				return nil, eris.Wrapf(model.ErrInsufficientReference,
					"feature: k=%d exceeds %d reference points", k, m)
			}
			clamped = append(clamped, k)
			k = m
		}
		effective[i] = k
		maxK = max(maxK, k)
	}
	if len(clamped) > 0 {
		zap.L().Warn("feature: k exceeds reference set, averaging over available points",
			zap.Ints("k", clamped),
			zap.Int("references", m),
		)
	}

	out := make([][]float64, len(ks))
	for i := range out {
		out[i] = make([]float64, targets.Len())
	}
	for t, q := range targets.Points {
		dists := g.idx.KNearest(q, maxK)
		for i, k := range effective {
			out[i][t] = mean(dists[:k])
		}
	}
	return out, nil
}

// BufferCount returns, for each target, the number of reference points at
// distance <= radius. An empty reference set yields all zeros.
func (g *Generator) BufferCount(targets model.PointSet, radius float64) ([]int, error) {
	if math.IsNaN(radius) || math.IsInf(radius, 0) || radius <= 0 {
		return nil, eris.Wrapf(model.ErrInvalidRadius, "feature: radius=%v", radius)
	}
	if err := g.checkTargets(targets); err != nil {
		return nil, err
	}
	out := make([]int, targets.Len())
	if g.idx.Len() == 0 {
		return out, nil
	}
	for t, q := range targets.Points {
		out[t] = g.idx.CountWithin(q, radius)
	}
	return out, nil
}

func (g *Generator) checkTargets(targets model.PointSet) error {
	if targets.Len() == 0 {
		return eris.Wrap(model.ErrEmptyPointSet, "feature: target set")
	}
	if err := targets.Validate(); err != nil {
		return eris.Wrap(err, "feature: target set")
	}
	return eris.Wrap(model.CheckCRS(targets, g.refs), "feature: targets vs references")
}

// mean averages distances already sorted ascending, so the summation order
// is fixed regardless of backend.
func mean(d []float64) float64 {
	return floats.Sum(d) / float64(len(d))
}

// NearestNeighborDistance is a one-shot form of Generator.NearestNeighborDistance.
func NearestNeighborDistance(targets, refs model.PointSet, k int, opts ...Option) ([]float64, error) {
	g, err := NewGenerator(refs, opts...)
	if err != nil {
		return nil, err
	}
	return g.NearestNeighborDistance(targets, k)
}

// NearestNeighborSweep is a one-shot form of Generator.NearestNeighborSweep.
func NearestNeighborSweep(targets, refs model.PointSet, ks []int, opts ...Option) ([][]float64, error) {
	g, err := NewGenerator(refs, opts...)
	if err != nil {
		return nil, err
	}
	return g.NearestNeighborSweep(targets, ks)
}

// BufferCount is a one-shot form of Generator.BufferCount.
func BufferCount(targets, refs model.PointSet, radius float64, opts ...Option) ([]int, error) {
	g, err := NewGenerator(refs, opts...)
	if err != nil {
		return nil, err
	}
	return g.BufferCount(targets, radius)
}

// Counts converts integer counts to a numeric feature column.
func Counts(name string, counts []int) model.FeatureColumn {
	vals := make([]float64, len(counts))
	for i, c := range counts {
		vals[i] = float64(c)
	}
	return model.FeatureColumn{Name: name, Values: vals}
}
