// Package spatial provides interchangeable nearest-neighbour and fixed-radius
// indexes over a planar reference point set.
package spatial

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/spatial-features/internal/model"
)

// Index answers distance queries against an immutable reference set. Every
// implementation measures distance with Distance, so results are identical
// across backends.
type Index interface {
	// Len returns the number of indexed points.
	Len() int
	// KNearest returns the distances from q to its k nearest indexed points in
	// ascending order. Fewer than k distances are returned when the index
	// holds fewer than k points.
	KNearest(q model.Point, k int) []float64
	// CountWithin returns the number of indexed points at distance <= r from q.
	CountWithin(q model.Point, r float64) int
}

// Backend names an Index implementation.
type Backend string

// Supported backends.
const (
	BackendBrute  Backend = "brute"
	BackendKDTree Backend = "kdtree"
	BackendRTree  Backend = "rtree"
)

// DefaultBackend is used when none is configured.
const DefaultBackend = BackendKDTree

// ParseBackend validates a backend name. The empty string selects the default.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return DefaultBackend, nil
	case BackendBrute, BackendKDTree, BackendRTree:
		return b, nil
	default:
		return "", eris.Errorf("spatial: unknown backend %q", s)
	}
}

// New builds an index of the given backend over pts. pts is not retained.
func New(b Backend, pts []model.Point) (Index, error) {
	switch b {
	case BackendBrute:
		return NewBruteForce(pts), nil
	case BackendKDTree, "":
		return NewKDTree(pts), nil
	case BackendRTree:
		return NewRTree(pts), nil
	default:
		return nil, eris.Errorf("spatial: unknown backend %q", b)
	}
}

// Distance is the Euclidean distance between a and b in CRS units.
func Distance(a, b model.Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}
