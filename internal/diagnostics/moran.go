// Package diagnostics computes spatial autocorrelation statistics and
// column summaries for generated features.
package diagnostics

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrConstantValues is returned when every observation is identical, which
// leaves Moran's I undefined.
var ErrConstantValues = eris.New("values have zero variance")

// MoranResult is a Global Moran's I test under the normality assumption.
type MoranResult struct {
	I        float64 `json:"i"`
	Expected float64 `json:"expected"`
	Variance float64 `json:"variance"`
	ZScore   float64 `json:"z_score"`
	N        int     `json:"n"`
}

// weights holds row-standardised contiguity weights. Rows without
// neighbours (islands) have no weights.
type weights struct {
	nb [][]int
}

func (w weights) weight(i int) float64 {
	return 1 / float64(len(w.nb[i]))
}

func validate(values []float64, neighbors [][]int) error {
	if len(values) != len(neighbors) {
		return eris.Errorf("diagnostics: %d values for %d neighbour lists", len(values), len(neighbors))
	}
	if len(values) < 3 {
		return eris.Errorf("diagnostics: need at least 3 observations, got %d", len(values))
	}
	for i, nb := range neighbors {
		for _, j := range nb {
			if j < 0 || j >= len(values) || j == i {
				return eris.Errorf("diagnostics: invalid neighbour %d of %d", j, i)
			}
		}
	}
	return nil
}

func deviations(values []float64) ([]float64, float64, error) {
	mean := stat.Mean(values, nil)
	z := make([]float64, len(values))
	copy(z, values)
	floats.AddConst(-mean, z)
	m2 := floats.Dot(z, z)
	if m2 == 0 {
		return nil, 0, ErrConstantValues
	}
	return z, m2, nil
}

// GlobalMoran computes Moran's I for values over row-standardised weights
// derived from neighbors (for example fishnet.QueenNeighbors).
func GlobalMoran(values []float64, neighbors [][]int) (MoranResult, error) {
	if err := validate(values, neighbors); err != nil {
		return MoranResult{}, err
	}
	z, m2, err := deviations(values)
	if err != nil {
		return MoranResult{}, err
	}

	n := len(values)
	w := weights{nb: neighbors}

	// Symmetrised weights for S1/S2.
	sym := make(map[[2]int]float64)
	var s0, cross float64
	colSums := make([]float64, n)
	for i, nb := range neighbors {
		if len(nb) == 0 {
			continue
		}
		wi := w.weight(i)
		for _, j := range nb {
			s0 += wi
			cross += wi * z[i] * z[j]
			colSums[j] += wi
			a, b := min(i, j), max(i, j)
			sym[[2]int{a, b}] += wi
		}
	}
	if s0 == 0 {
		return MoranResult{}, eris.New("diagnostics: no neighbour relations")
	}

	var s1 float64
	for _, v := range sym {
		// (w_ij + w_ji)^2 for the unordered pair, counted for both orders.
		s1 += 2 * v * v
	}
	s1 /= 2

	var s2 float64
	for i := range n {
		var rowSum float64
		if len(neighbors[i]) > 0 {
			rowSum = 1
		}
		s2 += (rowSum + colSums[i]) * (rowSum + colSums[i])
	}

	fn := float64(n)
	I := (fn / s0) * cross / m2
	expected := -1 / (fn - 1)
	variance := (fn*fn*s1-fn*s2+3*s0*s0)/(s0*s0*(fn*fn-1)) - expected*expected

	res := MoranResult{I: I, Expected: expected, Variance: variance, N: n}
	if variance > 0 {
		res.ZScore = (I - expected) / math.Sqrt(variance)
	}
	return res, nil
}

// LocalMoran computes the local Moran statistic I_i for every observation
// with row-standardised weights. Islands get 0.
func LocalMoran(values []float64, neighbors [][]int) ([]float64, error) {
	if err := validate(values, neighbors); err != nil {
		return nil, err
	}
	z, m2, err := deviations(values)
	if err != nil {
		return nil, err
	}
	m2 /= float64(len(values))

	w := weights{nb: neighbors}
	out := make([]float64, len(values))
	for i, nb := range neighbors {
		if len(nb) == 0 {
			continue
		}
		var lag float64
		for _, j := range nb {
			lag += z[j]
		}
		out[i] = z[i] / m2 * lag * w.weight(i)
	}
	return out, nil
}
