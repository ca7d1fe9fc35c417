// Package plan describes a batch of feature computations in YAML and runs
// them against loaded layers.
package plan

import (
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/spatial-features/internal/model"
)

// Feature kinds.
const (
	KindNN     = "nn"
	KindBuffer = "buffer"
	KindCount  = "count"
)

// Plan is a full feature build: one target, named reference layers and the
// features to compute against them.
type Plan struct {
	CRS      string           `yaml:"crs"`
	Target   Target           `yaml:"target"`
	Layers   map[string]Layer `yaml:"layers"`
	Features []Feature        `yaml:"features"`
	Output   Output           `yaml:"output"`
}

// Target is either a point layer or a fishnet built over a region.
type Target struct {
	Layer   string       `yaml:"layer,omitempty"`
	Fishnet *FishnetSpec `yaml:"fishnet,omitempty"`
}

// FishnetSpec builds the target grid from a polygon shapefile or GeoJSON region.
type FishnetSpec struct {
	Region   string  `yaml:"region"`
	CellSize float64 `yaml:"cell_size"`
}

// Layer is a point file on disk. Format is inferred from the extension when
// empty.
type Layer struct {
	Path     string `yaml:"path"`
	Format   string `yaml:"format,omitempty"`
	CRS      string `yaml:"crs,omitempty"`
	XColumn  string `yaml:"x_column,omitempty"`
	YColumn  string `yaml:"y_column,omitempty"`
	IDColumn string `yaml:"id_column,omitempty"`
}

// Feature is one requested computation. An nn feature with several k values
// yields one column per k.
type Feature struct {
	Name   string  `yaml:"name,omitempty"`
	Kind   string  `yaml:"kind"`
	Layer  string  `yaml:"layer"`
	K      []int   `yaml:"k,omitempty"`
	Radius float64 `yaml:"radius,omitempty"`
}

// Output says where the runner's caller writes the table.
type Output struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format,omitempty"`
}

// Load reads and validates a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "plan: read %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates a plan document.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "plan: parse")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// FormatOf returns the explicit format or the lower-case file extension.
func FormatOf(path, format string) string {
	if format != "" {
		return strings.ToLower(format)
	}
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return strings.ToLower(path[i+1:])
	}
	return ""
}

// Validate checks references between sections and per-kind parameters.
func (p *Plan) Validate() error {
	if p.CRS != "" && model.IsGeographic(p.CRS) {
		return eris.Wrapf(model.ErrGeographicCRS, "plan: crs %s", p.CRS)
	}
	if len(p.Layers) == 0 {
		return eris.New("plan: no layers")
	}
	for name, l := range p.Layers {
		if l.Path == "" {
			return eris.Errorf("plan: layer %s has no path", name)
		}
		switch FormatOf(l.Path, l.Format) {
		case "csv", "shp":
		default:
			return eris.Errorf("plan: layer %s: unsupported format %q", name, FormatOf(l.Path, l.Format))
		}
	}

	grid := p.Target.Fishnet != nil
	switch {
	case grid && p.Target.Layer != "":
		return eris.New("plan: target has both a layer and a fishnet")
	case grid:
		if p.Target.Fishnet.Region == "" {
			return eris.New("plan: fishnet target needs a region")
		}
		if !(p.Target.Fishnet.CellSize > 0) || math.IsInf(p.Target.Fishnet.CellSize, 0) {
			return eris.Wrapf(model.ErrInvalidCellSize, "plan: cell size %v", p.Target.Fishnet.CellSize)
		}
	case p.Target.Layer == "":
		return eris.New("plan: no target")
	default:
		if _, ok := p.Layers[p.Target.Layer]; !ok {
			return eris.Errorf("plan: target layer %s is not defined", p.Target.Layer)
		}
	}

	if len(p.Features) == 0 {
		return eris.New("plan: no features")
	}
	seen := make(map[string]bool)
	for i, f := range p.Features {
		if _, ok := p.Layers[f.Layer]; !ok {
			return eris.Errorf("plan: feature %d: layer %q is not defined", i+1, f.Layer)
		}
		switch f.Kind {
		case KindNN:
			if len(f.K) == 0 {
				return eris.Wrapf(model.ErrInvalidK, "plan: feature %d: nn needs k", i+1)
			}
			for _, k := range f.K {
				if k < 1 {
					return eris.Wrapf(model.ErrInvalidK, "plan: feature %d: k=%d", i+1, k)
				}
			}
		case KindBuffer:
			if !(f.Radius > 0) || math.IsInf(f.Radius, 0) {
				return eris.Wrapf(model.ErrInvalidRadius, "plan: feature %d: radius %v", i+1, f.Radius)
			}
		case KindCount:
			if !grid {
				return eris.Errorf("plan: feature %d: count needs a fishnet target", i+1)
			}
		default:
			return eris.Errorf("plan: feature %d: unknown kind %q", i+1, f.Kind)
		}
		for _, name := range f.Columns() {
			if seen[name] {
				return eris.Errorf("plan: duplicate column %s", name)
			}
			seen[name] = true
		}
	}
	return nil
}

// Columns returns the output column names of f in the order they are
// produced.
func (f Feature) Columns() []string {
	switch f.Kind {
	case KindNN:
		base := f.Name
		if base == "" {
			base = f.Layer + "_nn"
		}
		if len(f.K) == 1 && f.Name != "" {
			return []string{f.Name}
		}
		out := make([]string, len(f.K))
		for i, k := range f.K {
			out[i] = base + strconv.Itoa(k)
		}
		return out
	case KindBuffer:
		if f.Name != "" {
			return []string{f.Name}
		}
		return []string{f.Layer + "_buf" + strconv.FormatFloat(f.Radius, 'f', -1, 64)}
	case KindCount:
		if f.Name != "" {
			return []string{f.Name}
		}
		return []string{f.Layer + "_count"}
	}
	return nil
}

// referenced returns the layer names the plan loads, sorted.
func (p *Plan) referenced() []string {
	set := make(map[string]bool)
	if p.Target.Layer != "" {
		set[p.Target.Layer] = true
	}
	for _, f := range p.Features {
		set[f.Layer] = true
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
