package plan

import (
	"context"
	"time"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/spatial-features/internal/feature"
	"github.com/sells-group/spatial-features/internal/fishnet"
	"github.com/sells-group/spatial-features/internal/model"
)

// Loader reads the layers a plan refers to.
type Loader interface {
	Points(ctx context.Context, name string, layer Layer) (model.PointSet, error)
	Region(ctx context.Context, path string) (orb.MultiPolygon, error)
}

// Runner executes plans.
type Runner struct {
	Loader      Loader
	Options     []feature.Option
	Concurrency int
	MaxCells    int
}

// Result is the output of a plan run. Fishnet is set for grid targets, in
// which case the table rows are the cell centers keyed by cell ID.
type Result struct {
	Table   *model.FeatureTable
	Fishnet *model.Fishnet
}

// Run loads every referenced layer, builds one generator per reference
// layer and computes all feature columns concurrently. The first failing
// feature cancels the rest and its error is returned.
func (r *Runner) Run(ctx context.Context, p *Plan) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("component", "plan.runner"))
	start := time.Now()

	limit := r.Concurrency
	if limit < 1 {
		limit = 1
	}

	layers, err := r.loadLayers(ctx, p, limit)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	var targets model.PointSet
	if p.Target.Fishnet != nil {
		region, err := r.Loader.Region(ctx, p.Target.Fishnet.Region)
		if err != nil {
			return nil, eris.Wrapf(err, "plan: load region %s", p.Target.Fishnet.Region)
		}
		opts := []fishnet.Option{fishnet.WithCRS(p.CRS)}
		if r.MaxCells > 0 {
			opts = append(opts, fishnet.WithMaxCells(r.MaxCells))
		}
		res.Fishnet, err = fishnet.Build(region, p.Target.Fishnet.CellSize, opts...)
		if err != nil {
			return nil, eris.Wrap(err, "plan: build fishnet")
		}
		targets = fishnet.Centroids(res.Fishnet)
	} else {
		targets = layers[p.Target.Layer]
	}

	gens := make(map[string]*feature.Generator)
	for _, f := range p.Features {
		if f.Kind == KindCount || gens[f.Layer] != nil {
			continue
		}
		g, err := feature.NewGenerator(layers[f.Layer], r.Options...)
		if err != nil {
			return nil, eris.Wrapf(err, "plan: index layer %s", f.Layer)
		}
		gens[f.Layer] = g
	}

	slots := make([][]model.FeatureColumn, len(p.Features))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, f := range p.Features {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cols, err := r.compute(f, targets, res.Fishnet, layers[f.Layer], gens[f.Layer])
			if err != nil {
				return eris.Wrapf(err, "plan: feature %v", f.Columns())
			}
			slots[i] = cols
			log.Debug("feature computed", zap.Strings("columns", f.Columns()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res.Table = model.NewFeatureTable(targets)
	for _, cols := range slots {
		for _, c := range cols {
			if err := res.Table.Add(c); err != nil {
				return nil, eris.Wrap(err, "plan: assemble table")
			}
		}
	}

	log.Info("plan complete",
		zap.Int("rows", res.Table.Rows()),
		zap.Int("columns", len(res.Table.Columns)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

func (r *Runner) loadLayers(ctx context.Context, p *Plan, limit int) (map[string]model.PointSet, error) {
	names := p.referenced()
	sets := make([]model.PointSet, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, name := range names {
		g.Go(func() error {
			layer := p.Layers[name]
			if layer.CRS == "" {
				layer.CRS = p.CRS
			}
			ps, err := r.Loader.Points(gctx, name, layer)
			if err != nil {
				return eris.Wrapf(err, "plan: load layer %s", name)
			}
			sets[i] = ps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]model.PointSet, len(names))
	for i, name := range names {
		out[name] = sets[i]
	}
	return out, nil
}

func (r *Runner) compute(f Feature, targets model.PointSet, net *model.Fishnet, refs model.PointSet, gen *feature.Generator) ([]model.FeatureColumn, error) {
	names := f.Columns()
	switch f.Kind {
	case KindNN:
		sweep, err := gen.NearestNeighborSweep(targets, f.K)
		if err != nil {
			return nil, err
		}
		cols := make([]model.FeatureColumn, len(sweep))
		for i, v := range sweep {
			cols[i] = model.FeatureColumn{Name: names[i], Values: v}
		}
		return cols, nil
	case KindBuffer:
		counts, err := gen.BufferCount(targets, f.Radius)
		if err != nil {
			return nil, err
		}
		return []model.FeatureColumn{feature.Counts(names[0], counts)}, nil
	case KindCount:
		counts, err := fishnet.Aggregate(net, refs)
		if err != nil {
			return nil, err
		}
		return []model.FeatureColumn{feature.Counts(names[0], counts)}, nil
	}
	return nil, eris.Errorf("plan: unknown kind %q", f.Kind)
}
