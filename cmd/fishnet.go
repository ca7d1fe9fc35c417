package main

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/spatial-features/internal/feature"
	"github.com/sells-group/spatial-features/internal/fishnet"
	"github.com/sells-group/spatial-features/internal/geoio"
	"github.com/sells-group/spatial-features/internal/model"
)

var fishnetCmd = &cobra.Command{
	Use:   "fishnet",
	Short: "Build square grids over a region and count points per cell",
}

var (
	fnRegion   string
	fnCellSize float64
	fnRefs     string
	fnName     string
	fnZones    string
	fnZoneID   string
	fnBuildOut outputFlags
	fnCountOut outputFlags
	fnZonesOut outputFlags
)

// -- fishnet build --

var fishnetBuildCmd = &cobra.Command{
	Use:     "build",
	Short:   "Build a fishnet over a region",
	Example: `  spatial-features fishnet build --region city.shp --cell-size 500 -o grid.shp`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("fishnet"); err != nil {
			return err
		}

		params := map[string]any{"region": fnRegion, "cell_size": cellSize()}
		return recordRun(ctx, "fishnet.build", params, func() (*model.FeatureTable, error) {
			net, err := buildFishnet(ctx)
			if err != nil {
				return nil, err
			}
			t := model.NewFeatureTable(fishnet.Centroids(net))
			return t, fnBuildOut.emit(ctx, t, net)
		})
	},
}

// -- fishnet count --

var fishnetCountCmd = &cobra.Command{
	Use:     "count",
	Short:   "Count reference points per fishnet cell",
	Example: `  spatial-features fishnet count --region city.shp --refs crime.csv --cell-size 500 -o crime_grid.geojson`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("fishnet"); err != nil {
			return err
		}

		params := map[string]any{"region": fnRegion, "cell_size": cellSize(), "references": fnRefs}
		return recordRun(ctx, "fishnet.count", params, func() (*model.FeatureTable, error) {
			net, err := buildFishnet(ctx)
			if err != nil {
				return nil, err
			}
			refs, err := loadLayer(ctx, fnRefs)
			if err != nil {
				return nil, err
			}
			counts, err := fishnet.Aggregate(net, refs)
			if err != nil {
				return nil, err
			}

			t := model.NewFeatureTable(fishnet.Centroids(net))
			if err := t.Add(feature.Counts(fnName, counts)); err != nil {
				return nil, err
			}
			zap.L().Info("fishnet counts computed",
				zap.Int("cells", net.Len()),
				zap.Int("references", refs.Len()),
			)
			return t, fnCountOut.emit(ctx, t, net)
		})
	},
}

// -- fishnet zones --

var fishnetZonesCmd = &cobra.Command{
	Use:     "zones",
	Short:   "Count reference points inside each polygon of a zone shapefile",
	Example: `  spatial-features fishnet zones --zones tracts.shp --id-field GEOID --refs crime.csv -o tract_counts.csv`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("features"); err != nil {
			return err
		}

		params := map[string]any{"zones": fnZones, "references": fnRefs}
		return recordRun(ctx, "fishnet.zones", params, func() (*model.FeatureTable, error) {
			zones, err := geoio.LoadZonesShapefile(fnZones, geoio.ShapefileOptions{
				CRS:      cfg.Input.CRS,
				IDField:  fnZoneID,
				Encoding: cfg.Input.DBFEncoding,
			})
			if err != nil {
				return nil, err
			}
			refs, err := loadLayer(ctx, fnRefs)
			if err != nil {
				return nil, err
			}

			geoms := make([]orb.MultiPolygon, len(zones))
			for i, z := range zones {
				geoms[i] = z.Geometry
			}
			counts, err := fishnet.CountWithinZones(geoms, refs)
			if err != nil {
				return nil, err
			}

			t := zoneTable(refs.CRS, zones)
			if err := t.Add(feature.Counts(fnName, counts)); err != nil {
				return nil, err
			}
			return t, fnZonesOut.emit(ctx, t, nil)
		})
	},
}

// zoneTable keys rows by zone ID and places each row at its zone's bounding
// box center.
func zoneTable(crs string, zones []geoio.Zone) *model.FeatureTable {
	t := &model.FeatureTable{
		CRS:    crs,
		IDs:    make([]string, len(zones)),
		Points: make([]model.Point, len(zones)),
	}
	for i, z := range zones {
		c := z.Geometry.Bound().Center()
		t.IDs[i] = z.ID
		t.Points[i] = model.Point{X: c[0], Y: c[1]}
	}
	return t
}

func cellSize() float64 {
	if fnCellSize > 0 {
		return fnCellSize
	}
	return cfg.Fishnet.CellSize
}

func buildFishnet(ctx context.Context) (*model.Fishnet, error) {
	region, err := fileLoader("").Region(ctx, fnRegion)
	if err != nil {
		return nil, err
	}
	return fishnet.Build(region, cellSize(),
		fishnet.WithCRS(cfg.Input.CRS),
		fishnet.WithMaxCells(cfg.Fishnet.MaxCells),
	)
}

func init() {
	for _, c := range []*cobra.Command{fishnetBuildCmd, fishnetCountCmd} {
		c.Flags().StringVar(&fnRegion, "region", "", "region polygons (.shp or .geojson)")
		c.Flags().Float64Var(&fnCellSize, "cell-size", 0, "cell edge length in CRS units (default from config)")
		_ = c.MarkFlagRequired("region")
	}
	for _, c := range []*cobra.Command{fishnetCountCmd, fishnetZonesCmd} {
		c.Flags().StringVar(&fnRefs, "refs", "", "reference point layer (.csv or .shp)")
		c.Flags().StringVar(&fnName, "name", "count", "count column name")
		_ = c.MarkFlagRequired("refs")
	}
	fishnetZonesCmd.Flags().StringVar(&fnZones, "zones", "", "zone polygon shapefile")
	fishnetZonesCmd.Flags().StringVar(&fnZoneID, "id-field", "", "DBF field holding the zone ID (record number when empty)")
	_ = fishnetZonesCmd.MarkFlagRequired("zones")

	fnBuildOut.register(fishnetBuildCmd)
	fnCountOut.register(fishnetCountCmd)
	fnZonesOut.register(fishnetZonesCmd)

	fishnetCmd.AddCommand(fishnetBuildCmd)
	fishnetCmd.AddCommand(fishnetCountCmd)
	fishnetCmd.AddCommand(fishnetZonesCmd)
	rootCmd.AddCommand(fishnetCmd)
}
