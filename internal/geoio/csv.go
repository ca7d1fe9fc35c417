// Package geoio reads point and polygon layers from CSV and shapefiles and
// writes feature tables as CSV, XLSX, GeoJSON and EWKB.
package geoio

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/spatial-features/internal/diagnostics"
	"github.com/sells-group/spatial-features/internal/model"
)

// CSVOptions names the coordinate and identifier columns of a point CSV.
type CSVOptions struct {
	XColumn  string // default "x"
	YColumn  string // default "y"
	IDColumn string // optional; rows are numbered from 1 when absent
	CRS      string
}

func (o CSVOptions) withDefaults() CSVOptions {
	if o.XColumn == "" {
		o.XColumn = "x"
	}
	if o.YColumn == "" {
		o.YColumn = "y"
	}
	return o
}

type pointRecord struct {
	X  *float64 `csv:"x"`
	Y  *float64 `csv:"y"`
	ID string   `csv:"id,omitempty"`
}

// ReadPointsCSV decodes a point layer from r. Column names are matched
// case-insensitively; blank or non-numeric coordinates are errors.
func ReadPointsCSV(r io.Reader, opts CSVOptions) (model.PointSet, error) {
	opts = opts.withDefaults()

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return model.PointSet{}, eris.Wrap(model.ErrEmptyPointSet, "geoio: csv has no header")
	}
	if err != nil {
		return model.PointSet{}, eris.Wrap(err, "geoio: read csv header")
	}

	// Rename the configured columns onto the record's tags; everything else
	// is ignored by the decoder.
	renamed := make([]string, len(header))
	wanted := map[string]string{
		strings.ToLower(opts.XColumn): "x",
		strings.ToLower(opts.YColumn): "y",
	}
	if opts.IDColumn != "" {
		wanted[strings.ToLower(opts.IDColumn)] = "id"
	}
	found := make(map[string]bool, len(wanted))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if tag, ok := wanted[key]; ok && !found[tag] {
			renamed[i] = tag
			found[tag] = true
			continue
		}
		renamed[i] = "_" + strconv.Itoa(i)
	}
	if !found["x"] || !found["y"] {
		return model.PointSet{}, eris.Errorf("geoio: csv needs columns %q and %q, got %v", opts.XColumn, opts.YColumn, header)
	}

	dec, err := csvutil.NewDecoder(cr, renamed...)
	if err != nil {
		return model.PointSet{}, eris.Wrap(err, "geoio: csv decoder")
	}

	ps := model.PointSet{CRS: opts.CRS}
	withIDs := found["id"]
	for line := 2; ; line++ {
		var rec pointRecord
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return model.PointSet{}, eris.Wrapf(err, "geoio: csv line %d", line)
		}
		if rec.X == nil || rec.Y == nil {
			return model.PointSet{}, eris.Wrapf(model.ErrInvalidCoordinate, "geoio: csv line %d: blank coordinate", line)
		}
		ps.Points = append(ps.Points, model.Point{X: *rec.X, Y: *rec.Y})
		if withIDs {
			ps.IDs = append(ps.IDs, rec.ID)
		}
	}
	return ps, nil
}

// LoadPointsCSV opens path and decodes it with ReadPointsCSV.
func LoadPointsCSV(path string, opts CSVOptions) (model.PointSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.PointSet{}, eris.Wrapf(err, "geoio: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return ReadPointsCSV(f, opts)
}

// WriteFeaturesCSV writes one row per target: id, x, y, then every feature
// column in table order. Floats use the shortest round-trip formatting.
func WriteFeaturesCSV(w io.Writer, t *model.FeatureTable) error {
	cw := csv.NewWriter(w)
	header := append([]string{"id", "x", "y"}, t.Header()...)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "geoio: write csv header")
	}

	row := make([]string, len(header))
	for i := range t.Rows() {
		row[0] = t.IDs[i]
		row[1] = formatFloat(t.Points[i].X)
		row[2] = formatFloat(t.Points[i].Y)
		for j, c := range t.Columns {
			row[3+j] = formatFloat(c.Values[i])
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "geoio: write csv row %d", i+1)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "geoio: flush csv")
}

// WriteSummariesCSV writes column summaries with a fixed header.
func WriteSummariesCSV(w io.Writer, sums []diagnostics.Summary) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if len(sums) == 0 {
		if err := enc.EncodeHeader(diagnostics.Summary{}); err != nil {
			return eris.Wrap(err, "geoio: write summary header")
		}
	}
	for _, s := range sums {
		if err := enc.Encode(s); err != nil {
			return eris.Wrapf(err, "geoio: write summary %s", s.Name)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "geoio: flush csv")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
