package geoio

import (
	"os"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/spatial-features/internal/model"
)

// dbfNameLen is the dBASE III limit on field names.
const dbfNameLen = 10

// WriteFishnetShapefile writes the cells of net as a polygon shapefile with
// CELL_ID, ROW and COL attributes plus one numeric field per column. Column
// names are shortened to unique DBF field names by dbfFieldNames.
func WriteFishnetShapefile(path string, net *model.Fishnet, cols []model.FeatureColumn) error {
	for _, c := range cols {
		if len(c.Values) != net.Len() {
			return eris.Errorf("geoio: column %s has %d values for %d cells", c.Name, len(c.Values), net.Len())
		}
	}

	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return eris.Wrapf(err, "geoio: create shapefile %s", path)
	}
	if err := writeCells(w, net, cols); err != nil {
		_ = closeShapefile(w, path)
		return err
	}
	return closeShapefile(w, path)
}

func writeCells(w *shp.Writer, net *model.Fishnet, cols []model.FeatureColumn) error {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	fields := []shp.Field{
		shp.NumberField("CELL_ID", 10),
		shp.NumberField("ROW", 10),
		shp.NumberField("COL", 10),
	}
	for _, name := range dbfFieldNames(names, "CELL_ID", "ROW", "COL") {
		fields = append(fields, shp.FloatField(name, 18, 6))
	}
	if err := w.SetFields(fields); err != nil {
		return eris.Wrap(err, "geoio: set shapefile fields")
	}

	for i, cell := range net.Cells {
		b := cell.Bound
		// Outer rings are clockwise in shapefiles.
		ring := []shp.Point{
			{X: b.Min[0], Y: b.Min[1]},
			{X: b.Min[0], Y: b.Max[1]},
			{X: b.Max[0], Y: b.Max[1]},
			{X: b.Max[0], Y: b.Min[1]},
			{X: b.Min[0], Y: b.Min[1]},
		}
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{ring}))
		row := int(w.Write(&poly))

		attrs := []any{cell.ID, cell.Row, cell.Col}
		for _, c := range cols {
			attrs = append(attrs, c.Values[i])
		}
		for f, v := range attrs {
			if err := w.WriteAttribute(row, f, v); err != nil {
				return eris.Wrapf(err, "geoio: write attribute of cell %d", cell.ID)
			}
		}
	}
	return nil
}

// closeShapefile flushes the headers of w and moves the attribute table to
// <base>.dbf. go-shp v0.1.1 creates it as <base>dbf.
func closeShapefile(w *shp.Writer, path string) error {
	w.Close()

	base := path
	if strings.HasSuffix(strings.ToLower(base), ".shp") {
		base = base[:len(base)-len(".shp")]
	}
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		return eris.Wrapf(err, "geoio: finalize %s.dbf", base)
	}
	return nil
}

// dbfFieldNames shortens names to the DBF limit. Names that collide with each
// other or with reserved (case-insensitively) get a numeric suffix in place
// of their last characters, so "robbery_nn1" and "robbery_nn2" become
// "robbery_n1" and "robbery_n2".
func dbfFieldNames(names []string, reserved ...string) []string {
	used := make(map[string]bool, len(names)+len(reserved))
	for _, r := range reserved {
		used[strings.ToUpper(r)] = true
	}

	short := make([]string, len(names))
	shared := make(map[string]int, len(names))
	for i, n := range names {
		if len(n) > dbfNameLen {
			n = n[:dbfNameLen]
		}
		short[i] = n
		shared[strings.ToUpper(n)]++
	}

	out := make([]string, len(names))
	for i, s := range short {
		key := strings.ToUpper(s)
		if shared[key] == 1 && !used[key] {
			out[i] = s
			used[key] = true
		}
	}

	next := make(map[string]int)
	for i, s := range short {
		if out[i] != "" {
			continue
		}
		key := strings.ToUpper(s)
		for {
			next[key]++
			suffix := strconv.Itoa(next[key])
			cand := s[:min(len(s), dbfNameLen-len(suffix))] + suffix
			if !used[strings.ToUpper(cand)] {
				out[i] = cand
				used[strings.ToUpper(cand)] = true
				break
			}
		}
	}
	return out
}
