package geoio

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/spatial-features/internal/diagnostics"
	"github.com/sells-group/spatial-features/internal/model"
)

// XLSXOptions configures the XLSX writer.
type XLSXOptions struct {
	SheetName string // default "features"
	Summaries []diagnostics.Summary
}

// WriteFeaturesXLSX saves t to path as a workbook with one row per target.
// When summaries are given they go to a second "summary" sheet.
func WriteFeaturesXLSX(path string, t *model.FeatureTable, opts XLSXOptions) error {
	if opts.SheetName == "" {
		opts.SheetName = "features"
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(opts.SheetName)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	addStrings(sheet.AddRow(), append([]string{"id", "x", "y"}, t.Header()...))
	for i := range t.Rows() {
		row := sheet.AddRow()
		row.AddCell().SetString(t.IDs[i])
		row.AddCell().SetFloat(t.Points[i].X)
		row.AddCell().SetFloat(t.Points[i].Y)
		for _, c := range t.Columns {
			row.AddCell().SetFloat(c.Values[i])
		}
	}

	if len(opts.Summaries) > 0 {
		sum, err := f.AddSheet("summary")
		if err != nil {
			return eris.Wrap(err, "xlsx: add summary sheet")
		}
		addStrings(sum.AddRow(), []string{"name", "count", "mean", "std_dev", "min", "max"})
		for _, s := range opts.Summaries {
			row := sum.AddRow()
			row.AddCell().SetString(s.Name)
			row.AddCell().SetInt(s.Count)
			row.AddCell().SetFloat(s.Mean)
			row.AddCell().SetFloat(s.StdDev)
			row.AddCell().SetFloat(s.Min)
			row.AddCell().SetFloat(s.Max)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

func addStrings(row *xlsx.Row, vals []string) {
	for _, v := range vals {
		row.AddCell().SetString(v)
	}
}
