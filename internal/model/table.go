package model

import "github.com/rotisserie/eris"

// FeatureColumn is one derived numeric value per target row.
type FeatureColumn struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// FeatureTable pairs target rows with the feature columns computed for them.
// Geometry is either the target points or the fishnet cell centers.
type FeatureTable struct {
	CRS     string          `json:"crs,omitempty"`
	IDs     []string        `json:"ids"`
	Points  []Point         `json:"points"`
	Columns []FeatureColumn `json:"columns"`
}

// NewFeatureTable starts a table keyed by the rows of targets.
func NewFeatureTable(targets PointSet) *FeatureTable {
	ids := make([]string, targets.Len())
	for i := range ids {
		ids[i] = targets.ID(i)
	}
	pts := make([]Point, targets.Len())
	copy(pts, targets.Points)
	return &FeatureTable{CRS: targets.CRS, IDs: ids, Points: pts}
}

// Rows returns the number of rows in the table.
func (t *FeatureTable) Rows() int { return len(t.IDs) }

// Add appends a column, rejecting length mismatches and duplicate names.
func (t *FeatureTable) Add(col FeatureColumn) error {
	if len(col.Values) != t.Rows() {
		return eris.Errorf("model: column %s has %d values for %d rows", col.Name, len(col.Values), t.Rows())
	}
	for _, c := range t.Columns {
		if c.Name == col.Name {
			return eris.Errorf("model: duplicate column %s", col.Name)
		}
	}
	t.Columns = append(t.Columns, col)
	return nil
}

// Column returns the named column.
func (t *FeatureTable) Column(name string) (FeatureColumn, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return FeatureColumn{}, false
}

// Header returns the column names in table order.
func (t *FeatureTable) Header() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}
