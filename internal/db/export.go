package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/spatial-features/internal/geoio"
	"github.com/sells-group/spatial-features/internal/model"
)

// Mode selects how an export treats rows already in the target table.
type Mode string

// Export modes.
const (
	ModeAppend  Mode = "append"
	ModeReplace Mode = "replace"
	ModeUpsert  Mode = "upsert"
)

// ParseMode validates an export mode name; empty means append.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case "", ModeAppend:
		return ModeAppend, nil
	case ModeReplace, ModeUpsert:
		return m, nil
	}
	return "", eris.Errorf("db: unknown export mode %q", s)
}

// table describes one export target.
type table struct {
	name     string
	key      string
	geomType string
	columns  []string // all columns in COPY order
	ddl      []string // column definitions
	rows     [][]any
}

// ExportFeatures writes t to a PostGIS table keyed by fid (row position,
// from 1) with the target id, a point geometry and one double precision
// column per feature. The table is created when missing.
func ExportFeatures(ctx context.Context, pool Pool, name string, t *model.FeatureTable, mode Mode) (int64, error) {
	srid := model.SRID(t.CRS)
	tbl := table{
		name:     name,
		key:      "fid",
		geomType: fmt.Sprintf("geometry(Point, %d)", srid),
		columns:  append([]string{"fid", "id", "geom"}, t.Header()...),
		ddl:      []string{"fid integer PRIMARY KEY", "id text"},
	}
	tbl.ddl = append(tbl.ddl, "geom "+tbl.geomType)
	for _, c := range t.Columns {
		tbl.ddl = append(tbl.ddl, pgx.Identifier{c.Name}.Sanitize()+" double precision")
	}

	for i := range t.Rows() {
		wkb, err := geoio.EncodePoint(t.Points[i], srid)
		if err != nil {
			return 0, err
		}
		row := []any{i + 1, t.IDs[i], wkb}
		for _, c := range t.Columns {
			row = append(row, c.Values[i])
		}
		tbl.rows = append(tbl.rows, row)
	}
	return export(ctx, pool, tbl, mode)
}

// ExportFishnet writes the cells of net keyed by cell_id with their square
// geometry and the given per-cell columns.
func ExportFishnet(ctx context.Context, pool Pool, name string, net *model.Fishnet, cols []model.FeatureColumn, mode Mode) (int64, error) {
	srid := model.SRID(net.CRS)
	tbl := table{
		name:     name,
		key:      "cell_id",
		geomType: fmt.Sprintf("geometry(Polygon, %d)", srid),
		columns:  []string{"cell_id", "row", "col", "geom"},
		ddl:      []string{"cell_id integer PRIMARY KEY", `"row" integer NOT NULL`, `"col" integer NOT NULL`},
	}
	tbl.ddl = append(tbl.ddl, "geom "+tbl.geomType)
	for _, c := range cols {
		if len(c.Values) != net.Len() {
			return 0, eris.Errorf("db: column %s has %d values for %d cells", c.Name, len(c.Values), net.Len())
		}
		tbl.columns = append(tbl.columns, c.Name)
		tbl.ddl = append(tbl.ddl, pgx.Identifier{c.Name}.Sanitize()+" double precision")
	}

	for i, cell := range net.Cells {
		wkb, err := geoio.EncodeCell(cell, srid)
		if err != nil {
			return 0, err
		}
		row := []any{cell.ID, cell.Row, cell.Col, wkb}
		for _, c := range cols {
			row = append(row, c.Values[i])
		}
		tbl.rows = append(tbl.rows, row)
	}
	return export(ctx, pool, tbl, mode)
}

// exportRetry governs retries of a whole export transaction. A failed
// attempt is rolled back, so every mode is safe to repeat.
var exportRetry = DefaultRetryConfig()

func export(ctx context.Context, pool Pool, tbl table, mode Mode) (int64, error) {
	var n int64
	err := retry(ctx, exportRetry, "export "+tbl.name, func(ctx context.Context) error {
		var err error
		n, err = exportOnce(ctx, pool, tbl, mode)
		return err
	})
	return n, err
}

func exportOnce(ctx context.Context, pool Pool, tbl table, mode Mode) (int64, error) {
	log := zap.L().With(zap.String("component", "db.export"), zap.String("table", tbl.name))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	target := identifier(tbl.name).Sanitize()
	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", target, strings.Join(tbl.ddl, ", "))
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "db: create table %s", tbl.name)
	}

	var n int64
	switch mode {
	case ModeUpsert:
		n, err = upsert(ctx, tx, tbl)
	case ModeReplace:
		if _, err = tx.Exec(ctx, "TRUNCATE "+target); err != nil {
			return 0, eris.Wrapf(err, "db: truncate %s", tbl.name)
		}
		n, err = CopyFrom(ctx, tx, tbl.name, tbl.columns, tbl.rows)
	default:
		n, err = CopyFrom(ctx, tx, tbl.name, tbl.columns, tbl.rows)
	}
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: commit tx")
	}
	log.Info("exported rows", zap.String("mode", string(mode)), zap.Int64("rows", n))
	return n, nil
}

// upsert stages rows in a temp table and merges them on the key column.
func upsert(ctx context.Context, tx pgx.Tx, tbl table) (int64, error) {
	if len(tbl.rows) == 0 {
		return 0, nil
	}
	temp := "_tmp_" + strings.ReplaceAll(tbl.name, ".", "_")
	tempID := pgx.Identifier{temp}.Sanitize()
	target := identifier(tbl.name).Sanitize()

	createSQL := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP", tempID, target)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: create temp table for %s", tbl.name)
	}
	if _, err := CopyFrom(ctx, tx, temp, tbl.columns, tbl.rows); err != nil {
		return 0, err
	}

	var sets []string
	for _, c := range tbl.columns {
		if c == tbl.key {
			continue
		}
		col := pgx.Identifier{c}.Sanitize()
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	cols := quoteAndJoin(tbl.columns)
	upsertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s",
		target, cols, cols, tempID, pgx.Identifier{tbl.key}.Sanitize(), strings.Join(sets, ", "),
	)
	tag, err := tx.Exec(ctx, upsertSQL)
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: merge into %s", tbl.name)
	}
	return tag.RowsAffected(), nil
}
