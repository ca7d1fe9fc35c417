package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/spatial-features/internal/diagnostics"
	"github.com/sells-group/spatial-features/internal/model"
	"github.com/sells-group/spatial-features/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// recordRun runs fn inside a run-history entry of the given kind. History
// failures are logged and never fail the command itself.
func recordRun(ctx context.Context, kind string, params map[string]any, fn func() (*model.FeatureTable, error)) error {
	if cfg.Store.Disabled {
		_, err := fn()
		return err
	}

	log := zap.L().With(zap.String("component", "runs"), zap.String("kind", kind))

	st, err := initStore(ctx)
	if err != nil {
		log.Warn("run history unavailable", zap.Error(err))
		_, err := fn()
		return err
	}
	defer st.Close() //nolint:errcheck

	run, err := st.CreateRun(ctx, kind, params)
	if err != nil {
		log.Warn("create run failed", zap.Error(err))
		_, err := fn()
		return err
	}

	t, runErr := fn()
	if runErr != nil {
		// The command may have been cancelled; record the failure regardless.
		if err := st.FailRun(context.WithoutCancel(ctx), run.ID, runErr); err != nil {
			log.Warn("record run failure", zap.String("run_id", run.ID), zap.Error(err))
		}
		return runErr
	}

	if err := st.CompleteRun(ctx, run.ID, t.Rows(), diagnostics.SummarizeTable(t)); err != nil {
		log.Warn("record run completion", zap.String("run_id", run.ID), zap.Error(err))
	}
	log.Info("run recorded", zap.String("run_id", run.ID), zap.Int("rows", t.Rows()))
	return nil
}
