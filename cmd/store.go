package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/kolscout/internal/registry"
	"github.com/sells-group/kolscout/internal/resolver"
	"github.com/sells-group/kolscout/internal/scoring"
	"github.com/sells-group/kolscout/internal/store"
)

// openStore opens the configured backend and applies migrations.
func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}

	var st store.Store
	var err error

	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func loadQuestions() (*registry.QuestionMap, error) {
	return registry.Load(cfg.Registry.QuestionMapPath)
}

func newResolver(st store.Store) *resolver.Resolver {
	return resolver.New(st, cfg.Matcher)
}

func newEngine(st store.Store) (*scoring.Engine, error) {
	questions, err := loadQuestions()
	if err != nil {
		return nil, err
	}
	agg := scoring.NewSurveyAggregator(st, questions, cfg.Scoring.PointsPerNomination)
	return scoring.NewEngine(st, agg), nil
}
