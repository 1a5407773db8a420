package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/beanflow/beanflow/internal/classify"
	"github.com/beanflow/beanflow/internal/common"
	"github.com/beanflow/beanflow/internal/config"
	"github.com/beanflow/beanflow/internal/dedup"
	"github.com/beanflow/beanflow/internal/engine"
	"github.com/beanflow/beanflow/internal/hooks"
	"github.com/beanflow/beanflow/internal/importer"
	"github.com/beanflow/beanflow/internal/ledger"
	"github.com/beanflow/beanflow/internal/storage"
)

// app bundles the assembled pipeline for one command invocation.
type app struct {
	cfg     *config.Config
	engine  *engine.Engine
	store   *ledger.Store
	history storage.History
}

// Close releases the history database.
func (a *app) Close() error {
	return a.history.Close()
}

// buildApp loads the configuration and assembles the full pipeline: ledger
// store, history database, classifier and hook chain.
func buildApp() (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, common.NewUserError("invalid configuration", err)
	}

	store, err := ledger.Open(cfg.Ledger.File)
	if err != nil {
		return nil, common.NewUserError("failed to open ledger", err)
	}

	history, err := storage.NewSQLiteHistory(cfg.History.DB)
	if err != nil {
		return nil, common.NewUserError("failed to open history database", err)
	}

	classifier := classify.New(cfg.Classifier.ConfidenceFloor)

	// Sources without an explicit hook list run the default chain.
	sourcePipelines := make(map[string]*hooks.Pipeline)
	for _, source := range cfg.Sources {
		if len(source.Hooks) == 0 {
			continue
		}
		pipeline, err := hooks.BuildPipeline(source.Hooks, classifier)
		if err != nil {
			_ = history.Close()
			return nil, fmt.Errorf("source %s: %w", source.Name, err)
		}
		sourcePipelines[source.Name] = pipeline
	}

	eng, err := engine.New(engine.Params{
		Store:           store,
		Registry:        importer.DefaultRegistry(),
		Deduplicator:    dedup.New(cfg.Dedup.WindowDays),
		Pipeline:        hooks.NewPipeline(hooks.NewPredictionHook(classifier)),
		SourcePipelines: sourcePipelines,
		Classifier:      classifier,
		History:         history,
		SourceRe:        cfg.SourceRe(),
		CategoryRe:      cfg.CategoryRe(),
		FallbackFile:    cfg.Ledger.FallbackFile,
	})
	if err != nil {
		_ = history.Close()
		return nil, err
	}

	return &app{cfg: cfg, engine: eng, store: store, history: history}, nil
}

// importSource resolves a configured source by name.
func (a *app) importSource(name string) (importer.Source, error) {
	sourceCfg, ok := a.cfg.FindSource(name)
	if !ok {
		names := make([]string, 0, len(a.cfg.Sources))
		for _, s := range a.cfg.Sources {
			names = append(names, s.Name)
		}
		return importer.Source{}, fmt.Errorf("unknown source %q (configured: %v)", name, names)
	}
	return importer.Source{
		Name:     sourceCfg.Name,
		Format:   sourceCfg.Format,
		Account:  sourceCfg.Account,
		Currency: sourceCfg.Currency,
	}, nil
}
