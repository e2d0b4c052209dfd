package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/Aman-CERP/scry/internal/config"
	"github.com/Aman-CERP/scry/internal/oracle"
	"github.com/Aman-CERP/scry/internal/search"
	"github.com/Aman-CERP/scry/internal/store"
	"github.com/Aman-CERP/scry/internal/telemetry"
)

// app holds everything a command needs for one process.
type app struct {
	cfg     *config.Config
	engine  *search.Engine
	signals *store.SignalStore
	usage   *store.UsageStore

	metrics      *telemetry.QueryMetrics
	metricsStore *telemetry.SQLiteMetricsStore
	collector    *telemetry.Collector
}

// loadConfig finds the project root from dir and loads its configuration.
func loadConfig(dir string) (*config.Config, error) {
	root, err := config.FindProjectRoot(dir)
	if err != nil {
		root, _ = os.Getwd()
	}
	return config.Load(root)
}

// openApp opens every enabled source and store for the project containing
// dir. Missing stores leave their source unavailable rather than failing.
func openApp(dir string) (*app, error) {
	cfg, err := loadConfig(dir)
	if err != nil {
		return nil, err
	}

	registry, err := oracle.NewRegistry(openOracles(cfg)...)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	opts := []search.EngineOption{
		search.WithConfig(cfg.Search),
		search.WithClassifier(search.NewIntentClassifier(cfg.Classifier.CacheSize)),
	}

	if signals, err := store.OpenSignalStore(cfg.DataPath(cfg.Sources.Database), store.OpenExisting); err != nil {
		slog.Debug("structural signals unavailable", slog.String("error", err.Error()))
	} else {
		a.signals = signals
		opts = append(opts, search.WithAnnotations(signals), search.WithOrient(signals))
	}

	if usage, err := store.OpenUsageStore(cfg.DataPath(cfg.Sources.UsageDB), store.OpenCreate); err != nil {
		slog.Warn("usage store unavailable", slog.String("error", err.Error()))
	} else {
		a.usage = usage
		opts = append(opts, search.WithUsage(usage), search.WithQueryLog(usage))
	}

	if cfg.Telemetry.Enabled {
		if ms, err := telemetry.OpenSQLiteMetricsStore(cfg.DataPath(cfg.Telemetry.Path)); err != nil {
			slog.Warn("telemetry unavailable", slog.String("error", err.Error()))
		} else {
			a.metricsStore = ms
			a.collector = telemetry.NewCollector(nil)
			mcfg := telemetry.DefaultQueryMetricsConfig()
			mcfg.Collector = a.collector
			a.metrics = telemetry.NewQueryMetricsWithConfig(ms, mcfg)
			opts = append(opts, search.WithMetrics(a.metrics))
		}
	}

	engine, err := search.NewEngine(registry, opts...)
	if err != nil {
		_ = registry.Close()
		a.closeStores()
		return nil, err
	}
	a.engine = engine
	return a, nil
}

// openOracles opens each enabled source in registration order.
func openOracles(cfg *config.Config) []oracle.Oracle {
	var oracles []oracle.Oracle
	for _, name := range config.KnownSources {
		if !cfg.SourceEnabled(name) {
			slog.Debug("source disabled", slog.String("source", name))
			continue
		}
		switch name {
		case config.SourceSemantic:
			oracles = append(oracles, oracle.OpenSemantic(cfg))
		case config.SourceLexical:
			oracles = append(oracles, oracle.OpenLexical(cfg))
		case config.SourceTemporal:
			oracles = append(oracles, oracle.OpenTemporal(cfg))
		case config.SourcePersona:
			oracles = append(oracles, oracle.OpenPersona(cfg))
		}
	}
	return oracles
}

// searchContext bounds a command by the configured search timeout.
func (a *app) searchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, a.cfg.SearchTimeout())
}

func (a *app) closeStores() error {
	var errs []error
	if a.metrics != nil {
		errs = append(errs, a.metrics.Close())
	}
	if a.metricsStore != nil {
		errs = append(errs, a.metricsStore.Close())
	}
	if a.usage != nil {
		errs = append(errs, a.usage.Close())
	}
	if a.signals != nil {
		errs = append(errs, a.signals.Close())
	}
	return errors.Join(errs...)
}

// Close releases the engine and every store.
func (a *app) Close() error {
	var errs []error
	if a.engine != nil {
		errs = append(errs, a.engine.Close())
	}
	errs = append(errs, a.closeStores())
	return errors.Join(errs...)
}
