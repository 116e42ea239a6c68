package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ZaguanLabs/transctl"
	"github.com/ZaguanLabs/transctl/cache"
	"github.com/ZaguanLabs/transctl/config"
	"github.com/ZaguanLabs/transctl/manifest"
	"github.com/ZaguanLabs/transctl/processor"
	"github.com/ZaguanLabs/transctl/protect"
	"github.com/ZaguanLabs/transctl/provider"
)

// project is a loaded configuration with its translation memory and
// manifest opened.
type project struct {
	cfg      *config.Config
	store    cache.Store
	manifest *manifest.Manifest
}

func (a *app) loadConfig() (*config.Config, error) {
	path := a.configPath
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		if path, err = config.Find(wd); err != nil {
			return nil, err
		}
	}
	return config.Load(path)
}

func (a *app) openProject() (*project, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	a.logger.Debug("configuration loaded", "path", cfg.Path(), "engine", cfg.Engine.Provider, "targets", cfg.Targets())

	var store cache.Store
	if a.ephemeral {
		store = cache.NewMemoryStore()
	} else {
		s, err := cache.Open(cfg.StorePath())
		if err != nil {
			return nil, err
		}
		store = s
	}

	m, err := manifest.Load(cfg.WorkDir(), manifest.WithLogger(a.logger))
	if err != nil {
		store.Close()
		return nil, err
	}

	return &project{cfg: cfg, store: store, manifest: m}, nil
}

func (p *project) Close() error {
	return p.store.Close()
}

// newProvider creates the configured engine wrapped with the retry and rate
// limit policies of the [engine] section.
func (a *app) newProvider(ctx context.Context, cfg *config.Config) (provider.Provider, transctl.Translator, error) {
	prov, err := provider.New(ctx, cfg.ProviderConfig())
	if err != nil {
		return nil, nil, err
	}

	var t transctl.Translator = prov
	if cfg.Engine.MaxRetries > 0 {
		rc := transctl.DefaultRetryConfig()
		rc.MaxRetries = cfg.Engine.MaxRetries
		t = transctl.NewRetryableTranslator(t, rc)
	}
	if cfg.Engine.RateLimit > 0 {
		t = transctl.NewRateLimitedTranslator(t, transctl.RateLimitConfig{RequestsPerMinute: cfg.Engine.RateLimit})
	}
	return prov, t, nil
}

func (a *app) newPipeline(p *project, translator transctl.Translator) (*transctl.Pipeline, error) {
	cfg := p.cfg

	protector, err := protect.ForEngine(cfg.Engine.Provider)
	if err != nil {
		return nil, err
	}
	patterns, err := cfg.Patterns()
	if err != nil {
		return nil, err
	}

	opts := []transctl.PipelineOption{
		transctl.WithMemory(p.store),
		transctl.WithManifest(p.manifest),
		transctl.WithPatterns(patterns...),
		transctl.WithLogger(a.logger),
	}
	for _, e := range processor.All() {
		opts = append(opts, transctl.WithExtractor(e))
	}

	glossaryPath := a.glossary
	if glossaryPath == "" {
		glossaryPath = cfg.GlossaryPath()
	}
	if glossaryPath != "" {
		g, err := config.LoadGlossary(glossaryPath)
		if err != nil {
			return nil, err
		}
		a.logger.Debug("glossary loaded", "path", glossaryPath, "terms", len(g))
		opts = append(opts, transctl.WithGlossary(g))
	}

	return transctl.NewPipeline(cfg.Locale.Source, cfg.Targets(), translator, protector, opts...), nil
}

// errNoTranslation backs the translator of commands that must never reach
// the engine.
var errNoTranslation = errors.New("translation is disabled for this command")

var offlineTranslator = transctl.TranslatorFunc(func(ctx context.Context, req transctl.TranslateRequest) (string, error) {
	return "", errNoTranslation
})

// translate runs the pipeline once over the configured resources and prunes
// afterwards when [prune] auto is set.
func (a *app) translate(ctx context.Context, p *project, force bool) (*transctl.RunResult, error) {
	prov, translator, err := a.newProvider(ctx, p.cfg)
	if err != nil {
		return nil, err
	}
	defer prov.Close()

	pl, err := a.newPipeline(p, translator)
	if err != nil {
		return nil, err
	}

	resources, err := p.cfg.Resources()
	if err != nil {
		return nil, err
	}
	if len(resources) == 0 {
		a.logger.Warn("no resources matched the configuration", "config", p.cfg.Path())
	}

	if force {
		if err := p.manifest.Purge(); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	result, err := pl.Run(ctx, resources)
	if err != nil {
		return result, err
	}
	totals := result.Totals()
	a.logger.Info("run finished",
		"files", len(result.Files),
		"written", len(totals.Written),
		"skipped", len(totals.Skipped),
		"translated", totals.TranslatedCount,
		"cached", totals.CachedCount,
		"failed", totals.FailedCount,
		"elapsed", time.Since(start).Round(time.Millisecond))

	if p.cfg.Prune.Auto {
		if _, err := a.prune(ctx, p.store, p.cfg.PrunePolicy()); err != nil {
			return result, fmt.Errorf("auto prune: %w", err)
		}
	}
	return result, nil
}
