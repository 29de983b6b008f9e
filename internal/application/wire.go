// Package application assembles the importer from configuration: the
// document library, schema provider, version store, notifier, metrics and
// the core service that drives them. Both the HTTP server and the CLI
// build their service here.
package application

import (
	"fmt"

	"github.com/JonMunkholm/recimport/internal/config"
	"github.com/JonMunkholm/recimport/internal/core"
	"github.com/JonMunkholm/recimport/internal/library"
	"github.com/JonMunkholm/recimport/internal/logging"
	"github.com/JonMunkholm/recimport/internal/metrics"
	"github.com/JonMunkholm/recimport/internal/notify"
	"github.com/JonMunkholm/recimport/internal/schema"
	"github.com/JonMunkholm/recimport/internal/schemasource"
	"github.com/JonMunkholm/recimport/internal/source"
)

// Mode selects which collaborators are wired.
type Mode int

const (
	// ModeServe wires the document library, the configured notifier and
	// metrics.
	ModeServe Mode = iota

	// ModeDryRun wires neither library nor notifier: files are validated
	// and emitted into the given store, nothing is moved or mailed.
	ModeDryRun
)

// App is a wired importer.
type App struct {
	Config  *config.Config
	Service *core.Service
	Folder  *library.Folder   // nil in ModeDryRun
	Metrics *metrics.Recorder // nil when metrics are disabled or in ModeDryRun
}

// Build wires an App around store.
func Build(cfg *config.Config, store core.VersionStore, mode Mode) (*App, error) {
	app := &App{Config: cfg}

	schemas, err := schemasource.New(schemasource.Config{
		Source:   cfg.Schema.Source,
		Path:     cfg.Schema.Path,
		URL:      cfg.Schema.URL,
		Token:    cfg.Schema.Token,
		Timeout:  cfg.Schema.Timeout,
		RetryMax: cfg.Schema.RetryMax,
	})
	if err != nil {
		return nil, fmt.Errorf("schema provider: %w", err)
	}

	var recorder core.Recorder = core.NopRecorder{}
	if mode == ModeServe && cfg.Metrics.Enabled {
		app.Metrics = metrics.New()
		recorder = app.Metrics
	}

	events := logging.NewEventLogger(nil)
	engine := core.NewEngine(store, nil)
	processor := core.NewFileProcessor(core.ProcessorConfig{
		Mapping:  schema.RecordColumnMapping,
		Fixed:    schema.RecordFieldSpecs,
		Engine:   engine,
		Events:   events,
		Recorder: recorder,
	})

	svcCfg := core.ServiceConfig{
		Reader:             source.Read,
		Schemas:            schemas,
		Processor:          processor,
		Engine:             engine,
		Events:             events,
		Recorder:           recorder,
		Limiter:            core.NewImportLimiter(cfg.Import.MaxConcurrentFiles, cfg.Import.MaxWaitTime),
		MaxConcurrentFiles: cfg.Import.MaxConcurrentFiles,
		MaxFileSize:        cfg.Import.MaxFileSize,
		DefaultAuthor:      cfg.Import.DefaultAuthor,
	}

	if mode == ModeServe {
		folder, err := library.NewFolder(library.FolderConfig{
			InputDir:    cfg.Import.InputDir,
			ImportedDir: cfg.Import.ImportedDir,
			BrokenDir:   cfg.Import.BrokenDir,
			Accept:      source.Supported,
		})
		if err != nil {
			return nil, fmt.Errorf("document library: %w", err)
		}
		app.Folder = folder
		svcCfg.Library = folder

		notifier, err := buildNotifier(cfg.Notify)
		if err != nil {
			return nil, fmt.Errorf("notifier: %w", err)
		}
		svcCfg.Notifier = notifier
	}

	app.Service, err = core.NewService(svcCfg)
	if err != nil {
		return nil, err
	}
	if app.Metrics != nil {
		app.Metrics.TrackLimiter(app.Service.Limiter())
	}
	return app, nil
}

func buildNotifier(cfg config.NotifyConfig) (core.Notifier, error) {
	if !cfg.Enabled {
		return notify.NewLog(nil), nil
	}
	return notify.NewSMTP(notify.SMTPConfig{
		Host:       cfg.SMTPHost,
		Port:       cfg.SMTPPort,
		Username:   cfg.SMTPUsername,
		Password:   cfg.SMTPPassword,
		From:       cfg.From,
		FallbackTo: cfg.FallbackTo,
	})
}
