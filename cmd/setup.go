package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/detect"
	"github.com/kozaktomas/face-gate/internal/embed"
	"github.com/kozaktomas/face-gate/internal/eventlog"
	"github.com/kozaktomas/face-gate/internal/facemodel"
	"github.com/kozaktomas/face-gate/internal/gallery"
	"github.com/kozaktomas/face-gate/internal/pipeline"
)

// app bundles the wired pipeline stages for a command invocation.
type app struct {
	config   *config.Config
	gallery  gallery.Store
	events   eventlog.Log
	detector *detect.Selector
	pipeline *pipeline.Pipeline
	enroller *pipeline.Enroller
}

// Close releases the backing stores. Safe to call once, last.
func (a *app) Close() {
	if err := a.events.Close(); err != nil {
		fmt.Printf("Warning: closing event log: %v\n", err)
	}
	if err := a.gallery.Close(); err != nil {
		fmt.Printf("Warning: closing gallery: %v\n", err)
	}
}

// openGallery selects the gallery backend from configuration. One-shot
// commands pass gallery.Strict so a corrupt store is an error; the server
// passes gallery.Lenient and starts with an empty gallery instead.
func openGallery(ctx context.Context, cfg *config.Config, policy gallery.LoadPolicy) (gallery.Store, error) {
	switch cfg.Gallery.Backend {
	case "file", "":
		return gallery.OpenFileStore(cfg.Gallery.Path, cfg.Recognition.DescriptorDim, policy)
	case "postgres":
		if cfg.Gallery.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required for the postgres gallery")
		}
		return gallery.OpenPostgresStore(ctx, cfg.Gallery.DatabaseURL,
			cfg.Recognition.DescriptorDim, cfg.Gallery.MaxOpenConns, cfg.Gallery.MaxIdleConns)
	default:
		return nil, fmt.Errorf("unknown gallery backend %q", cfg.Gallery.Backend)
	}
}

// openEventLog selects the audit log backend from configuration.
func openEventLog(ctx context.Context, cfg *config.Config) (eventlog.Log, error) {
	switch cfg.EventLog.Backend {
	case "memory", "":
		return eventlog.NewMemory(cfg.EventLog.MaxEvents), nil
	case "sqlite":
		return eventlog.OpenSQLite(ctx, cfg.EventLog.Path)
	case "postgres":
		if cfg.EventLog.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required for the postgres event log")
		}
		return eventlog.OpenPostgres(ctx, cfg.EventLog.DatabaseURL,
			cfg.Gallery.MaxOpenConns, cfg.Gallery.MaxIdleConns)
	case "mariadb":
		if cfg.EventLog.MariaDSN == "" {
			return nil, fmt.Errorf("MARIADB_DSN environment variable is required for the mariadb event log")
		}
		return eventlog.OpenMariaDB(ctx, cfg.EventLog.MariaDSN,
			cfg.Gallery.MaxOpenConns, cfg.Gallery.MaxIdleConns)
	default:
		return nil, fmt.Errorf("unknown event log backend %q", cfg.EventLog.Backend)
	}
}

// buildDetector wires both detector backends. The fast backend is optional:
// without a cascade file only the precise mode is available.
func buildDetector(cfg *config.Config, client *facemodel.Client) (*detect.Selector, error) {
	precise := detect.NewRemoteDetector(client)

	var fast detect.Detector
	if cfg.Detector.CascadePath != "" {
		d, err := detect.NewFastDetector(cfg.Detector.CascadePath, detect.FastOptions{
			MinFaceSize:      cfg.Detector.MinFaceSize,
			ShiftFactor:      cfg.Detector.ShiftFactor,
			ScaleFactor:      cfg.Detector.ScaleFactor,
			IoUThreshold:     cfg.Detector.IoUThreshold,
			QualityThreshold: cfg.Detector.QualityThreshold,
		})
		if err != nil {
			return nil, fmt.Errorf("loading face cascade from %s: %w", cfg.Detector.CascadePath, err)
		}
		fast = d
	}

	return detect.NewSelector(precise, fast), nil
}

// setupApp wires the full pipeline from configuration.
func setupApp(ctx context.Context, cfg *config.Config, policy gallery.LoadPolicy) (*app, error) {
	store, err := openGallery(ctx, cfg, policy)
	if err != nil {
		return nil, fmt.Errorf("opening gallery: %w", err)
	}

	events, err := openEventLog(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening event log: %w", err)
	}

	client := facemodel.New(cfg.Model.URL)
	detector, err := buildDetector(cfg, client)
	if err != nil {
		events.Close()
		store.Close()
		return nil, err
	}

	extractor := embed.NewRemote(client, cfg.Recognition.DescriptorDim, cfg.Recognition.InputSize)

	return &app{
		config:   cfg,
		gallery:  store,
		events:   events,
		detector: detector,
		pipeline: pipeline.New(detector, extractor, store, events, cfg.Recognition.Threshold),
		enroller: pipeline.NewEnroller(detector, extractor, store),
	}, nil
}
