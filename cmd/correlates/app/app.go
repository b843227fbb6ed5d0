// Package app wires the gait-state and neural-correlates pipeline: it
// loads the experiment structure, builds the events, raw-neural and
// power-spectra datasets, persists them and logs a group summary of the
// state distribution.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/gaitlab/neurogait/internal/experiment"
	"github.com/gaitlab/neurogait/internal/states"
	"github.com/gaitlab/neurogait/internal/storage"
)

const storageDir = "data"

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	structure, err := experiment.LoadStructure(config.Experiment.StructurePath)
	if err != nil {
		return fmt.Errorf("failed to load experiment structure: %w", err)
	}

	store, err := createStorage(&config.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	defer store.Close()

	session := &experiment.Session{
		Aggregator: &experiment.Aggregator{
			Structure:      structure,
			SkipSubjects:   config.Experiment.SkipSubjects,
			SkipConditions: config.Experiment.SkipConditions,
			SkipRows:       config.Experiment.SkipRows,
			Framerate:      config.Experiment.Framerate,
		},
		Root:      config.Experiment.DataRoot,
		Timeslice: config.Experiment.Timeslice,
	}

	sessionID, err := store.CreateSession(ctx, config.Experiment.StructurePath, config)
	if err != nil {
		return fmt.Errorf("failed to record analysis session: %w", err)
	}
	logger.Info("analysis session created", slog.Int64("session", sessionID))

	report, err := session.CreateEventsDataset()
	if err != nil {
		return fmt.Errorf("failed to build events dataset: %w", err)
	}
	logSkipped(logger, "events", report)
	logger.Info("events dataset built",
		slog.String("trials", humanize.Comma(int64(len(report.Loaded)))))

	if err = store.SaveEvents(ctx, sessionID, session.Events); err != nil {
		return fmt.Errorf("failed to persist events dataset: %w", err)
	}

	if err = ctx.Err(); err != nil {
		return err
	}

	loader := &csvLoader{
		file:    config.Neural.File,
		fs:      config.Neural.SamplingRate,
		channel: config.Neural.Channel,
	}
	report, err = session.CreateRawDataset(loader)
	if err != nil {
		return fmt.Errorf("failed to build raw neural dataset: %w", err)
	}
	logSkipped(logger, "neural", report)
	logger.Info("raw neural dataset built",
		slog.String("trials", humanize.Comma(int64(len(report.Loaded)))),
		slog.Float64("fs", session.FS))

	if err = ctx.Err(); err != nil {
		return err
	}

	if err = session.CreatePSDDataset(config.Spectral.SegmentLength, config.Spectral.Overlap, config.Spectral.ZScore); err != nil {
		return fmt.Errorf("failed to build power spectra dataset: %w", err)
	}
	logger.Info("power spectra dataset built",
		slog.Int("bins", len(session.Freqs)))

	if err = store.SaveSpectra(ctx, sessionID, session.PSDs, session.Freqs); err != nil {
		return fmt.Errorf("failed to persist power spectra: %w", err)
	}

	summarizeStates(logger, session.Events, config.States.TestSubjects)
	return nil
}

func logSkipped(logger *slog.Logger, dataset string, report experiment.LoadReport) {
	for _, skipped := range report.Skipped {
		logger.Warn("trial skipped",
			slog.String("dataset", dataset),
			slog.String("trial", skipped.Key.String()),
			slog.String("reason", skipped.Reason.Error()))
	}
}

func summarizeStates(logger *slog.Logger, table experiment.EventsTable, testSubjects []string) {
	percentages := states.EventsPercentage(table, states.DefaultCondense)
	test, control := states.SplitGroups(percentages, testSubjects)

	groups := []struct {
		name    string
		samples states.GroupSamples
	}{
		{"test", test},
		{"control", control},
	}
	for _, g := range groups {
		summary, err := states.SummarizeGroups(g.samples)
		if err != nil {
			logger.Warn("state summary failed", slog.String("group", g.name), slog.String("reason", err.Error()))
			continue
		}
		conditions := make([]string, 0, len(summary))
		for condition := range summary {
			conditions = append(conditions, condition)
		}
		sort.Strings(conditions)
		for _, condition := range conditions {
			for _, category := range states.Categories {
				stats, ok := summary[condition][category]
				if !ok {
					continue
				}
				logger.Info("state distribution",
					slog.String("group", g.name),
					slog.String("condition", condition),
					slog.String("state", category),
					slog.Float64("mean", stats.Mean),
					slog.Float64("upper", stats.Upper),
					slog.Float64("lower", stats.Lower))
			}
		}
	}
}

func createStorage(config *StorageConfig) (*storage.Store, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current working directory: %w", err)
	}

	dbPath := filepath.Join(wd, storageDir)
	if config.DataDirectory != "" {
		dbPath = filepath.Join(wd, config.DataDirectory)
	}

	stat, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage directory '%s' does not exist: %w", dbPath, err)
		}
		return nil, fmt.Errorf("inspecting storage directory '%s': %w", dbPath, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dbPath)
	}

	dbPath = filepath.Join(dbPath, fmt.Sprintf("correlates_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.NewStore(dbPath), nil
}
