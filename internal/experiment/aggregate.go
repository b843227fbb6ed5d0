package experiment

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gaitlab/neurogait/internal/stim"
)

// Event label files are named after the annotator with a short run number,
// e.g. "runway_02.csv".
var eventFilePattern = regexp.MustCompile(`(?i)^[a-z_-]+[0-9]{1,3}\.csv$`)

// SkippedTrial records one trial left out of a dataset and why.
type SkippedTrial struct {
	Key    TrialKey
	Reason error
}

// LoadReport summarizes one aggregation pass. Skipped trials are data, not
// just log lines: large multi-subject batches tolerate missing per-trial
// files, and the caller decides how loudly to report them.
type LoadReport struct {
	Loaded  []TrialKey
	Skipped []SkippedTrial
}

func (r *LoadReport) loaded(k TrialKey) {
	r.Loaded = append(r.Loaded, k)
}

func (r *LoadReport) skipped(k TrialKey, reason error) {
	r.Skipped = append(r.Skipped, SkippedTrial{Key: k, Reason: reason})
}

// TrialEvents is one row of the events dataset: the trial key plus that
// run's labeled windows per event type.
type TrialEvents struct {
	Key    TrialKey
	Events EventMap
}

// EventsTable is the tabular events dataset, one row per loaded trial in
// structure order.
type EventsTable []TrialEvents

// Find returns the row for one trial key.
func (t EventsTable) Find(key TrialKey) (TrialEvents, bool) {
	for _, row := range t {
		if row.Key == key {
			return row, true
		}
	}
	return TrialEvents{}, false
}

// RawLoader loads the neural recording of one run directory, returning the
// channel of interest and its sampling rate. Implementations live in the
// importing layer; the core only consumes decoded arrays.
type RawLoader interface {
	Load(runPath string, subject string) (raw []float64, fs float64, err error)
}

// Aggregator walks the declared experiment structure and assembles the
// per-trial datasets.
type Aggregator struct {
	Structure      Structure
	SkipSubjects   []string
	SkipConditions []string

	// SkipRows is the number of header lines in event label files.
	SkipRows int
	// Framerate is the annotation framerate used to convert label frames
	// to seconds.
	Framerate float64
}

// runPath resolves the on-disk directory of one trial. Condition is part
// of the trial identity but not of the directory layout.
func runPath(root string, k TrialKey) string {
	return filepath.Join(root, k.Date, k.Subject, k.Run)
}

// BuildEventsTable loads the event label file of every declared trial
// under root. A trial whose run directory or label file is missing is
// skipped and reported, not fatal; a malformed label file aborts the pass.
func (a *Aggregator) BuildEventsTable(root string) (EventsTable, LoadReport, error) {
	var table EventsTable
	var report LoadReport

	for _, key := range a.Structure.Runs(a.SkipSubjects, a.SkipConditions) {
		dir := runPath(root, key)
		path, err := findEventFile(dir)
		if err != nil {
			report.skipped(key, err)
			continue
		}

		events, err := ReadEventLabels(path, a.SkipRows, a.Framerate)
		if err != nil {
			if os.IsNotExist(err) {
				report.skipped(key, err)
				continue
			}
			return nil, report, fmt.Errorf("trial %s: %w", key, err)
		}

		table = append(table, TrialEvents{Key: key, Events: events})
		report.loaded(key)
	}
	return table, report, nil
}

// findEventFile returns the first file in dir matching the event label
// naming convention.
func findEventFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if !e.IsDir() && eventFilePattern.MatchString(e.Name()) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("no event label file found in %s", dir)
}

// Correlates holds, per event type, the raw neural segments recorded
// during that event's labeled windows.
type Correlates map[string][][]float64

// BuildCorrelates joins the events table against the raw neural import,
// cutting each recording at the labeled windows. Every window is capped at
// timeslice seconds from its start. Trials present in the structure but
// absent from the events table, or whose recording cannot be loaded, are
// skipped and reported; the neural dataset legitimately covers fewer
// trials than the events dataset.
func (a *Aggregator) BuildCorrelates(root string, table EventsTable, loader RawLoader, timeslice float64) (Nested[Correlates], float64, LoadReport) {
	dataset := make(Nested[Correlates])
	var report LoadReport
	var fs float64

	for _, key := range a.Structure.Runs(a.SkipSubjects, a.SkipConditions) {
		row, ok := table.Find(key)
		if !ok {
			report.skipped(key, fmt.Errorf("trial %s has no events row", key))
			continue
		}

		raw, trialFS, err := loader.Load(runPath(root, key), key.Subject)
		if err != nil {
			report.skipped(key, fmt.Errorf("loading neural recording: %w", err))
			continue
		}
		if trialFS > 0 {
			fs = trialFS
		}

		dataset.Put(key, cutCorrelates(raw, trialFS, row.Events, timeslice))
		report.loaded(key)
	}
	return dataset, fs, report
}

// cutCorrelates extracts the raw samples of every labeled window, capped
// at timeslice seconds. Window starts round up and ends round down (T1/T2
// rule) so a segment never spills outside its label.
func cutCorrelates(raw []float64, fs float64, events EventMap, timeslice float64) Correlates {
	out := make(Correlates, len(events))
	for eventType, windows := range events {
		for _, w := range windows {
			end := w.End
			if timeslice > 0 && w.Start+timeslice < end {
				end = w.Start + timeslice
			}

			s := stim.TimeToSample(w.Start, fs, stim.RoundT1)
			e := stim.TimeToSample(end, fs, stim.RoundT2) + 1
			if s < 0 {
				s = 0
			}
			if e > len(raw) {
				e = len(raw)
			}
			if e <= s {
				continue
			}
			out[eventType] = append(out[eventType], raw[s:e])
		}
		if _, ok := out[eventType]; !ok {
			out[eventType] = nil
		}
	}
	return out
}
