package experiment

import (
	"errors"
	"fmt"

	"github.com/gaitlab/neurogait/internal/spectral"
)

// PSDMap holds, per event type, one power spectral density vector per
// neural segment of that event.
type PSDMap map[string][][]float64

// PSDDataset converts the raw neural dataset into per-segment Welch power
// spectra. All segments share one frequency axis; when zscore is set each
// spectrum is standardized to zero mean and unit variance. Segments
// shorter than two samples produce no spectrum.
func PSDDataset(data Nested[Correlates], fs float64, nperseg, noverlap int, zscore bool) (Nested[PSDMap], []float64, error) {
	out := make(Nested[PSDMap])
	var freqs []float64
	var firstErr error

	data.Walk(func(k TrialKey, correlates Correlates) {
		if firstErr != nil {
			return
		}

		psds := make(PSDMap, len(correlates))
		for eventType, segments := range correlates {
			psds[eventType] = nil
			for _, seg := range segments {
				if len(seg) < 2 {
					continue
				}
				psd, err := spectral.Welch(seg, fs, nperseg, noverlap)
				if err != nil {
					firstErr = fmt.Errorf("trial %s event %s: %w", k, eventType, err)
					return
				}
				if freqs == nil {
					freqs = psd.Freqs
				}
				power := psd.Power
				if zscore {
					power = spectral.ZScore(power)
				}
				psds[eventType] = append(psds[eventType], power)
			}
		}
		out.Put(k, psds)
	})

	if firstErr != nil {
		return nil, nil, firstErr
	}
	return out, freqs, nil
}

// Dataset names accepted by Session.Dataset.
const (
	EventsDatasetName = "events_dataset"
	RawDatasetName    = "raw_neural_correlates_dataset"
	PSDDatasetName    = "psd_neural_correlates_dataset"
)

var datasetNames = []string{EventsDatasetName, RawDatasetName, PSDDatasetName}

// Session owns the datasets of one analysis run. Datasets build on each
// other: events first, then raw neural correlates, then power spectra.
type Session struct {
	Aggregator *Aggregator
	Root       string

	// Timeslice caps every event window at this many seconds from its
	// start. Zero means no cap.
	Timeslice float64

	Events EventsTable
	Raw    Nested[Correlates]
	PSDs   Nested[PSDMap]
	FS     float64
	Freqs  []float64
}

// CreateEventsDataset loads the events dataset for every declared trial.
func (s *Session) CreateEventsDataset() (LoadReport, error) {
	table, report, err := s.Aggregator.BuildEventsTable(s.Root)
	if err != nil {
		return report, err
	}
	s.Events = table
	return report, nil
}

// CreateRawDataset cuts the neural recordings at the labeled event
// windows. The events dataset must exist first.
func (s *Session) CreateRawDataset(loader RawLoader) (LoadReport, error) {
	if s.Events == nil {
		return LoadReport{}, errors.New("events dataset missing: create it before the raw neural dataset")
	}
	raw, fs, report := s.Aggregator.BuildCorrelates(s.Root, s.Events, loader, s.Timeslice)
	s.Raw = raw
	s.FS = fs
	return report, nil
}

// CreatePSDDataset converts the raw neural dataset to power spectra. The
// raw dataset must exist first.
func (s *Session) CreatePSDDataset(nperseg, noverlap int, zscore bool) error {
	if s.Raw == nil {
		return errors.New("raw neural dataset missing: create it before the power spectra dataset")
	}
	psds, freqs, err := PSDDataset(s.Raw, s.FS, nperseg, noverlap, zscore)
	if err != nil {
		return err
	}
	s.PSDs = psds
	s.Freqs = freqs
	return nil
}

// Dataset returns a dataset by name, validating the name against the
// accepted set and that the dataset was created.
func (s *Session) Dataset(name string) (any, error) {
	switch name {
	case EventsDatasetName:
		if s.Events == nil {
			return nil, fmt.Errorf("dataset %q not created yet", name)
		}
		return s.Events, nil
	case RawDatasetName:
		if s.Raw == nil {
			return nil, fmt.Errorf("dataset %q not created yet", name)
		}
		return s.Raw, nil
	case PSDDatasetName:
		if s.PSDs == nil {
			return nil, fmt.Errorf("dataset %q not created yet", name)
		}
		return s.PSDs, nil
	default:
		return nil, fmt.Errorf("unknown dataset %q, accepted names: %v", name, datasetNames)
	}
}
