package experiment

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Behavioral state labels recorded by the event annotator. Order is the
// column order of the events dataset.
var EventTypes = []string{
	"gait",
	"nlm_rest",
	"nlm_active",
	"fog_rest",
	"fog_active",
}

// Window is one labeled event interval in seconds.
type Window struct {
	Start float64
	End   float64
}

// Duration returns the window length in seconds.
func (w Window) Duration() float64 { return w.End - w.Start }

// EventMap holds the labeled windows of one run, keyed by event type.
// Every known event type is present, possibly with no windows.
type EventMap map[string][]Window

// NewEventMap returns an EventMap with every known event type initialized.
func NewEventMap() EventMap {
	m := make(EventMap, len(EventTypes))
	for _, t := range EventTypes {
		m[t] = nil
	}
	return m
}

// ReadEventLabels parses a per-run event label file: CSV rows of
// (label, start frame, end frame) after skipRows header lines. Frames are
// converted to seconds at the annotation framerate. An unknown label is a
// validation error listing the accepted event types.
func ReadEventLabels(path string, skipRows int, framerate float64) (EventMap, error) {
	if framerate <= 0 {
		return nil, fmt.Errorf("framerate must be positive, got %g", framerate)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	events := NewEventMap()
	row := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		row++
		if row <= skipRows {
			continue
		}
		if len(record) < 3 {
			return nil, fmt.Errorf("%s row %d: expected label, start frame, end frame", path, row)
		}

		label := record[0]
		if _, ok := events[label]; !ok {
			return nil, fmt.Errorf("%s row %d: unknown event label %q, accepted labels: %v", path, row, label, EventTypes)
		}

		start, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad start frame: %w", path, row, err)
		}
		end, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad end frame: %w", path, row, err)
		}
		if end < start {
			return nil, fmt.Errorf("%s row %d: event ends (%g) before it starts (%g)", path, row, end, start)
		}

		events[label] = append(events[label], Window{
			Start: start / framerate,
			End:   end / framerate,
		})
	}
	return events, nil
}
