package states

import (
	"math"
	"testing"

	"github.com/gaitlab/neurogait/internal/experiment"
)

func eventsRow(subject, condition, run string, events experiment.EventMap) experiment.TrialEvents {
	return experiment.TrialEvents{
		Key:    experiment.TrialKey{Date: "230412", Subject: subject, Condition: condition, Run: run},
		Events: events,
	}
}

func TestCondenseFoldsCategories(t *testing.T) {
	events := experiment.EventMap{
		"gait":       {{Start: 0, End: 1}},
		"nlm_rest":   {{Start: 1, End: 2}},
		"nlm_active": {{Start: 2, End: 4}},
		"fog_rest":   nil,
		"fog_active": {{Start: 4, End: 5}},
	}

	c := Condense(events, DefaultCondense)
	if len(c["nlm"]) != 2 {
		t.Errorf("expected 2 nlm windows, got %d", len(c["nlm"]))
	}
	if len(c["fog"]) != 1 {
		t.Errorf("expected 1 fog window, got %d", len(c["fog"]))
	}
	if len(c["gait"]) != 1 {
		t.Errorf("expected 1 gait window, got %d", len(c["gait"]))
	}
}

func TestEventsPercentageSumsToOne(t *testing.T) {
	table := experiment.EventsTable{
		eventsRow("a", "baseline", "1", experiment.EventMap{
			"gait":     {{Start: 0, End: 2}},
			"nlm_rest": {{Start: 2, End: 3}},
		}),
		eventsRow("a", "baseline", "2", experiment.EventMap{
			"fog_active": {{Start: 0, End: 1}},
		}),
	}

	p := EventsPercentage(table, DefaultCondense)
	fractions := p["baseline"]["a"]

	if math.Abs(fractions["gait"]-0.5) > 1e-12 {
		t.Errorf("expected gait fraction 0.5, got %g", fractions["gait"])
	}
	if math.Abs(fractions["nlm"]-0.25) > 1e-12 {
		t.Errorf("expected nlm fraction 0.25, got %g", fractions["nlm"])
	}

	var sum float64
	for _, f := range fractions {
		sum += f
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("fractions should sum to 1, got %g", sum)
	}
}

func TestEventsPercentageUnlabeledSubject(t *testing.T) {
	table := experiment.EventsTable{
		eventsRow("a", "baseline", "1", experiment.NewEventMap()),
	}

	p := EventsPercentage(table, DefaultCondense)
	for category, f := range p["baseline"]["a"] {
		if f != 0 {
			t.Errorf("category %s: expected 0 for unlabeled subject, got %g", category, f)
		}
	}
}

func TestSplitGroupsDropsIdentities(t *testing.T) {
	p := Percentages{
		"baseline": {
			"a": {"gait": 0.5, "nlm": 0.5, "fog": 0},
			"b": {"gait": 0.3, "nlm": 0.3, "fog": 0.4},
			"c": {"gait": 0.1, "nlm": 0.1, "fog": 0.8},
		},
	}

	test, control := SplitGroups(p, []string{"b"})
	if got := len(test["baseline"]["gait"]); got != 1 {
		t.Fatalf("expected 1 test subject, got %d", got)
	}
	if test["baseline"]["gait"][0] != 0.3 {
		t.Errorf("expected test gait sample 0.3, got %g", test["baseline"]["gait"][0])
	}
	// Control subjects a and c, in sorted order.
	ctrl := control["baseline"]["fog"]
	if len(ctrl) != 2 || ctrl[0] != 0 || ctrl[1] != 0.8 {
		t.Errorf("expected control fog samples [0 0.8], got %v", ctrl)
	}
}

func TestSummarize(t *testing.T) {
	s, err := Summarize([]float64{2, 4, 6})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Mean != 4 {
		t.Errorf("expected mean 4, got %g", s.Mean)
	}
	// std = 2, sem = 2/sqrt(3)
	sem := 2 / math.Sqrt(3)
	if math.Abs(s.Upper-(4+1.96*sem)) > 1e-12 {
		t.Errorf("unexpected upper bound %g", s.Upper)
	}
	if math.Abs(s.Lower-(4-1.96*sem)) > 1e-12 {
		t.Errorf("unexpected lower bound %g", s.Lower)
	}
}

func TestSummarizeSingleObservation(t *testing.T) {
	s, err := Summarize([]float64{7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Mean != 7 || s.Upper != 7 || s.Lower != 7 {
		t.Errorf("single observation should collapse bounds onto the mean, got %+v", s)
	}

	if _, err := Summarize(nil); err == nil {
		t.Error("expected error for empty sample")
	}
}

func TestAverageSpectraPerSubject(t *testing.T) {
	psds := make(experiment.Nested[experiment.PSDMap])
	psds.Put(experiment.TrialKey{Date: "d", Subject: "a", Condition: "baseline", Run: "1"}, experiment.PSDMap{
		"gait":     [][]float64{{1, 2}, {3, 4}},
		"nlm_rest": [][]float64{{10, 10}},
	})
	psds.Put(experiment.TrialKey{Date: "d", Subject: "a", Condition: "baseline", Run: "2"}, experiment.PSDMap{
		"gait": [][]float64{{5, 6}},
	})

	s := AverageSpectra(psds, DefaultCondense)
	gait := s["baseline"]["a"]["gait"]
	if math.Abs(gait[0]-3) > 1e-12 || math.Abs(gait[1]-4) > 1e-12 {
		t.Errorf("expected mean gait spectrum [3 4], got %v", gait)
	}
	nlm := s["baseline"]["a"]["nlm"]
	if nlm[0] != 10 || nlm[1] != 10 {
		t.Errorf("expected nlm spectrum [10 10], got %v", nlm)
	}
	if _, ok := s["baseline"]["a"]["fog"]; ok {
		t.Error("subject without fog segments should have no fog entry")
	}
}

func TestSplitSpectraGroupsAndSummarize(t *testing.T) {
	s := SubjectSpectra{
		"baseline": {
			"a": {"gait": {1, 1}},
			"b": {"gait": {3, 5}},
			"c": {"gait": {2, 3}},
		},
	}

	test, control := SplitSpectraGroups(s, []string{"c"})
	if len(test["baseline"]["gait"]) != 1 {
		t.Fatalf("expected 1 test spectrum, got %d", len(test["baseline"]["gait"]))
	}
	ctrl := control["baseline"]["gait"]
	if len(ctrl) != 2 {
		t.Fatalf("expected 2 control spectra, got %d", len(ctrl))
	}

	stats, err := SummarizeSpectra(ctrl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Mean[0] != 2 || stats.Mean[1] != 3 {
		t.Errorf("expected mean curve [2 3], got %v", stats.Mean)
	}
	if !(stats.Upper[0] > stats.Mean[0]) || !(stats.Lower[0] < stats.Mean[0]) {
		t.Errorf("confidence band should bracket the mean, got %+v", stats)
	}

	if _, err := SummarizeSpectra([][]float64{{1, 2}, {1}}); err == nil {
		t.Error("expected error for mismatched bin counts")
	}
}
