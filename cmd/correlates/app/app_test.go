package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/gaitlab/neurogait/internal/experiment"
)

func stateRow(subject, condition, run string) experiment.TrialEvents {
	events := experiment.NewEventMap()
	events["gait"] = []experiment.Window{{Start: 0, End: 1}}
	return experiment.TrialEvents{
		Key:    experiment.TrialKey{Date: "230412", Subject: subject, Condition: condition, Run: run},
		Events: events,
	}
}

func TestSummarizeStatesLogsInFixedOrder(t *testing.T) {
	table := experiment.EventsTable{
		stateRow("c1", "beta", "1"),
		stateRow("c1", "alpha", "1"),
		stateRow("t1", "beta", "1"),
		stateRow("t1", "alpha", "1"),
	}

	// Output order must not depend on map iteration: test group first,
	// then control, conditions sorted within each.
	want := []struct{ group, condition string }{
		{"test", "alpha"},
		{"test", "beta"},
		{"control", "alpha"},
		{"control", "beta"},
	}

	for run := 0; run < 5; run++ {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))

		summarizeStates(logger, table, []string{"t1"})

		var got []string
		for _, line := range strings.Split(buf.String(), "\n") {
			if strings.Contains(line, "state distribution") {
				got = append(got, line)
			}
		}
		if len(got) != len(want) {
			t.Fatalf("expected %d summary lines, got %d:\n%s", len(want), len(got), buf.String())
		}
		for i, w := range want {
			if !strings.Contains(got[i], "group="+w.group) || !strings.Contains(got[i], "condition="+w.condition) {
				t.Errorf("line %d: expected group %s condition %s, got %q", i, w.group, w.condition, got[i])
			}
		}
	}
}
