// Package experiment walks a declared experiment structure (dates x
// subjects x conditions x runs), loads per-trial event labels and neural
// recordings with skip-and-continue tolerance, and aggregates them into
// nested datasets keyed condition, date, subject, run.
package experiment

import (
	"fmt"
	"os"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"
)

// TrialKey uniquely identifies one experimental trial. It is the join key
// between the events dataset and the raw-neural dataset.
type TrialKey struct {
	Date      string
	Subject   string
	Condition string
	Run       string
}

func (k TrialKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.Date, k.Subject, k.Condition, k.Run)
}

// Structure declares the recorded experiment as date, subject, condition
// and the runs recorded under that condition.
type Structure map[string]map[string]map[string][]string

// LoadStructure reads an experiment structure from a YAML file. Scalar
// keys are taken in their textual form, so purely numeric dates, subject
// IDs and run numbers need no quoting.
func LoadStructure(path string) (Structure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading experiment structure: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing experiment structure: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("experiment structure %s is empty", path)
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("experiment structure must be a mapping of dates, got %s", path)
	}

	structure := make(Structure)
	for d := 0; d < len(root.Content); d += 2 {
		date := root.Content[d].Value
		subjectsNode := root.Content[d+1]
		if subjectsNode.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("date %q: expected a mapping of subjects", date)
		}

		subjects := make(map[string]map[string][]string)
		for s := 0; s < len(subjectsNode.Content); s += 2 {
			subject := subjectsNode.Content[s].Value
			conditionsNode := subjectsNode.Content[s+1]
			if conditionsNode.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("date %q subject %q: expected a mapping of conditions", date, subject)
			}

			conditions := make(map[string][]string)
			for c := 0; c < len(conditionsNode.Content); c += 2 {
				condition := conditionsNode.Content[c].Value
				runsNode := conditionsNode.Content[c+1]
				if runsNode.Kind != yaml.SequenceNode {
					return nil, fmt.Errorf("date %q subject %q condition %q: expected a sequence of runs", date, subject, condition)
				}
				runs := make([]string, 0, len(runsNode.Content))
				for _, r := range runsNode.Content {
					runs = append(runs, r.Value)
				}
				conditions[condition] = runs
			}
			subjects[subject] = conditions
		}
		structure[date] = subjects
	}
	return structure, nil
}

// Runs lists every declared trial in deterministic order (sorted by date,
// subject, condition, then declaration order of runs), after removing
// skipped subjects and conditions.
func (s Structure) Runs(skipSubjects, skipConditions []string) []TrialKey {
	var trials []TrialKey
	for _, date := range sortedKeys(s) {
		for _, subject := range sortedKeys(s[date]) {
			if slices.Contains(skipSubjects, subject) {
				continue
			}
			for _, condition := range sortedKeys(s[date][subject]) {
				if slices.Contains(skipConditions, condition) {
					continue
				}
				for _, run := range s[date][subject][condition] {
					trials = append(trials, TrialKey{
						Date:      date,
						Subject:   subject,
						Condition: condition,
						Run:       run,
					})
				}
			}
		}
	}
	return trials
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
