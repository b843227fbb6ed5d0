// Package states condenses labeled behavioral events into coarse state
// categories and summarizes their distribution and neural spectra across
// subjects and groups.
package states

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/gaitlab/neurogait/internal/experiment"
)

// Categories is the condensed state vocabulary, in reporting order.
var Categories = []string{"gait", "nlm", "fog"}

// DefaultCondense folds the annotator's five event types into the three
// reported state categories.
var DefaultCondense = map[string]string{
	"gait":       "gait",
	"nlm_rest":   "nlm",
	"nlm_active": "nlm",
	"fog_rest":   "fog",
	"fog_active": "fog",
}

// Condense folds an event map into coarse categories, keeping the windows.
// Event types missing from the mapping are dropped.
func Condense(events experiment.EventMap, mapping map[string]string) experiment.EventMap {
	out := make(experiment.EventMap, len(Categories))
	for eventType, windows := range events {
		category, ok := mapping[eventType]
		if !ok {
			continue
		}
		out[category] = append(out[category], windows...)
	}
	return out
}

// Percentages maps condition to subject to category to the fraction of
// that subject's total labeled time spent in the category. Fractions of
// one subject under one condition sum to 1 whenever any time was labeled.
type Percentages map[string]map[string]map[string]float64

// EventsPercentage computes per-subject state-time fractions from the
// events dataset, pooling every run of a subject under a condition.
func EventsPercentage(table experiment.EventsTable, mapping map[string]string) Percentages {
	// condition -> subject -> category -> summed seconds
	durations := make(map[string]map[string]map[string]float64)
	for _, row := range table {
		subjects, ok := durations[row.Key.Condition]
		if !ok {
			subjects = make(map[string]map[string]float64)
			durations[row.Key.Condition] = subjects
		}
		categories, ok := subjects[row.Key.Subject]
		if !ok {
			categories = make(map[string]float64)
			subjects[row.Key.Subject] = categories
		}
		for category, windows := range Condense(row.Events, mapping) {
			for _, w := range windows {
				categories[category] += w.Duration()
			}
		}
	}

	out := make(Percentages, len(durations))
	for condition, subjects := range durations {
		out[condition] = make(map[string]map[string]float64, len(subjects))
		for subject, categories := range subjects {
			var total float64
			for _, d := range categories {
				total += d
			}
			fractions := make(map[string]float64, len(Categories))
			for _, category := range Categories {
				if total > 0 {
					fractions[category] = categories[category] / total
				} else {
					fractions[category] = 0
				}
			}
			out[condition][subject] = fractions
		}
	}
	return out
}

// GroupSamples maps condition to category to one sample per subject.
// Subject identities are dropped; only the group label survives.
type GroupSamples map[string]map[string][]float64

// SplitGroups partitions per-subject fractions into a test group (the
// subjects listed) and a control group (everyone else). Subjects are
// visited in sorted order so sample positions are stable across runs.
func SplitGroups(p Percentages, testSubjects []string) (test, control GroupSamples) {
	isTest := make(map[string]bool, len(testSubjects))
	for _, s := range testSubjects {
		isTest[s] = true
	}

	test = make(GroupSamples)
	control = make(GroupSamples)
	for condition, subjects := range p {
		names := make([]string, 0, len(subjects))
		for s := range subjects {
			names = append(names, s)
		}
		sort.Strings(names)

		for _, subject := range names {
			dst := control
			if isTest[subject] {
				dst = test
			}
			categories, ok := dst[condition]
			if !ok {
				categories = make(map[string][]float64, len(Categories))
				dst[condition] = categories
			}
			for category, fraction := range subjects[subject] {
				categories[category] = append(categories[category], fraction)
			}
		}
	}
	return test, control
}

// Stats is a group summary: the sample mean with a 95% confidence band.
type Stats struct {
	Mean  float64
	Upper float64
	Lower float64
}

// Summarize computes mean and 95% confidence bounds (1.96 standard errors)
// of a group sample. A single observation has no spread; its bounds
// collapse onto the mean.
func Summarize(sample []float64) (Stats, error) {
	n := len(sample)
	if n == 0 {
		return Stats{}, fmt.Errorf("empty sample")
	}
	mean, std := stat.MeanStdDev(sample, nil)
	if n == 1 || math.IsNaN(std) {
		return Stats{Mean: mean, Upper: mean, Lower: mean}, nil
	}
	sem := std / math.Sqrt(float64(n))
	return Stats{Mean: mean, Upper: mean + 1.96*sem, Lower: mean - 1.96*sem}, nil
}

// SummarizeGroups reduces group samples to per-condition, per-category
// summary statistics. Categories with no observations are omitted.
type GroupSummary map[string]map[string]Stats

func SummarizeGroups(g GroupSamples) (GroupSummary, error) {
	out := make(GroupSummary, len(g))
	for condition, categories := range g {
		out[condition] = make(map[string]Stats, len(categories))
		for category, sample := range categories {
			if len(sample) == 0 {
				continue
			}
			s, err := Summarize(sample)
			if err != nil {
				return nil, fmt.Errorf("condition %s category %s: %w", condition, category, err)
			}
			out[condition][category] = s
		}
	}
	return out, nil
}

// SubjectSpectra maps condition to subject to category to that subject's
// mean power spectrum over all segments of all runs.
type SubjectSpectra map[string]map[string]map[string][]float64

// AverageSpectra averages the per-segment power spectra of each subject
// within a condition and category. Subjects with no segments for a
// category produce no entry.
func AverageSpectra(psds experiment.Nested[experiment.PSDMap], mapping map[string]string) SubjectSpectra {
	type bucket struct {
		sum   []float64
		count int
	}
	// condition -> subject -> category
	acc := make(map[string]map[string]map[string]*bucket)

	psds.Walk(func(k experiment.TrialKey, m experiment.PSDMap) {
		subjects, ok := acc[k.Condition]
		if !ok {
			subjects = make(map[string]map[string]*bucket)
			acc[k.Condition] = subjects
		}
		categories, ok := subjects[k.Subject]
		if !ok {
			categories = make(map[string]*bucket)
			subjects[k.Subject] = categories
		}
		for eventType, spectra := range m {
			category, ok := mapping[eventType]
			if !ok {
				continue
			}
			for _, spectrum := range spectra {
				b, ok := categories[category]
				if !ok {
					b = &bucket{sum: make([]float64, len(spectrum))}
					categories[category] = b
				}
				floats.Add(b.sum, spectrum)
				b.count++
			}
		}
	})

	out := make(SubjectSpectra, len(acc))
	for condition, subjects := range acc {
		out[condition] = make(map[string]map[string][]float64, len(subjects))
		for subject, categories := range subjects {
			out[condition][subject] = make(map[string][]float64, len(categories))
			for category, b := range categories {
				mean := make([]float64, len(b.sum))
				floats.AddScaledTo(mean, mean, 1/float64(b.count), b.sum)
				out[condition][subject][category] = mean
			}
		}
	}
	return out
}

// GroupSpectra maps condition to category to one mean spectrum per
// subject, with subject identities dropped.
type GroupSpectra map[string]map[string][][]float64

// SplitSpectraGroups partitions per-subject mean spectra into test and
// control groups the same way SplitGroups partitions fractions.
func SplitSpectraGroups(s SubjectSpectra, testSubjects []string) (test, control GroupSpectra) {
	isTest := make(map[string]bool, len(testSubjects))
	for _, subj := range testSubjects {
		isTest[subj] = true
	}

	test = make(GroupSpectra)
	control = make(GroupSpectra)
	for condition, subjects := range s {
		names := make([]string, 0, len(subjects))
		for subj := range subjects {
			names = append(names, subj)
		}
		sort.Strings(names)

		for _, subject := range names {
			dst := control
			if isTest[subject] {
				dst = test
			}
			categories, ok := dst[condition]
			if !ok {
				categories = make(map[string][][]float64)
				dst[condition] = categories
			}
			for category, spectrum := range subjects[subject] {
				categories[category] = append(categories[category], spectrum)
			}
		}
	}
	return test, control
}

// SpectrumStats holds per-frequency group summary curves.
type SpectrumStats struct {
	Mean  []float64
	Upper []float64
	Lower []float64
}

// SummarizeSpectra reduces a stack of per-subject spectra to mean and 95%
// confidence curves, bin by bin.
func SummarizeSpectra(spectra [][]float64) (SpectrumStats, error) {
	if len(spectra) == 0 {
		return SpectrumStats{}, fmt.Errorf("no spectra to summarize")
	}
	nbins := len(spectra[0])
	for i, s := range spectra {
		if len(s) != nbins {
			return SpectrumStats{}, fmt.Errorf("spectrum %d has %d bins, expected %d", i, len(s), nbins)
		}
	}

	out := SpectrumStats{
		Mean:  make([]float64, nbins),
		Upper: make([]float64, nbins),
		Lower: make([]float64, nbins),
	}
	sample := make([]float64, len(spectra))
	for bin := 0; bin < nbins; bin++ {
		for i, s := range spectra {
			sample[i] = s[bin]
		}
		stats, err := Summarize(sample)
		if err != nil {
			return SpectrumStats{}, err
		}
		out.Mean[bin] = stats.Mean
		out.Upper[bin] = stats.Upper
		out.Lower[bin] = stats.Lower
	}
	return out, nil
}
