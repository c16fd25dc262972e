// Package detector runs a detection: it enumerates source files, extracts
// definitions and references concurrently, resolves every definition
// against the references of other files, and folds the outcome into a
// DetectionResult.
package detector

import (
	"math"

	"github.com/gnana997/tsunused/pkg/extractor"
)

// ElementInfo is one classified element.
type ElementInfo struct {
	Name            string                   `json:"name" yaml:"name"`
	ElementType     extractor.ElementType    `json:"element_type" yaml:"element_type"`
	DefinitionFiles []string                 `json:"definition_files" yaml:"definition_files"`
	Usages          []extractor.ElementUsage `json:"usages,omitempty" yaml:"usages,omitempty"`
}

// DetectionStats counts the elements of one type.
type DetectionStats struct {
	Total  int `json:"total" yaml:"total"`
	Used   int `json:"used" yaml:"used"`
	Unused int `json:"unused" yaml:"unused"`
}

// UsageRate returns the used percentage, rounded half up.
func (s DetectionStats) UsageRate() int {
	return UsageRate(s.Used, s.Total)
}

// DetectionResult is the outcome of one run.
//
// Used and Unused are sorted by type (report order), name and first
// defining file. Total always equals len(Used) + len(Unused); suppressed
// definitions are not counted.
type DetectionResult struct {
	Unused []ElementInfo                            `json:"unused" yaml:"unused"`
	Used   []ElementInfo                            `json:"used" yaml:"used"`
	Total  int                                      `json:"total" yaml:"total"`
	ByType map[extractor.ElementType]DetectionStats `json:"by_type" yaml:"by_type"`
}

// UsageRate returns the overall used percentage.
func (r *DetectionResult) UsageRate() int {
	return UsageRate(len(r.Used), r.Total)
}

// Find returns the used and unused elements called name.
func (r *DetectionResult) Find(name string) (used, unused []ElementInfo) {
	for _, info := range r.Used {
		if info.Name == name {
			used = append(used, info)
		}
	}
	for _, info := range r.Unused {
		if info.Name == name {
			unused = append(unused, info)
		}
	}
	return used, unused
}

// UsageRate returns round(used / total * 100), or 0 when total is 0.
func UsageRate(used, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(used) / float64(total) * 100))
}
