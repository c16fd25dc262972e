package detector

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/gnana997/tsunused/pkg/extractor"
	"github.com/gnana997/tsunused/pkg/workerpool"
)

// resolution is the verdict on one candidate.
type resolution struct {
	info ElementInfo
	used bool
}

// resolve classifies every candidate. A candidate is used when the index
// reports at least one occurrence of its name outside its defining files.
//
// Names are matched exactly and nothing else: an unrelated identifier with
// the same name in another file makes a candidate used.
func (d *Detector) resolve(ctx context.Context, defs []extractor.ElementDefinition, refs []extractor.FileReferences) (*DetectionResult, error) {
	start := time.Now()

	candidates := d.strategy.GroupDefinitions(defs)
	index, err := d.strategy.BuildIndex(refs, candidates)
	if err != nil {
		return nil, err
	}

	verdicts, err := workerpool.Map(ctx, d.pool, candidates, func(_ context.Context, c extractor.Candidate) (resolution, error) {
		usages, err := index.Lookup(c)
		if err != nil {
			return resolution{}, err
		}
		info := ElementInfo{
			Name:            c.Name,
			ElementType:     c.Type,
			DefinitionFiles: c.Files,
		}
		if len(usages) == 0 {
			return resolution{info: info}, nil
		}
		info.Usages = usages
		return resolution{info: info, used: true}, nil
	})
	if err != nil {
		return nil, err
	}

	result := aggregate(verdicts)

	d.logger.Debug("resolution complete",
		"candidates", len(candidates),
		"ms", time.Since(start).Milliseconds())

	return result, nil
}

// aggregate partitions verdicts and counts them per type.
func aggregate(verdicts []resolution) *DetectionResult {
	result := &DetectionResult{
		Unused: []ElementInfo{},
		Used:   []ElementInfo{},
		ByType: make(map[extractor.ElementType]DetectionStats),
	}
	for _, v := range verdicts {
		stats := result.ByType[v.info.ElementType]
		stats.Total++
		if v.used {
			stats.Used++
			result.Used = append(result.Used, v.info)
		} else {
			stats.Unused++
			result.Unused = append(result.Unused, v.info)
		}
		result.ByType[v.info.ElementType] = stats
	}
	result.Total = len(verdicts)

	slices.SortStableFunc(result.Used, compareInfo)
	slices.SortStableFunc(result.Unused, compareInfo)
	return result
}

// compareInfo orders by type (report order), name, first defining file.
func compareInfo(a, b ElementInfo) int {
	if c := cmp.Compare(a.ElementType.Rank(), b.ElementType.Rank()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return cmp.Compare(firstFile(a), firstFile(b))
}

func firstFile(info ElementInfo) string {
	if len(info.DefinitionFiles) == 0 {
		return ""
	}
	return info.DefinitionFiles[0]
}
