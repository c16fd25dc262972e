package extractor

import (
	"bytes"
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	"github.com/gnana997/tsunused/pkg/config"
	"github.com/gnana997/tsunused/pkg/util"
)

// arrowTail matches the initializer shape of an arrow function:
// `= (a, b) =>`, `= async x =>`, `= (props: P): JSX.Element =>`.
const arrowTail = `\s*(?::[^=]+?)?=\s*(?:async\s+)?(?:\([^)]*\)|[A-Za-z_$][\w$]*)\s*(?::[^=]+?)?=>`

// definitionTemplates holds, per kind, the declaration shapes the pattern
// strategy recognizes. Capture group 1 is the name.
var definitionTemplates = map[ElementType][]string{
	Component: {
		`export\s+default\s+function\s+([A-Z][\w$]*)`,
		`export\s+(?:const|let|var)\s+([A-Z][\w$]*)\s*(?::[^=]+?)?=\s*(?:React\.)?(?:memo|forwardRef)\b`,
		`export\s+(?:const|let|var)\s+([A-Z][\w$]*)` + arrowTail,
	},
	Type: {
		`export\s+(?:declare\s+)?type\s+([A-Z][\w$]*)`,
	},
	Interface: {
		`export\s+(?:declare\s+)?interface\s+([A-Z][\w$]*)`,
	},
	Function: {
		`export\s+(?:declare\s+)?(?:async\s+)?function\s*\*?\s*([a-z][\w$]*)`,
		`export\s+(?:const|let|var)\s+([a-z][\w$]*)` + arrowTail,
	},
	Variable: {
		`export\s+(?:declare\s+)?(?:const|let|var)\s+([A-Z_][A-Z0-9_]*)\s*[:=]`,
	},
	Enum: {
		`export\s+(?:declare\s+)?(?:const\s+)?enum\s+([A-Z][\w$]*)`,
	},
}

// importTemplates find a name among the imports of a file. %[1]s is the
// quoted name.
var importTemplates = []string{
	`import\s+(?:type\s+)?(?:[\w$]+\s*,\s*)?\{[^}]*\b%[1]s\b[^}]*\}`,
	`import\s+(?:type\s+)?%[1]s\b`,
}

// usageTemplates holds, per kind, the usage shapes searched for in
// reference sources, on top of importTemplates.
var usageTemplates = map[ElementType][]string{
	Component: {
		`<%[1]s\b`,
		`<[\w$]+(?:\.[\w$]+)*\.%[1]s\b`,
		`\b%[1]s\s*\(`,
		`\{\s*%[1]s\s*\}`,
	},
	Type: typePositionTemplates,
	Interface: append(append([]string{}, typePositionTemplates...),
		`implements\s+(?:[\w$.]+\s*,\s*)*%[1]s\b`,
	),
	Function: {
		`\b%[1]s\s*\(`,
		`[=({,:]\s*%[1]s\s*[,)}\];]`,
	},
	Variable: {
		`\b%[1]s\b`,
	},
	Enum: append(append([]string{}, typePositionTemplates...),
		`\b%[1]s\.`,
	),
}

// typePositionTemplates find a name where a type is expected:
// `: Name`, `<Name>`, `extends Name`, unions, intersections and `as Name`.
var typePositionTemplates = []string{
	`:\s*%[1]s\b`,
	`<\s*%[1]s\b`,
	`extends\s+%[1]s\b`,
	`[|&]\s*%[1]s\b`,
	`\bas\s+%[1]s\b`,
	`,\s*%[1]s\s*[>,]`,
}

// exportClause matches `export { A, B }`, `export type { A }` and
// `export * as NS`. Names inside are re-exported, not used.
var exportClause = regexp.MustCompile(`\bexport\s+(?:type\s+)?(?:\{[^}]*\}|\*\s+as\s+[\w$]+)`)

type definitionPattern struct {
	typ ElementType
	re  *regexp.Regexp
}

// PatternStrategy extracts with regular expressions over raw text.
//
// It accepts more false positives than the syntax-tree strategy (commented
// out code, declarations inside template strings) and needs no grammar.
// Definitions sharing a name are merged into one candidate.
type PatternStrategy struct {
	types       config.DetectionTypes
	definitions []definitionPattern
	logger      *slog.Logger
}

// NewPatternStrategy compiles the definition patterns of every enabled kind.
// A template that does not compile is a KindPattern error.
func NewPatternStrategy(types config.DetectionTypes, logger *slog.Logger) (*PatternStrategy, error) {
	s := &PatternStrategy{
		types:  types,
		logger: util.LoggerOrDefault(logger),
	}
	for _, t := range ElementTypes() {
		if !t.Enabled(types) {
			continue
		}
		for _, tmpl := range definitionTemplates[t] {
			re, err := regexp.Compile(`(?m)` + tmpl)
			if err != nil {
				return nil, util.NewError(util.KindPattern, "", fmt.Errorf("%s definition pattern: %w", t, err))
			}
			s.definitions = append(s.definitions, definitionPattern{typ: t, re: re})
		}
	}
	return s, nil
}

// Name implements Strategy.
func (s *PatternStrategy) Name() config.Strategy {
	return config.StrategyPattern
}

// ExtractDefinitions implements Strategy.
//
// Every capture becomes a definition. When several kinds match at the same
// offset (`export const FOO = () => 1` is both a Component shape and a
// Variable shape) the kind listed first in ElementTypes wins.
func (s *PatternStrategy) ExtractDefinitions(path string, src []byte) ([]ElementDefinition, error) {
	type hit struct {
		offset int
		name   string
		typ    ElementType
	}
	var hits []hit
	taken := make(map[int]bool)
	for _, p := range s.definitions {
		for _, m := range p.re.FindAllSubmatchIndex(src, -1) {
			if taken[m[2]] {
				continue
			}
			taken[m[2]] = true
			hits = append(hits, hit{offset: m[0], name: string(src[m[2]:m[3]]), typ: p.typ})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].offset < hits[j].offset })

	lines := newLineIndex(src)
	defs := make([]ElementDefinition, 0, len(hits))
	for _, h := range hits {
		line := lines.lineAt(h.offset)
		defs = append(defs, ElementDefinition{
			Name:         h.name,
			Type:         h.typ,
			File:         path,
			Line:         line,
			ShouldIgnore: lines.suppressed(line),
		})
	}
	return dedupeDefinitions(defs), nil
}

// ScanReferences implements Strategy. Matching is deferred to the index,
// which knows the candidate names.
func (s *PatternStrategy) ScanReferences(path string, src []byte) (FileReferences, error) {
	return FileReferences{File: path, Source: src}, nil
}

// GroupDefinitions implements Strategy. Definitions are merged by name; the
// first kind seen for a name is kept and defining files accumulate in
// order.
func (s *PatternStrategy) GroupDefinitions(defs []ElementDefinition) []Candidate {
	var out []Candidate
	pos := make(map[string]int)
	for _, d := range defs {
		if d.ShouldIgnore {
			continue
		}
		i, ok := pos[d.Name]
		if !ok {
			pos[d.Name] = len(out)
			out = append(out, Candidate{Name: d.Name, Type: d.Type, Files: []string{d.File}})
			continue
		}
		if !out[i].Defines(d.File) {
			out[i].Files = append(out[i].Files, d.File)
		}
	}
	return out
}

// BuildIndex implements Strategy. The usage patterns of every candidate are
// compiled here, once per run, and line tables are computed once per file.
func (s *PatternStrategy) BuildIndex(files []FileReferences, candidates []Candidate) (ReferenceIndex, error) {
	idx := &patternIndex{
		files:    make([]indexedFile, 0, len(files)),
		patterns: make(map[string][]*regexp.Regexp, len(candidates)),
	}
	for _, f := range files {
		idx.files = append(idx.files, indexedFile{
			path:    f.File,
			src:     f.Source,
			lines:   newLineIndex(f.Source),
			exports: exportClause.FindAllIndex(f.Source, -1),
		})
	}
	for _, c := range candidates {
		key := patternKey(c)
		if _, ok := idx.patterns[key]; ok {
			continue
		}
		res, err := compileUsagePatterns(c.Name, c.Type)
		if err != nil {
			return nil, err
		}
		idx.patterns[key] = res
	}

	s.logger.Debug("pattern index built",
		"files", len(idx.files),
		"pattern_sets", len(idx.patterns))
	return idx, nil
}

// compileUsagePatterns instantiates the usage templates of t for name.
func compileUsagePatterns(name string, t ElementType) ([]*regexp.Regexp, error) {
	quoted := regexp.QuoteMeta(name)
	templates := append(append([]string{}, importTemplates...), usageTemplates[t]...)

	out := make([]*regexp.Regexp, 0, len(templates))
	for _, tmpl := range templates {
		re, err := regexp.Compile(fmt.Sprintf(tmpl, quoted))
		if err != nil {
			return nil, util.NewError(util.KindPattern, "", fmt.Errorf("usage pattern for %s %q: %w", t, name, err))
		}
		out = append(out, re)
	}
	return out, nil
}

func patternKey(c Candidate) string {
	return string(c.Type) + "\x00" + c.Name
}

type indexedFile struct {
	path    string
	src     []byte
	lines   *lineIndex
	exports [][]int // export clause spans, in source order
}

// inExportClause reports whether offset falls inside an export clause.
func (f indexedFile) inExportClause(offset int) bool {
	i := sort.Search(len(f.exports), func(i int) bool { return f.exports[i][1] > offset })
	return i < len(f.exports) && f.exports[i][0] <= offset
}

// patternIndex is read-only after BuildIndex returns.
type patternIndex struct {
	files    []indexedFile
	patterns map[string][]*regexp.Regexp
}

// Lookup implements ReferenceIndex. Patterns are tried in order and a match
// overlapping one already taken in the same file is dropped, so
// `import { Widget }` counts once. Matches inside export clauses are not
// usages. Usages are ordered by line.
func (idx *patternIndex) Lookup(c Candidate) ([]ElementUsage, error) {
	patterns, ok := idx.patterns[patternKey(c)]
	if !ok {
		return nil, util.Errorf(util.KindPattern, "", "no usage patterns indexed for %s %q", c.Type, c.Name)
	}

	var out []ElementUsage
	for _, f := range idx.files {
		if c.Defines(f.path) || !bytes.Contains(f.src, []byte(c.Name)) {
			continue
		}

		type match struct {
			offset int
			end    int
			text   string
		}
		var matches []match
		overlaps := func(start, end int) bool {
			for _, m := range matches {
				if start < m.end && m.offset < end {
					return true
				}
			}
			return false
		}
		for _, re := range patterns {
			for _, loc := range re.FindAllIndex(f.src, -1) {
				if f.inExportClause(loc[0]) || overlaps(loc[0], loc[1]) {
					continue
				}
				matches = append(matches, match{offset: loc[0], end: loc[1], text: string(f.src[loc[0]:loc[1]])})
			}
		}
		if len(matches) == 0 {
			continue
		}
		sort.Slice(matches, func(i, j int) bool { return matches[i].offset < matches[j].offset })

		usage := ElementUsage{File: f.path, Usages: make([]Usage, 0, len(matches))}
		for _, m := range matches {
			usage.Usages = append(usage.Usages, Usage{Line: f.lines.lineAt(m.offset), Context: m.text})
		}
		out = append(out, usage)
	}
	return out, nil
}
