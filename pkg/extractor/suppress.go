package extractor

import (
	"bytes"
	"sort"
)

// IgnoreDirective exempts the declaration on the next line (or on the same
// line, as a trailing comment) from detection.
const IgnoreDirective = "// @ts-unused-ignore"

// lineIndex maps byte offsets to 1-based line numbers.
type lineIndex struct {
	src    []byte
	starts []int
}

func newLineIndex(src []byte) *lineIndex {
	starts := make([]int, 1, bytes.Count(src, []byte{'\n'})+1)
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{src: src, starts: starts}
}

// lineAt returns the line holding offset.
func (li *lineIndex) lineAt(offset int) int {
	return sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > offset })
}

// line returns line n without its terminator, or nil when out of range.
func (li *lineIndex) line(n int) []byte {
	if n < 1 || n > len(li.starts) {
		return nil
	}
	start := li.starts[n-1]
	end := len(li.src)
	if n < len(li.starts) {
		end = li.starts[n] - 1
	}
	return bytes.TrimSuffix(li.src[start:end], []byte{'\r'})
}

// suppressed reports whether the declaration on line n carries the ignore
// directive: alone on line n-1, or anywhere on line n.
func (li *lineIndex) suppressed(n int) bool {
	if prev := li.line(n - 1); prev != nil && string(bytes.TrimSpace(prev)) == IgnoreDirective {
		return true
	}
	return bytes.Contains(li.line(n), []byte(IgnoreDirective))
}
