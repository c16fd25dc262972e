package util

import "runtime"

// GetOptimalPoolSize returns the default width for the detection worker pool:
// the host's available parallelism (GOMAXPROCS), never less than 1.
//
// Parsing and regex matching are CPU-bound, so going wider than the number
// of runnable threads only adds parser memory (one tree-sitter parser per
// worker per language) without finishing sooner.
//
// This is used for:
//   - Worker pool width (concurrent file and definition tasks)
//   - Parser pool size (parsers per language), kept equal to the worker width
func GetOptimalPoolSize() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	return n
}

// GetOptimalPoolSizeWithOverride returns pool size with optional override.
//
// If override > 0, uses override value (--jobs, config "workers").
// Otherwise, uses GetOptimalPoolSize().
func GetOptimalPoolSizeWithOverride(override int) int {
	if override > 0 {
		return override
	}
	return GetOptimalPoolSize()
}
