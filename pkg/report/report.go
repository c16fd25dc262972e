// Package report renders a DetectionResult for people (text) and for tools
// (JSON, YAML).
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gnana997/tsunused/pkg/detector"
	"github.com/gnana997/tsunused/pkg/util"
)

// Format selects a renderer.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "":
		return FormatText, nil
	default:
		return "", util.Errorf(util.KindConfig, "", "unknown report format %q (want text, json or yaml)", s)
	}
}

// Options tunes the text report.
type Options struct {
	// Verbose also lists used elements and the files using them.
	Verbose bool
}

// Write renders result in format to w.
func Write(w io.Writer, result *detector.DetectionResult, format Format, opts Options) error {
	switch format {
	case FormatJSON:
		return JSON(w, result)
	case FormatYAML:
		return YAML(w, result)
	case FormatText, "":
		return Text(w, result, opts)
	default:
		return util.Errorf(util.KindConfig, "", "unknown report format %q", format)
	}
}

// JSON writes result as indented JSON.
func JSON(w io.Writer, result *detector.DetectionResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return util.NewError(util.KindSerialization, "", fmt.Errorf("encode json report: %w", err))
	}
	return nil
}

// YAML writes result as YAML.
func YAML(w io.Writer, result *detector.DetectionResult) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(result); err != nil {
		return util.NewError(util.KindSerialization, "", fmt.Errorf("encode yaml report: %w", err))
	}
	if err := enc.Close(); err != nil {
		return util.NewError(util.KindSerialization, "", fmt.Errorf("encode yaml report: %w", err))
	}
	return nil
}
