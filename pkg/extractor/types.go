// Package extractor turns TypeScript and JavaScript source files into element
// definitions and reference evidence.
//
// Two interchangeable strategies implement the same Strategy capability:
//   - the syntax-tree strategy parses every file with tree-sitter and walks
//     the tree
//   - the pattern strategy matches declaration and usage shapes with regular
//     expressions over the raw text
//
// Both hand the resolver the same shapes: ElementDefinition values grouped
// into Candidates, and a ReferenceIndex that answers "where outside these
// files is this name used?".
package extractor

import "github.com/gnana997/tsunused/pkg/config"

// ElementType is the kind of a detected element.
//
// Values compare by kind only, so the type can key maps directly.
type ElementType string

const (
	Component ElementType = "Component"
	Type      ElementType = "Type"
	Interface ElementType = "Interface"
	Function  ElementType = "Function"
	Variable  ElementType = "Variable"
	Enum      ElementType = "Enum"
)

// ElementTypes lists every kind in report order.
func ElementTypes() []ElementType {
	return []ElementType{Component, Type, Interface, Function, Variable, Enum}
}

// Rank is the position of t in ElementTypes, or len(ElementTypes()) for
// unknown values.
func (t ElementType) Rank() int {
	for i, et := range ElementTypes() {
		if et == t {
			return i
		}
	}
	return len(ElementTypes())
}

// Enabled reports whether detection of t is switched on in dt.
func (t ElementType) Enabled(dt config.DetectionTypes) bool {
	switch t {
	case Component:
		return dt.Components
	case Type:
		return dt.Types
	case Interface:
		return dt.Interfaces
	case Function:
		return dt.Functions
	case Variable:
		return dt.Variables
	case Enum:
		return dt.Enums
	default:
		return false
	}
}

// ElementDefinition is one exported declaration found in a definition source.
type ElementDefinition struct {
	Name string      `json:"name"`
	Type ElementType `json:"element_type"`
	File string      `json:"file"`
	// Line is the 1-based line of the declaration.
	Line int `json:"line"`
	// ShouldIgnore is set by the // @ts-unused-ignore directive.
	ShouldIgnore bool `json:"should_ignore"`
}

// Reference contexts.
const (
	ContextImport = "import"
	ContextUsage  = "usage"
	ContextJSX    = "jsx"
)

// ElementReference is one identifier occurrence found by the syntax-tree
// strategy.
type ElementReference struct {
	Name    string `json:"name"`
	File    string `json:"file"`
	Line    int    `json:"line"`
	Context string `json:"context"`
}

// Usage is a single piece of evidence inside one file.
//
// Context is one of the Context constants for syntax-tree evidence and the
// matched text for pattern evidence.
type Usage struct {
	Line    int    `json:"line" yaml:"line"`
	Context string `json:"context" yaml:"context"`
}

// ElementUsage groups the evidence found in one file.
type ElementUsage struct {
	File   string  `json:"file" yaml:"file"`
	Usages []Usage `json:"usages" yaml:"usages"`
}

// Candidate is the unit the resolver classifies.
//
// The syntax-tree strategy produces one candidate per definition. The
// pattern strategy merges definitions sharing a name, so Files may hold
// several defining paths.
type Candidate struct {
	Name  string
	Type  ElementType
	Files []string
}

// Defines reports whether path is one of c's defining files.
func (c Candidate) Defines(path string) bool {
	for _, f := range c.Files {
		if f == path {
			return true
		}
	}
	return false
}

// FileReferences is the per-file output of the reference pass.
//
// The syntax-tree strategy fills References. The pattern strategy keeps the
// raw Source and searches it once the candidate names are known.
type FileReferences struct {
	File       string
	References []ElementReference
	Source     []byte
}

// ReferenceIndex answers usage lookups for one detection run.
//
// Lookup returns evidence grouped by file, skipping the candidate's own
// files. It is safe for concurrent use.
type ReferenceIndex interface {
	Lookup(c Candidate) ([]ElementUsage, error)
}
