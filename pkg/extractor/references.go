package extractor

import (
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// bindingFields lists, per node kind, the fields that introduce a name
// rather than use one.
var bindingFields = map[string][]string{
	"variable_declarator":            {"name"},
	"function_declaration":           {"name"},
	"generator_function_declaration": {"name"},
	"function_expression":            {"name"},
	"function":                       {"name"},
	"generator_function":             {"name"},
	"function_signature":             {"name"},
	"class_declaration":              {"name"},
	"abstract_class_declaration":     {"name"},
	"class":                          {"name"},
	"interface_declaration":          {"name"},
	"type_alias_declaration":         {"name"},
	"enum_declaration":               {"name"},
	"type_parameter":                 {"name"},
	"internal_module":                {"name"},
	"module":                         {"name"},
	"required_parameter":             {"pattern"},
	"optional_parameter":             {"pattern"},
	"arrow_function":                 {"parameter"},
	"catch_clause":                   {"parameter"},
	"labeled_statement":              {"label"},
}

// referenceWalker collects identifier occurrences of one parsed file.
//
// Unlike definitionWalker it descends into every scope: a component used
// inside a nested callback is still used.
type referenceWalker struct {
	path       string
	src        []byte
	namespaces map[string]bool
	refs       []ElementReference
}

func newReferenceWalker(path string, src []byte) *referenceWalker {
	return &referenceWalker{
		path:       path,
		src:        src,
		namespaces: make(map[string]bool),
	}
}

func (w *referenceWalker) walk(root *ts.Node) []ElementReference {
	w.visit(root)
	return w.refs
}

func (w *referenceWalker) visit(n *ts.Node) {
	switch n.Kind() {
	case "import_statement":
		w.importStatement(n)
		return

	case "export_statement":
		// export { X } from './x' and export * from './x' name nothing
		// that is used here.
		if n.ChildByFieldName("source") != nil {
			return
		}

	case "export_clause", "jsx_closing_element", "comment":
		return

	case "jsx_opening_element", "jsx_self_closing_element":
		if name := n.ChildByFieldName("name"); name != nil {
			w.jsxName(name)
		}
		for i := uint(0); i < n.NamedChildCount(); i++ {
			c := n.NamedChild(i)
			if c != nil && n.FieldNameForNamedChild(uint32(i)) != "name" {
				w.visit(c)
			}
		}
		return

	case "member_expression":
		object := n.ChildByFieldName("object")
		property := n.ChildByFieldName("property")
		if object != nil && property != nil && object.Kind() == "identifier" && w.namespaces[object.Utf8Text(w.src)] {
			w.add(property, property.Utf8Text(w.src), ContextUsage)
		}

	case "identifier", "type_identifier", "shorthand_property_identifier":
		if !isBinding(n) {
			w.add(n, n.Utf8Text(w.src), ContextUsage)
		}
		return
	}

	for i := uint(0); i < n.ChildCount(); i++ {
		if c := n.Child(i); c != nil {
			w.visit(c)
		}
	}
}

// importStatement records every imported name under ContextImport.
// Named specifiers record the exported name, not the local alias.
func (w *referenceWalker) importStatement(n *ts.Node) {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		if c == nil {
			continue
		}
		switch c.Kind() {
		case "import_clause":
			w.importClause(c)
		case "import_require_clause":
			// import X = require('./x')
			if id := firstNamedOfKind(c, "identifier"); id != nil {
				w.add(id, id.Utf8Text(w.src), ContextImport)
			}
		}
	}
}

func (w *referenceWalker) importClause(clause *ts.Node) {
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		c := clause.NamedChild(i)
		if c == nil {
			continue
		}
		switch c.Kind() {
		case "identifier":
			w.add(c, c.Utf8Text(w.src), ContextImport)

		case "namespace_import":
			if id := firstNamedOfKind(c, "identifier"); id != nil {
				local := id.Utf8Text(w.src)
				w.namespaces[local] = true
				w.add(id, local, ContextImport)
			}

		case "named_imports":
			for j := uint(0); j < c.NamedChildCount(); j++ {
				spec := c.NamedChild(j)
				if spec == nil || spec.Kind() != "import_specifier" {
					continue
				}
				name := spec.ChildByFieldName("name")
				if name == nil {
					continue
				}
				w.add(name, strings.Trim(name.Utf8Text(w.src), `"'`), ContextImport)
			}
		}
	}
}

// jsxName records the tag name of an element. Intrinsic elements (div,
// span) are recorded too; no definition can match them because component
// names are Pascal case.
//
//	<Widget/>         Widget
//	<UI.Button/>      UI, and Button when UI is a namespace import
func (w *referenceWalker) jsxName(name *ts.Node) {
	switch name.Kind() {
	case "identifier":
		w.add(name, name.Utf8Text(w.src), ContextJSX)
	case "member_expression", "nested_identifier":
		parts := strings.Split(name.Utf8Text(w.src), ".")
		w.add(name, parts[0], ContextJSX)
		if len(parts) > 1 && w.namespaces[parts[0]] {
			w.add(name, parts[1], ContextJSX)
		}
	}
}

func (w *referenceWalker) add(n *ts.Node, name, context string) {
	if name == "" {
		return
	}
	w.refs = append(w.refs, ElementReference{
		Name:    name,
		File:    w.path,
		Line:    int(n.StartPosition().Row) + 1,
		Context: context,
	})
}

// isBinding reports whether identifier n is the declared name of its parent
// rather than a use.
func isBinding(n *ts.Node) bool {
	parent := n.Parent()
	if parent == nil {
		return false
	}
	for _, field := range bindingFields[parent.Kind()] {
		if c := parent.ChildByFieldName(field); c != nil && sameNode(c, n) {
			return true
		}
	}
	return false
}

func sameNode(a, b *ts.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Kind() == b.Kind()
}

func firstNamedOfKind(n *ts.Node, kind string) *ts.Node {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if c := n.NamedChild(i); c != nil && c.Kind() == kind {
			return c
		}
	}
	return nil
}
