package extractor

import (
	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/tsunused/pkg/config"
)

// definitionWalker collects the exported declarations of one parsed file.
//
// Only export statements directly under the program node are visited.
// Nested scopes are never entered, so a locally declared helper can not be
// mistaken for an export.
type definitionWalker struct {
	path  string
	src   []byte
	lines *lineIndex
	types config.DetectionTypes
	defs  []ElementDefinition
}

func newDefinitionWalker(path string, src []byte, types config.DetectionTypes) *definitionWalker {
	return &definitionWalker{
		path:  path,
		src:   src,
		lines: newLineIndex(src),
		types: types,
	}
}

func (w *definitionWalker) walk(root *ts.Node) []ElementDefinition {
	for i := uint(0); i < root.NamedChildCount(); i++ {
		stmt := root.NamedChild(i)
		if stmt == nil || stmt.Kind() != "export_statement" {
			continue
		}
		w.exportStatement(stmt)
	}
	return dedupeDefinitions(w.defs)
}

// exportStatement handles one top-level export.
//
//	export const X = ...            declaration: lexical_declaration
//	export default function X() {}  declaration: function_declaration (default)
//	export default function () {}   value: function_expression (default)
//	export { X } from './x'         source set: a re-export, never a definition
func (w *definitionWalker) exportStatement(stmt *ts.Node) {
	if stmt.ChildByFieldName("source") != nil {
		return
	}
	isDefault := hasToken(stmt, "default")

	if decl := stmt.ChildByFieldName("declaration"); decl != nil {
		w.declaration(decl, stmt, isDefault)
		return
	}
	if value := stmt.ChildByFieldName("value"); value != nil && isDefault {
		w.defaultValue(value, stmt)
	}
}

func (w *definitionWalker) declaration(decl, stmt *ts.Node, isDefault bool) {
	switch decl.Kind() {
	case "function_declaration", "generator_function_declaration", "function_signature":
		name := fieldText(decl, "name", w.src)
		if isDefault {
			if w.types.Components && IsPascalCase(name) {
				w.add(name, Component, stmt)
			}
			return
		}
		if w.types.Functions && IsCamelCase(name) {
			w.add(name, Function, decl)
		}

	case "lexical_declaration", "variable_declaration":
		for i := uint(0); i < decl.NamedChildCount(); i++ {
			if d := decl.NamedChild(i); d != nil && d.Kind() == "variable_declarator" {
				w.variableDeclarator(d)
			}
		}

	case "type_alias_declaration":
		w.pascal(decl, Type, w.types.Types)
	case "interface_declaration":
		w.pascal(decl, Interface, w.types.Interfaces)
	case "enum_declaration":
		w.pascal(decl, Enum, w.types.Enums)

	case "ambient_declaration":
		// export declare function f(): void;  export declare enum E {}
		for i := uint(0); i < decl.NamedChildCount(); i++ {
			if inner := decl.NamedChild(i); inner != nil {
				w.declaration(inner, stmt, isDefault)
			}
		}
	}
}

// variableDeclarator applies the const-binding rules in order; the first
// enabled rule that matches wins.
func (w *definitionWalker) variableDeclarator(d *ts.Node) {
	nameNode := d.ChildByFieldName("name")
	value := d.ChildByFieldName("value")
	if nameNode == nil || nameNode.Kind() != "identifier" || value == nil {
		return
	}
	name := nameNode.Utf8Text(w.src)
	arrow := value.Kind() == "arrow_function"

	switch {
	case w.types.Components && IsPascalCase(name) && (arrow || w.isWrapperCall(value)):
		w.add(name, Component, d)
	case w.types.Functions && arrow && IsCamelCase(name):
		w.add(name, Function, d)
	case w.types.Variables && IsConstantCase(name):
		w.add(name, Variable, d)
	}
}

// defaultValue handles `export default <expression>`: only a named function
// expression with a Pascal name is a definition.
func (w *definitionWalker) defaultValue(value, stmt *ts.Node) {
	switch value.Kind() {
	case "function_expression", "function", "generator_function":
	default:
		return
	}
	if name := fieldText(value, "name", w.src); w.types.Components && IsPascalCase(name) {
		w.add(name, Component, stmt)
	}
}

func (w *definitionWalker) pascal(decl *ts.Node, t ElementType, enabled bool) {
	if name := fieldText(decl, "name", w.src); enabled && IsPascalCase(name) {
		w.add(name, t, decl)
	}
}

// isWrapperCall matches memo(...), forwardRef(...), React.memo(...) and
// React.forwardRef(...), with or without type arguments.
func (w *definitionWalker) isWrapperCall(value *ts.Node) bool {
	if value.Kind() != "call_expression" {
		return false
	}
	callee := value.ChildByFieldName("function")
	if callee == nil {
		return false
	}
	switch callee.Kind() {
	case "identifier":
		return isReactWrapper(callee.Utf8Text(w.src))
	case "member_expression":
		object := callee.ChildByFieldName("object")
		property := callee.ChildByFieldName("property")
		if object == nil || property == nil || object.Kind() != "identifier" {
			return false
		}
		return isReactWrapper(object.Utf8Text(w.src) + "." + property.Utf8Text(w.src))
	}
	return false
}

// add records a definition anchored at node, whose first line is where the
// ignore directive is looked up.
func (w *definitionWalker) add(name string, t ElementType, anchor *ts.Node) {
	line := int(anchor.StartPosition().Row) + 1
	w.defs = append(w.defs, ElementDefinition{
		Name:         name,
		Type:         t,
		File:         w.path,
		Line:         line,
		ShouldIgnore: w.lines.suppressed(line),
	})
}

// hasToken reports whether n has an anonymous child of the given kind.
func hasToken(n *ts.Node, kind string) bool {
	for i := uint(0); i < n.ChildCount(); i++ {
		if c := n.Child(i); c != nil && !c.IsNamed() && c.Kind() == kind {
			return true
		}
	}
	return false
}

func fieldText(n *ts.Node, field string, src []byte) string {
	if c := n.ChildByFieldName(field); c != nil {
		return c.Utf8Text(src)
	}
	return ""
}
