package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/tsunused/pkg/config"
	"github.com/gnana997/tsunused/pkg/parser"
	"github.com/gnana997/tsunused/pkg/util"
)

type def struct {
	Name    string
	Type    ElementType
	Ignored bool
}

func summarize(defs []ElementDefinition) []def {
	out := make([]def, 0, len(defs))
	for _, d := range defs {
		out = append(out, def{d.Name, d.Type, d.ShouldIgnore})
	}
	return out
}

func newASTStrategy(t *testing.T, types config.DetectionTypes, fallback bool) *ASTStrategy {
	t.Helper()
	pm := parser.NewParserManager(util.NopLogger(), 2)
	t.Cleanup(func() { pm.Close() })

	s, err := NewASTStrategy(pm, types, fallback, util.NopLogger())
	require.NoError(t, err)
	return s
}

const componentsFixture = `import React, { memo, forwardRef } from 'react';

export const Button = () => <button />;
export const Card = memo(() => <div />);
export const Input = React.forwardRef((props, ref) => <input ref={ref} />);
export const useToggle = () => {};
export const formatDate = (d: Date): string => d.toISOString();
export const MAX_ITEMS = 10;
export const API_V2 = () => 'v2';
export const defaultTheme = { color: 'red' };
export const Config = { a: 1 };
export let counter = 0;
export function helper() {}
export function Legacy() { return null; }
export type ButtonProps = { label: string };
export type lowerType = string;
export interface CardProps { title: string }
export enum Color { Red, Blue }
export default function Page() { return <Button />; }
function internal() { const Local = () => null; return Local; }
export { internal };
export { Remote } from './remote';
`

func TestASTStrategy_ExtractDefinitions(t *testing.T) {
	s := newASTStrategy(t, config.AllDetectionTypes(), false)

	defs, err := s.ExtractDefinitions("src/components.tsx", []byte(componentsFixture))
	require.NoError(t, err)

	assert.Equal(t, []def{
		{"Button", Component, false},
		{"Card", Component, false},
		{"Input", Component, false},
		{"useToggle", Function, false},
		{"formatDate", Function, false},
		{"MAX_ITEMS", Variable, false},
		{"API_V2", Component, false},
		{"helper", Function, false},
		{"ButtonProps", Type, false},
		{"CardProps", Interface, false},
		{"Color", Enum, false},
		{"Page", Component, false},
	}, summarize(defs))

	for _, d := range defs {
		assert.Equal(t, "src/components.tsx", d.File)
	}
	assert.Equal(t, 3, defs[0].Line)
	assert.Equal(t, 19, defs[len(defs)-1].Line)
}

func TestASTStrategy_NamingConventionGating(t *testing.T) {
	s := newASTStrategy(t, config.AllDetectionTypes(), false)

	src := `export const myHelper = () => {};
export const MyHelper = () => {};
export const MY_CONST = 1;
`
	defs, err := s.ExtractDefinitions("a.ts", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, []def{
		{"myHelper", Function, false},
		{"MyHelper", Component, false},
		{"MY_CONST", Variable, false},
	}, summarize(defs))
}

func TestASTStrategy_DetectionTypesGateRules(t *testing.T) {
	src := `export const Button = () => null;
export const FOO = () => 1;
export const helper = () => 1;
export type Props = {};
`
	s := newASTStrategy(t, config.DetectionTypes{Functions: true, Variables: true}, false)
	defs, err := s.ExtractDefinitions("a.ts", []byte(src))
	require.NoError(t, err)

	// With components off, FOO falls through to the Variable rule.
	assert.Equal(t, []def{
		{"FOO", Variable, false},
		{"helper", Function, false},
	}, summarize(defs))
}

func TestASTStrategy_Suppression(t *testing.T) {
	s := newASTStrategy(t, config.AllDetectionTypes(), false)

	src := `// @ts-unused-ignore
export function ignoredHelper() {}
export const KEPT = 1;
export type Inline = string; // @ts-unused-ignore
  // @ts-unused-ignore
export interface Indented {}
// @ts-unused-ignore because legacy
export enum NotIgnored { A }
`
	defs, err := s.ExtractDefinitions("a.ts", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, []def{
		{"ignoredHelper", Function, true},
		{"KEPT", Variable, false},
		{"Inline", Type, true},
		{"Indented", Interface, true},
		{"NotIgnored", Enum, false},
	}, summarize(defs))

	candidates := s.GroupDefinitions(defs)
	require.Len(t, candidates, 2)
	assert.Equal(t, "KEPT", candidates[0].Name)
	assert.Equal(t, "NotIgnored", candidates[1].Name)
}

func TestASTStrategy_AmbientDeclarations(t *testing.T) {
	s := newASTStrategy(t, config.AllDetectionTypes(), false)

	src := `export declare function parse(input: string): Node;
export declare function parse(input: Buffer): Node;
export declare const VERSION: string;
export declare interface Options { strict: boolean }
export declare enum Mode { Fast, Safe }
`
	defs, err := s.ExtractDefinitions("types/lib.d.ts", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, []def{
		{"parse", Function, false},
		{"Options", Interface, false},
		{"Mode", Enum, false},
	}, summarize(defs))
}

func TestASTStrategy_NestedDeclarationsIgnored(t *testing.T) {
	s := newASTStrategy(t, config.AllDetectionTypes(), false)

	src := `export function outer() {
  const INNER = 1;
  const Inner = () => null;
  return [INNER, Inner];
}
namespace N { export const HIDDEN = 1; }
`
	defs, err := s.ExtractDefinitions("a.ts", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, []def{{"outer", Function, false}}, summarize(defs))
}

const referencesFixture = `import DefaultThing, { Widget, helper as h } from './a';
import * as UI from './ui';
import { Remote } from './remote';
export { Reexported } from './other';

export function App({ title }: Props) {
  const value = h(FORMAT);
  return (
    <UI.Panel>
      <Widget label={title} />
      <span>{value}</span>
    </UI.Panel>
  );
}
const obj = { shorthand };
UI.makeThing();
`

func findRefs(refs []ElementReference, name string) []ElementReference {
	var out []ElementReference
	for _, r := range refs {
		if r.Name == name {
			out = append(out, r)
		}
	}
	return out
}

func hasRef(refs []ElementReference, name, context string) bool {
	for _, r := range findRefs(refs, name) {
		if r.Context == context {
			return true
		}
	}
	return false
}

func TestASTStrategy_ScanReferences(t *testing.T) {
	s := newASTStrategy(t, config.AllDetectionTypes(), false)

	out, err := s.ScanReferences("src/b.tsx", []byte(referencesFixture))
	require.NoError(t, err)
	assert.Equal(t, "src/b.tsx", out.File)
	assert.Nil(t, out.Source)
	refs := out.References

	// imports
	assert.True(t, hasRef(refs, "DefaultThing", ContextImport))
	assert.True(t, hasRef(refs, "Widget", ContextImport))
	assert.True(t, hasRef(refs, "helper", ContextImport), "named imports record the exported name")
	assert.False(t, hasRef(refs, "h", ContextImport))
	assert.True(t, hasRef(refs, "UI", ContextImport))
	assert.True(t, hasRef(refs, "Remote", ContextImport))

	// jsx
	assert.True(t, hasRef(refs, "Widget", ContextJSX))
	assert.True(t, hasRef(refs, "UI", ContextJSX))
	assert.True(t, hasRef(refs, "Panel", ContextJSX), "members of namespace imports")
	assert.True(t, hasRef(refs, "span", ContextJSX))

	// usages
	assert.True(t, hasRef(refs, "h", ContextUsage))
	assert.True(t, hasRef(refs, "FORMAT", ContextUsage))
	assert.True(t, hasRef(refs, "Props", ContextUsage))
	assert.True(t, hasRef(refs, "title", ContextUsage))
	assert.True(t, hasRef(refs, "value", ContextUsage))
	assert.True(t, hasRef(refs, "shorthand", ContextUsage))
	assert.True(t, hasRef(refs, "makeThing", ContextUsage))

	// never references
	assert.Empty(t, findRefs(refs, "Reexported"))
	assert.Empty(t, findRefs(refs, "App"))
	assert.Empty(t, findRefs(refs, "obj"))

	// precise lines
	widget := findRefs(refs, "Widget")
	require.Len(t, widget, 2)
	assert.Equal(t, 1, widget[0].Line)
	assert.Equal(t, 10, widget[1].Line)
}

func TestASTStrategy_IndexExcludesDefiningFile(t *testing.T) {
	s := newASTStrategy(t, config.AllDetectionTypes(), false)

	files := []FileReferences{
		{File: "a.ts", References: []ElementReference{
			{Name: "helper", File: "a.ts", Line: 3, Context: ContextUsage},
		}},
		{File: "b.ts", References: []ElementReference{
			{Name: "helper", File: "b.ts", Line: 1, Context: ContextImport},
			{Name: "helper", File: "b.ts", Line: 4, Context: ContextUsage},
			{Name: "other", File: "b.ts", Line: 5, Context: ContextUsage},
		}},
		{File: "c.ts", References: []ElementReference{
			{Name: "helper", File: "c.ts", Line: 2, Context: ContextUsage},
		}},
	}
	helper := Candidate{Name: "helper", Type: Function, Files: []string{"a.ts"}}
	lonely := Candidate{Name: "lonely", Type: Function, Files: []string{"a.ts"}}

	idx, err := s.BuildIndex(files, []Candidate{helper, lonely})
	require.NoError(t, err)

	usages, err := idx.Lookup(helper)
	require.NoError(t, err)
	assert.Equal(t, []ElementUsage{
		{File: "b.ts", Usages: []Usage{{1, ContextImport}, {4, ContextUsage}}},
		{File: "c.ts", Usages: []Usage{{2, ContextUsage}}},
	}, usages)

	usages, err = idx.Lookup(lonely)
	require.NoError(t, err)
	assert.Empty(t, usages)

	selfOnly, err := idx.Lookup(Candidate{Name: "helper", Type: Function, Files: []string{"a.ts", "b.ts", "c.ts"}})
	require.NoError(t, err)
	assert.Empty(t, selfOnly)
}

func TestASTStrategy_SyntaxErrorFailsFast(t *testing.T) {
	s := newASTStrategy(t, config.AllDetectionTypes(), false)

	src := []byte("export function valid() {}\nexport const broken = (;\n")
	_, err := s.ExtractDefinitions("broken.ts", src)
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrParse)
	assert.Contains(t, err.Error(), "broken.ts")

	_, err = s.ScanReferences("broken.ts", src)
	assert.ErrorIs(t, err, util.ErrParse)
}

func TestASTStrategy_ParseFallback(t *testing.T) {
	s := newASTStrategy(t, config.AllDetectionTypes(), true)

	src := []byte("export function valid() {}\nexport const broken = (;\nuseThing(Widget)\n")
	defs, err := s.ExtractDefinitions("broken.ts", src)
	require.NoError(t, err)
	assert.Contains(t, summarize(defs), def{"valid", Function, false})

	out, err := s.ScanReferences("broken.ts", src)
	require.NoError(t, err)
	assert.True(t, hasRef(out.References, "Widget", ContextUsage))
	assert.Equal(t, 3, findRefs(out.References, "Widget")[0].Line)
}

func TestASTStrategy_UnsupportedExtension(t *testing.T) {
	s := newASTStrategy(t, config.AllDetectionTypes(), false)

	_, err := s.ExtractDefinitions("styles.css", []byte("a {}"))
	assert.ErrorIs(t, err, util.ErrParse)
}

func TestNewStrategy(t *testing.T) {
	pm := parser.NewParserManager(util.NopLogger(), 1)
	defer pm.Close()

	cfg := config.Default()
	s, err := NewStrategy(cfg, pm, nil)
	require.NoError(t, err)
	assert.Equal(t, config.StrategyAST, s.Name())

	cfg.Strategy = config.StrategyPattern
	s, err = NewStrategy(cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, config.StrategyPattern, s.Name())

	cfg.Strategy = config.StrategyAST
	_, err = NewStrategy(cfg, nil, nil)
	assert.ErrorIs(t, err, util.ErrConfig)

	cfg.Strategy = "magic"
	_, err = NewStrategy(cfg, pm, nil)
	assert.ErrorIs(t, err, util.ErrConfig)
}
