package detector

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/tsunused/pkg/config"
	"github.com/gnana997/tsunused/pkg/extractor"
	"github.com/gnana997/tsunused/pkg/indexer"
	"github.com/gnana997/tsunused/pkg/util"
	"github.com/gnana997/tsunused/pkg/workerpool"
)

// writeFile creates dir/name with content, creating parent directories.
func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// project writes files into a fresh temp dir and makes it the working
// directory, so search dirs stay relative and never match exclude
// substrings of the temp path.
func project(t *testing.T, files map[string]string) {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		writeFile(t, root, name, content)
	}
	t.Chdir(root)
}

func testConfig(strategy config.Strategy) *config.Configuration {
	cfg := config.Default()
	cfg.Strategy = strategy
	return cfg
}

func detect(t *testing.T, cfg *config.Configuration, opts ...Option) *DetectionResult {
	t.Helper()
	opts = append([]Option{
		WithLogger(util.NopLogger()),
		WithPool(workerpool.New(4, util.NopLogger())),
	}, opts...)

	d, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	result, err := d.Detect(context.Background())
	require.NoError(t, err)
	require.Equal(t, result.Total, len(result.Used)+len(result.Unused))
	return result
}

func names(infos []ElementInfo) []string {
	out := make([]string, 0, len(infos))
	for _, info := range infos {
		out = append(out, info.Name)
	}
	return out
}

func TestDetect_UnreferencedHelper(t *testing.T) {
	project(t, map[string]string{
		"src/a.ts": "export function helper() {}\n",
		"src/b.ts": "const local = 1\nconsole.log(local)\n",
	})

	for _, strategy := range []config.Strategy{config.StrategyAST, config.StrategyPattern} {
		t.Run(string(strategy), func(t *testing.T) {
			result := detect(t, testConfig(strategy))

			require.Len(t, result.Unused, 1)
			assert.Equal(t, ElementInfo{
				Name:            "helper",
				ElementType:     extractor.Function,
				DefinitionFiles: []string{filepath.Join("src", "a.ts")},
			}, result.Unused[0])
			assert.Empty(t, result.Used)
			assert.Equal(t, 1, result.Total)
		})
	}
}

func TestDetect_ImportedComponentIsUsed(t *testing.T) {
	project(t, map[string]string{
		"src/a.tsx": "export const Widget = () => <div/>\n",
		"src/b.tsx": "import { Widget } from './a';\n<Widget/>\n",
	})

	for _, strategy := range []config.Strategy{config.StrategyAST, config.StrategyPattern} {
		t.Run(string(strategy), func(t *testing.T) {
			result := detect(t, testConfig(strategy))

			require.Len(t, result.Used, 1)
			widget := result.Used[0]
			assert.Equal(t, "Widget", widget.Name)
			assert.Equal(t, extractor.Component, widget.ElementType)
			require.Len(t, widget.Usages, 1)
			assert.Equal(t, filepath.Join("src", "b.tsx"), widget.Usages[0].File)
			assert.NotEmpty(t, widget.Usages[0].Usages)
			assert.Empty(t, result.Unused)
		})
	}
}

func TestDetect_StrategiesAgreeOnBarrelsAndNamespaces(t *testing.T) {
	project(t, map[string]string{
		"src/barrel.tsx": "export const Barrel = () => <div/>\n",
		"src/index.ts":   "export { Barrel } from './barrel';\n",
		"src/ui.tsx":     "export const Btn = () => <button/>\n",
		"src/page.tsx":   "import * as UI from './ui';\nexport const Page = () => <UI.Btn/>\n",
	})

	for _, strategy := range []config.Strategy{config.StrategyAST, config.StrategyPattern} {
		t.Run(string(strategy), func(t *testing.T) {
			result := detect(t, testConfig(strategy))

			assert.Equal(t, []string{"Btn"}, names(result.Used))
			assert.Equal(t, []string{"Barrel", "Page"}, names(result.Unused), "a re-export is not a usage")
		})
	}
}

func TestDetect_UsageLinesAndContexts(t *testing.T) {
	project(t, map[string]string{
		"src/a.tsx": "export const Widget = () => <div/>\n",
		"src/b.tsx": "import { Widget } from './a';\n<Widget/>\n",
	})

	result := detect(t, testConfig(config.StrategyAST))
	require.Len(t, result.Used, 1)
	assert.Equal(t, []extractor.Usage{
		{Line: 1, Context: extractor.ContextImport},
		{Line: 2, Context: extractor.ContextJSX},
	}, result.Used[0].Usages[0].Usages)
}

func TestDetect_Suppression(t *testing.T) {
	project(t, map[string]string{
		"src/a.ts": "// @ts-unused-ignore\n" +
			"export function keptAbove() {}\n" +
			"export function keptInline() {} // @ts-unused-ignore\n" +
			"export function reported() {}\n",
	})

	for _, strategy := range []config.Strategy{config.StrategyAST, config.StrategyPattern} {
		t.Run(string(strategy), func(t *testing.T) {
			result := detect(t, testConfig(strategy))

			assert.Equal(t, []string{"reported"}, names(result.Unused))
			assert.Empty(t, result.Used)
			assert.Equal(t, 1, result.Total, "suppressed definitions are not counted")
		})
	}
}

func TestDetect_SelfReferencesDoNotCount(t *testing.T) {
	project(t, map[string]string{
		"src/a.ts": "export function countdown(n: number): number {\n" +
			"  return n <= 0 ? 0 : countdown(n - 1)\n" +
			"}\n" +
			"countdown(3)\n",
	})

	for _, strategy := range []config.Strategy{config.StrategyAST, config.StrategyPattern} {
		t.Run(string(strategy), func(t *testing.T) {
			result := detect(t, testConfig(strategy))
			assert.Equal(t, []string{"countdown"}, names(result.Unused))
		})
	}
}

func TestDetect_ExcludedFilesStillReference(t *testing.T) {
	project(t, map[string]string{
		"src/util.ts":      "export function helper() {}\n",
		"src/util.test.ts": "import { helper } from './util'\nexport const testOnly = () => helper()\n",
	})

	result := detect(t, testConfig(config.StrategyAST))

	assert.Equal(t, []string{"helper"}, names(result.Used))
	assert.Empty(t, result.Unused, "definitions of excluded files are not scanned")
	assert.Equal(t, filepath.Join("src", "util.test.ts"), result.Used[0].Usages[0].File)
}

func TestDetect_NamingConventionGating(t *testing.T) {
	project(t, map[string]string{
		"src/a.tsx": "export const myHelper = () => {}\n" +
			"export const MyHelper = () => {}\n" +
			"export const MY_CONST = 1\n",
	})

	result := detect(t, testConfig(config.StrategyAST))

	types := map[string]extractor.ElementType{}
	for _, info := range result.Unused {
		types[info.Name] = info.ElementType
	}
	assert.Equal(t, map[string]extractor.ElementType{
		"myHelper": extractor.Function,
		"MyHelper": extractor.Component,
		"MY_CONST": extractor.Variable,
	}, types)
}

func TestDetect_DetectionTypesGate(t *testing.T) {
	project(t, map[string]string{
		"src/a.ts": "export function helper() {}\n" +
			"export type Shape = { a: number }\n" +
			"export const LIMIT = 3\n",
	})

	cfg := testConfig(config.StrategyAST)
	cfg.DetectionTypes = config.DetectionTypes{Types: true}
	result := detect(t, cfg)

	assert.Equal(t, []string{"Shape"}, names(result.Unused))
}

func TestDetect_SortedAndCounted(t *testing.T) {
	project(t, map[string]string{
		"src/a.tsx": "export function zeta() {}\n" +
			"export function alpha() {}\n" +
			"export interface Props { id: string }\n" +
			"export const Card = (p: Props) => <div/>\n" +
			"export enum Mode { On, Off }\n",
		"src/b.tsx": "import { Card, alpha } from './a'\n" +
			"alpha()\n" +
			"export const Page = () => <Card id='x'/>\n",
	})

	result := detect(t, testConfig(config.StrategyAST))

	assert.Equal(t, []string{"Card", "alpha"}, names(result.Used))
	assert.Equal(t, []string{"Page", "Props", "zeta", "Mode"}, names(result.Unused))
	assert.Equal(t, 6, result.Total)

	assert.Equal(t, DetectionStats{Total: 2, Used: 1, Unused: 1}, result.ByType[extractor.Component])
	assert.Equal(t, DetectionStats{Total: 2, Used: 1, Unused: 1}, result.ByType[extractor.Function])
	assert.Equal(t, DetectionStats{Total: 1, Unused: 1}, result.ByType[extractor.Interface])
	assert.Equal(t, DetectionStats{Total: 1, Unused: 1}, result.ByType[extractor.Enum])
	_, ok := result.ByType[extractor.Variable]
	assert.False(t, ok, "types without instances have no entry")
	assert.Equal(t, 33, result.UsageRate())
}

func TestDetect_PatternGroupsByName(t *testing.T) {
	project(t, map[string]string{
		"src/a.ts": "export function shared() {}\n",
		"src/b.ts": "export function shared() {}\n",
	})

	ast := detect(t, testConfig(config.StrategyAST))
	assert.Len(t, ast.Unused, 2, "syntax-tree definitions are tracked independently")

	pattern := detect(t, testConfig(config.StrategyPattern))
	require.Len(t, pattern.Unused, 1)
	assert.Equal(t, []string{filepath.Join("src", "a.ts"), filepath.Join("src", "b.ts")}, pattern.Unused[0].DefinitionFiles)
}

func TestDetect_MissingSearchDir(t *testing.T) {
	project(t, map[string]string{})

	result := detect(t, testConfig(config.StrategyAST))
	assert.Zero(t, result.Total)
	assert.Empty(t, result.Used)
	assert.Empty(t, result.Unused)
	assert.Zero(t, result.UsageRate())
}

func TestDetect_SyntaxErrorFailsRun(t *testing.T) {
	project(t, map[string]string{
		"src/ok.ts":     "export function fine() {}\n",
		"src/broken.ts": "export const Broken = {{{{\n",
	})

	d, err := New(testConfig(config.StrategyAST), WithLogger(util.NopLogger()))
	require.NoError(t, err)
	defer d.Close()

	result, err := d.Detect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrParse)
	assert.Nil(t, result)

	cfg := testConfig(config.StrategyAST)
	cfg.ParseFallback = true
	recovered := detect(t, cfg)
	assert.Contains(t, names(recovered.Unused), "fine")
}

func TestDetect_CacheReuse(t *testing.T) {
	project(t, map[string]string{
		"src/a.tsx": "export const Widget = () => <div/>\n",
		"src/b.tsx": "import { Widget } from './a';\n<Widget/>\n",
	})

	cache := indexer.NewExtractionCache(indexer.DefaultExtractionCacheConfig(), util.NopLogger())
	d, err := New(testConfig(config.StrategyAST), WithLogger(util.NopLogger()), WithCache(cache))
	require.NoError(t, err)
	defer d.Close()

	first, err := d.Detect(context.Background())
	require.NoError(t, err)
	assert.Zero(t, cache.Stats().Hits)

	second, err := d.Detect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Positive(t, cache.Stats().Hits)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Strategy = "semantic"

	_, err := New(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrConfig)
}

func TestUsageRate(t *testing.T) {
	tests := []struct {
		used, total, want int
	}{
		{0, 0, 0},
		{0, 4, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{1, 8, 13},
		{5, 5, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UsageRate(tt.used, tt.total), "%d/%d", tt.used, tt.total)
	}
}

func TestDetectionResult_Find(t *testing.T) {
	result := &DetectionResult{
		Used:   []ElementInfo{{Name: "Button", ElementType: extractor.Component}},
		Unused: []ElementInfo{{Name: "Button", ElementType: extractor.Type}, {Name: "other"}},
	}

	used, unused := result.Find("Button")
	assert.Len(t, used, 1)
	assert.Len(t, unused, 1)
	assert.Equal(t, extractor.Type, unused[0].ElementType)

	used, unused = result.Find("missing")
	assert.Empty(t, used)
	assert.Empty(t, unused)
}
