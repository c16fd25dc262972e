package parser

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/tsunused/pkg/util"
)

func newTestManager(t *testing.T, poolSize int) *ParserManager {
	t.Helper()
	manager := NewParserManager(util.NopLogger(), poolSize)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func TestParseTypeScript(t *testing.T) {
	manager := newTestManager(t, 2)

	tree, err := manager.Parse([]byte("export type Id = string;\nexport const x: number = 1;\n"), LanguageTypeScript, false)
	require.NoError(t, err)
	defer tree.Close()

	root := tree.RootNode()
	assert.Equal(t, "program", root.Kind())
	_, bad := SyntaxError(root)
	assert.False(t, bad)
}

func TestParseTSX(t *testing.T) {
	manager := newTestManager(t, 2)

	tree, err := manager.ParseFile([]byte("export const Widget = () => <div>hi</div>;\n"), "src/Widget.tsx")
	require.NoError(t, err)
	defer tree.Close()

	assert.Contains(t, tree.RootNode().ToSexp(), "jsx_element")
}

func TestParseJavaScriptWithJSX(t *testing.T) {
	manager := newTestManager(t, 2)

	tree, err := manager.ParseFile([]byte("export const Card = () => <section/>;\n"), "src/Card.jsx")
	require.NoError(t, err)
	defer tree.Close()

	assert.Contains(t, tree.RootNode().ToSexp(), "jsx_self_closing_element")
}

func TestParseDecorators(t *testing.T) {
	manager := newTestManager(t, 1)

	src := "@Component({})\nexport class Panel {\n  @Input() title = '';\n}\n"
	tree, err := manager.ParseFile([]byte(src), "panel.ts")
	require.NoError(t, err)
	defer tree.Close()

	_, bad := SyntaxError(tree.RootNode())
	assert.False(t, bad)
}

func TestParseAmbientDeclarations(t *testing.T) {
	manager := newTestManager(t, 1)

	src := "export declare function load(id: string): Promise<void>;\nexport declare const VERSION: string;\n"
	tree, err := manager.ParseFile([]byte(src), "types/env.d.ts")
	require.NoError(t, err)
	defer tree.Close()

	_, bad := SyntaxError(tree.RootNode())
	assert.False(t, bad)
}

func TestSyntaxError_DetectsBrokenSource(t *testing.T) {
	manager := newTestManager(t, 1)

	tree, err := manager.ParseFile([]byte("export const ok = 1;\nexport function (\n"), "broken.ts")
	require.NoError(t, err)
	defer tree.Close()

	_, bad := SyntaxError(tree.RootNode())
	assert.True(t, bad)
}

func TestParseFile_UnknownExtension(t *testing.T) {
	manager := newTestManager(t, 1)

	_, err := manager.ParseFile([]byte("x"), "style.css")
	assert.Error(t, err)
}

func TestParseFile_ConcurrentSharesBoundedPool(t *testing.T) {
	manager := newTestManager(t, 3)

	var wg sync.WaitGroup
	for i := 0; i < 24; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "a.ts"
			if i%2 == 0 {
				name = "a.tsx"
			}
			tree, err := manager.ParseFile([]byte("export const A = () => null;\n"), name)
			if assert.NoError(t, err) {
				tree.Close()
			}
		}(i)
	}
	wg.Wait()

	stats := manager.GetStats()
	assert.Equal(t, 24, stats.ParsesCalled)
	assert.Equal(t, 3, stats.PoolSize)
	assert.LessOrEqual(t, stats.ParsersCreated, 6)
}

func TestClose_ReleaseAfterCloseFreesParser(t *testing.T) {
	manager := NewParserManager(util.NopLogger(), 2)

	pool, err := manager.getOrCreatePool(LanguageTypeScript, false)
	require.NoError(t, err)
	checkedOut, err := pool.acquire()
	require.NoError(t, err)

	require.NoError(t, manager.Close())
	assert.NotPanics(t, func() { pool.release(checkedOut) })

	_, err = pool.acquire()
	assert.ErrorIs(t, err, util.ErrParse)
	assert.NotPanics(t, func() { pool.close() }, "second close is a no-op")
}

func TestClose_WhileParsing(t *testing.T) {
	manager := NewParserManager(util.NopLogger(), 4)
	src := []byte("export const A = () => <div>{[1, 2, 3].map(n => <span key={n}>{n}</span>)}</div>;\n")

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 20; j++ {
				tree, err := manager.ParseFile(src, "a.tsx")
				if err != nil {
					assert.ErrorIs(t, err, util.ErrParse)
					return
				}
				tree.Close()
			}
		}()
	}

	close(start)
	require.NoError(t, manager.Close())
	wg.Wait()

	_, err := manager.ParseFile(src, "a.tsx")
	assert.ErrorIs(t, err, util.ErrParse)
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want Language
		tsx  bool
	}{
		{"src/a.ts", LanguageTypeScript, false},
		{"src/a.mts", LanguageTypeScript, false},
		{"src/A.tsx", LanguageTypeScript, true},
		{"src/a.jsx", LanguageJavaScript, false},
		{"src/a.cjs", LanguageJavaScript, false},
		{"types/global.d.ts", LanguageTypeScript, false},
		{"README.md", LanguageUnknown, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectLanguage(tt.path), tt.path)
		assert.Equal(t, tt.tsx, IsTSXFile(tt.path), tt.path)
	}
	assert.Equal(t, "typescript", LanguageTypeScript.String())
	assert.Equal(t, "unknown", LanguageUnknown.String())
}
