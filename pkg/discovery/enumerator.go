package discovery

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gitignore "github.com/monochromegane/go-gitignore"

	"github.com/gnana997/tsunused/pkg/util"
	"github.com/gnana997/tsunused/pkg/workerpool"
)

// Options configures an Enumerator.
type Options struct {
	SearchDirs       []string
	Extensions       []string
	ExcludePatterns  []string
	RespectGitignore bool
	Logger           *slog.Logger
}

// FileSets holds both enumerations of one walk.
type FileSets struct {
	// Definitions is the filtered set: files that passed exclusion.
	Definitions []string
	// References is the unfiltered set: all files with a matching extension.
	References []string
}

// Enumerator walks search directories and lists source files.
type Enumerator struct {
	dirs       []string
	extensions map[string]bool
	excluder   *Excluder
	gitignore  bool
	logger     *slog.Logger
}

// NewEnumerator creates an Enumerator. Extensions are compared
// case-insensitively against the last extension of each file name.
func NewEnumerator(opts Options) *Enumerator {
	exts := make(map[string]bool, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		exts[strings.ToLower(ext)] = true
	}
	return &Enumerator{
		dirs:       opts.SearchDirs,
		extensions: exts,
		excluder:   NewExcluder(opts.ExcludePatterns),
		gitignore:  opts.RespectGitignore,
		logger:     util.LoggerOrDefault(opts.Logger),
	}
}

// candidate is one enumerated file with its exclusion verdict.
type candidate struct {
	path     string
	excluded bool
}

// EnumerateAll walks every search dir once (dirs in parallel on pool) and
// returns both the filtered and the unfiltered set.
//
// Search dirs that do not exist contribute nothing. Any other walk error
// aborts with a KindIO error. Each list is sorted per search dir, keeps the
// search dir order, and never repeats a path.
func (e *Enumerator) EnumerateAll(ctx context.Context, pool *workerpool.Pool) (FileSets, error) {
	start := time.Now()

	perDir, err := workerpool.Map(ctx, pool, e.dirs, e.walkDir)
	if err != nil {
		return FileSets{}, err
	}

	var sets FileSets
	seen := make(map[string]bool)
	for _, files := range perDir {
		for _, c := range files {
			key := filepath.Clean(c.path)
			if seen[key] {
				continue
			}
			seen[key] = true
			sets.References = append(sets.References, c.path)
			if !c.excluded {
				sets.Definitions = append(sets.Definitions, c.path)
			}
		}
	}

	e.logger.Debug("enumeration complete",
		"dirs", len(e.dirs),
		"definition_files", len(sets.Definitions),
		"reference_files", len(sets.References),
		"ms", time.Since(start).Milliseconds())

	return sets, nil
}

// walkDir lists matching regular files under dir.
func (e *Enumerator) walkDir(ctx context.Context, dir string) ([]candidate, error) {
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			e.logger.Debug("search dir does not exist, skipping", "dir", dir)
			return nil, nil
		}
		return nil, util.NewError(util.KindIO, dir, err)
	}

	ignores, err := e.loadGitignores(dir)
	if err != nil {
		return nil, err
	}

	var files []candidate
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return util.NewError(util.KindIO, path, walkErr)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if len(ignores) > 0 && path != dir && ignored(ignores, path, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if !e.extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		files = append(files, candidate{path: path, excluded: e.excluder.Match(path)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, nil
}

// loadGitignores returns matchers for dir/.gitignore and ./.gitignore.
func (e *Enumerator) loadGitignores(dir string) ([]gitignore.IgnoreMatcher, error) {
	if !e.gitignore {
		return nil, nil
	}

	var candidates []string
	for _, p := range []string{filepath.Join(dir, ".gitignore"), ".gitignore"} {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, util.NewError(util.KindIO, p, err)
		}
		if len(candidates) == 0 || candidates[0] != abs {
			candidates = append(candidates, abs)
		}
	}

	var matchers []gitignore.IgnoreMatcher
	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		m, err := gitignore.NewGitIgnore(p)
		if err != nil {
			return nil, util.NewError(util.KindIO, p, err)
		}
		matchers = append(matchers, m)
	}
	return matchers, nil
}

func ignored(matchers []gitignore.IgnoreMatcher, path string, isDir bool) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, m := range matchers {
		if m.Match(abs, isDir) {
			return true
		}
	}
	return false
}
