package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/gnana997/tsunused/pkg/util"
)

// AdjustForMonorepo rewrites search dirs for workspace layouts.
//
// root must contain package.json. The tree counts as a monorepo when that
// manifest declares "workspaces" or a pnpm-workspace.yaml next to it lists
// packages.
// When it does and root/apps exists, every search dir d becomes
// <root>/apps/<app>/d for each app directory, sorted by app name.
//
// The second return value reports whether anything changed.
func AdjustForMonorepo(root string, cfg *Configuration) (*Configuration, bool, error) {
	manifest := filepath.Join(root, "package.json")
	data, err := os.ReadFile(manifest)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, false, nil
	}
	if err != nil {
		return nil, false, util.NewError(util.KindIO, manifest, err)
	}

	var pkg map[string]json.RawMessage
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, false, util.NewError(util.KindSerialization, manifest, err)
	}

	_, hasWorkspaces := pkg["workspaces"]
	if !hasWorkspaces {
		ok, err := pnpmWorkspace(filepath.Join(root, "pnpm-workspace.yaml"))
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return cfg, false, nil
		}
	}

	entries, err := os.ReadDir(filepath.Join(root, "apps"))
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, false, nil
	}
	if err != nil {
		return nil, false, util.NewError(util.KindIO, filepath.Join(root, "apps"), err)
	}

	var apps []string
	for _, e := range entries {
		if e.IsDir() {
			apps = append(apps, e.Name())
		}
	}
	if len(apps) == 0 {
		return cfg, false, nil
	}
	sort.Strings(apps)

	dirs := make([]string, 0, len(apps)*len(cfg.SearchDirs))
	for _, app := range apps {
		for _, dir := range cfg.SearchDirs {
			dirs = append(dirs, filepath.ToSlash(filepath.Join(root, "apps", app, dir)))
		}
	}

	out := cfg.Clone()
	out.SearchDirs = dirs
	return out, true, nil
}

// pnpmWorkspace reports whether path is a pnpm workspace file with at least
// one package glob.
func pnpmWorkspace(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, util.NewError(util.KindIO, path, err)
	}

	var ws struct {
		Packages []string `yaml:"packages"`
	}
	if err := yaml.Unmarshal(data, &ws); err != nil {
		return false, util.NewError(util.KindSerialization, path, err)
	}
	return len(ws.Packages) > 0, nil
}
