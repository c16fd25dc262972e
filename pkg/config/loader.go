package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/gnana997/tsunused/pkg/util"
)

// EnvPrefix namespaces environment overrides, e.g. TSUNUSED_STRATEGY=pattern.
const EnvPrefix = "TSUNUSED"

// Load resolves the configuration at path, or DefaultConfigFile when path is
// empty. A missing file is not an error: Load returns the defaults (with
// environment overrides applied) and found=false.
//
// Errors:
//   - extension other than .json: KindConfig
//   - unreadable file: KindIO
//   - malformed JSON: KindSerialization
//   - values that fail Validate: KindConfig
func Load(path string) (cfg *Configuration, found bool, err error) {
	if path == "" {
		path = DefaultConfigFile
	}

	v := newViper()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, false, util.NewError(util.KindIO, path, err)
	default:
		found = true
	}

	if found {
		if ext := strings.ToLower(filepath.Ext(path)); ext != ".json" {
			return nil, false, util.Errorf(util.KindConfig, path, "unsupported configuration format %q: only JSON is supported", ext)
		}
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, false, util.NewError(util.KindSerialization, path, err)
		}
		if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
			return nil, false, util.NewError(util.KindSerialization, path, err)
		}
	}

	cfg = &Configuration{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, false, util.NewError(util.KindConfig, path, err)
	}

	switch {
	case !found:
		cfg.CI = DefaultCIConfig()
	case v.IsSet("ci"):
		ci := DefaultCIConfig()
		if err := v.UnmarshalKey("ci", ci); err != nil {
			return nil, false, util.NewError(util.KindConfig, path, err)
		}
		cfg.CI = ci
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return cfg, found, nil
}

// newViper returns a viper instance with every key defaulted, so that
// partial objects in the file and TSUNUSED_* variables both resolve.
// ci has no defaults on purpose: its absence from a config file means
// "no CI policy".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("json")

	v.SetDefault("search_dirs", DefaultSearchDirs())
	v.SetDefault("exclude_patterns", DefaultExcludePatterns())
	v.SetDefault("extensions", DefaultExtensions())
	v.SetDefault("strategy", string(StrategyAST))
	v.SetDefault("workers", 0)
	v.SetDefault("parse_fallback", false)
	v.SetDefault("respect_gitignore", false)

	all := AllDetectionTypes()
	v.SetDefault("detection_types.components", all.Components)
	v.SetDefault("detection_types.types", all.Types)
	v.SetDefault("detection_types.interfaces", all.Interfaces)
	v.SetDefault("detection_types.functions", all.Functions)
	v.SetDefault("detection_types.variables", all.Variables)
	v.SetDefault("detection_types.enums", all.Enums)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}
