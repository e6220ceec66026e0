package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/arthur-debert/distsync/pkg/errors"
	"github.com/arthur-debert/distsync/pkg/logging"
	"github.com/arthur-debert/distsync/pkg/materialize"
	"github.com/arthur-debert/distsync/pkg/paths"
	"github.com/arthur-debert/distsync/pkg/types"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	keyDelim  = "::"
	envPrefix = "DISTSYNC_"
)

// Load reads the configuration. An explicit path must exist. With an empty
// path the file is searched in $DISTSYNC_CONFIG, the working directory and
// the user configuration directory; finding none leaves the defaults.
func Load(path string) (*Config, error) {
	return LoadWithOverrides(path, nil)
}

// LoadWithOverrides is Load with a final layer of "::"-delimited keys, such
// as those parsed from --set flags, applied above environment variables.
func LoadWithOverrides(path string, overrides map[string]interface{}) (*Config, error) {
	logger := logging.GetLogger("config")

	explicit := path != ""
	if !explicit {
		path = discover()
	}

	k := koanf.New(keyDelim)

	// 1. Embedded defaults
	if err := k.Load(embedded(defaultConfig), toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to load defaults")
	}

	// 2. Configuration file
	baseDir, _ := os.Getwd()
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigLoad, "configuration file %s not found", path)
		}
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigParse, "failed to load configuration from %s", path)
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		baseDir = filepath.Dir(path)
	}

	// 3. Environment variables
	err := k.Load(env.Provider(envPrefix, keyDelim, func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", keyDelim)
	}), nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load environment variables")
	}

	// 4. Command line overrides
	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, keyDelim), nil); err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to apply overrides")
		}
	}

	// 5. Unmarshal
	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				stringToUsageContextHookFunc(),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigInvalid, "failed to decode configuration")
	}
	cfg.Path = path
	cfg.BaseDir = baseDir

	// 6. Post-process
	if err := postProcess(&cfg); err != nil {
		return nil, err
	}

	logger.Debug().
		Str("path", cfg.Path).
		Strs("environments", cfg.EnvironmentNames()).
		Msg("Configuration loaded")
	return &cfg, nil
}

// ParseOverrides turns key=value pairs into an override map. Keys use "::"
// between sections, e.g. sync::parallelism=2.
func ParseOverrides(pairs []string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.Newf(errors.ErrInvalidInput, "override %q is not key=value", pair)
		}
		out[key] = value
	}
	return out, nil
}

// discover returns the configuration file to use when none was given.
func discover() string {
	if p := os.Getenv(paths.EnvConfigFile); p != "" {
		return p
	}
	if wd, err := os.Getwd(); err == nil {
		if p := paths.FindConfigFile(wd); p != "" {
			return p
		}
	}
	return paths.FindConfigFile(paths.ConfigDir())
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	}
	return nil, errors.Newf(errors.ErrConfigLoad, "unsupported configuration format %s (use .toml or .yaml)", path)
}

func stringToUsageContextHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(types.UsageContext("")) {
			return data, nil
		}
		return types.ParseUsageContext(data.(string))
	}
}

func postProcess(cfg *Config) error {
	mode, err := materialize.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}
	cfg.Mode = string(mode)
	if cfg.Sync.Parallelism < 1 {
		cfg.Sync.Parallelism = 1
	}
	cfg.OutputDir = resolve(cfg.BaseDir, cfg.OutputDir)
	if err := checkOverrides("launch", cfg.Launch.Overrides); err != nil {
		return err
	}

	for name, env := range cfg.Environments {
		if env == nil {
			env = &Environment{}
			cfg.Environments[name] = env
		}
		env.Name = name
		if env.Root == "" {
			return errors.Newf(errors.ErrConfigInvalid, "environment %q has no root", name)
		}
		env.Root = resolve(cfg.BaseDir, env.Root)
		if env.Manifest != "" {
			env.Manifest = resolve(cfg.BaseDir, env.Manifest)
		}
		if env.Mode == "" {
			env.Mode = cfg.Mode
		}
		envMode, err := materialize.ParseMode(env.Mode)
		if err != nil {
			return errors.Wrapf(err, errors.ErrConfigInvalid, "environment %q", name)
		}
		env.Mode = string(envMode)
		if err := checkOverrides("environments."+name+".launch", env.Launch.Overrides); err != nil {
			return err
		}

		patterns, err := CompileRuntimePaths(env.RuntimePaths)
		if err != nil {
			return errors.Wrapf(err, errors.ErrInvalidRuntimePath, "environment %q", name)
		}
		env.Patterns = patterns
	}
	return nil
}

// CompileRuntimePaths compiles runtime path expressions, reporting the first
// invalid one as ErrInvalidRuntimePath.
func CompileRuntimePaths(exprs []string) ([]types.RuntimePathPattern, error) {
	patterns := make([]types.RuntimePathPattern, 0, len(exprs))
	for i, expr := range exprs {
		p, err := types.CompileRuntimePath(expr)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrInvalidRuntimePath, "invalid runtime path pattern %q", expr).
				WithDetail("index", i)
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

// checkOverrides rejects overrides that omit their context.
func checkOverrides(section string, overrides []OverrideConfig) error {
	for i, o := range overrides {
		if o.Context == "" {
			return errors.Newf(errors.ErrConfigInvalid, "%s.overrides[%d] has no context", section, i)
		}
	}
	return nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return filepath.Join(base, p)
}

// String summarizes the configuration for debug output.
func (c *Config) String() string {
	return fmt.Sprintf("config(path=%q, environments=%v)", c.Path, c.EnvironmentNames())
}
