// Package config loads healthpass configuration.
//
// Sources, lowest precedence first: schema defaults, a .cue or .yaml
// config file, a .env file, the process environment, explicit overrides
// (command-line flags). The merged result is unified with the embedded
// CUE schema and must be concrete.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Backend names.
const (
	BackendSQLite  = "sqlite"
	BackendLevelDB = "leveldb"
	BackendMemory  = "memory"
)

// Default database locations per backend.
const (
	DefaultSQLitePath  = "healthpass.db"
	DefaultLevelDBPath = "healthpass.ldb"
)

// DefaultEnvFile is read when LoadOptions.EnvFile is empty. It is optional.
const DefaultEnvFile = ".env"

// Environment variables.
const (
	EnvBackend = "HEALTHPASS_BACKEND"
	EnvPath    = "HEALTHPASS_PATH"
	EnvFormat  = "HEALTHPASS_FORMAT"
	EnvVerbose = "HEALTHPASS_VERBOSE"
)

// Config is the resolved configuration.
type Config struct {
	Backend string `json:"backend" yaml:"backend"`
	Path    string `json:"path" yaml:"path"`
	Format  string `json:"format" yaml:"format"`
	Verbose bool   `json:"verbose" yaml:"verbose"`
}

// DBPath returns Path, or the default location for the backend.
func (c *Config) DBPath() string {
	if c.Path != "" {
		return c.Path
	}
	switch c.Backend {
	case BackendLevelDB:
		return DefaultLevelDBPath
	case BackendSQLite:
		return DefaultSQLitePath
	}
	return ""
}

// LoadOptions controls Load.
type LoadOptions struct {
	// File is a .cue, .yaml or .yml config file. Empty means none.
	File string

	// EnvFile is a dotenv file. Empty means DefaultEnvFile if it exists.
	EnvFile string

	// LookupEnv reads the process environment. Nil means os.LookupEnv.
	LookupEnv func(string) (string, bool)

	// Overrides win over every other source. Keys are schema field names.
	Overrides map[string]any
}

// Load resolves the configuration from opts.
func Load(opts LoadOptions) (*Config, error) {
	values := map[string]any{}

	if opts.File != "" {
		fileValues, err := readFile(opts.File)
		if err != nil {
			return nil, err
		}
		maps.Copy(values, fileValues)
	}

	envValues, err := readEnv(opts)
	if err != nil {
		return nil, err
	}
	maps.Copy(values, envValues)
	maps.Copy(values, opts.Overrides)

	return resolve(values)
}

// Default returns the schema defaults.
func Default() *Config {
	cfg, err := resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema is invalid: %v", err))
	}
	return cfg
}

func resolve(values map[string]any) (*Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}

	if values == nil {
		values = map[string]any{}
	}
	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(values))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid configuration: %s", details(err))
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %s", details(err))
	}
	return &cfg, nil
}

// readFile parses a config file into plain values. Unification with the
// schema happens later, once every source is merged.
func readFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	values := map[string]any{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".cue":
		v := cuecontext.New().CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return nil, fmt.Errorf("parse %s: %s", path, details(err))
		}
		if err := v.Decode(&values); err != nil {
			return nil, fmt.Errorf("parse %s: %s", path, details(err))
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q (want .cue, .yaml or .yml)", ext)
	}
	return values, nil
}

// readEnv collects HEALTHPASS_* settings. The process environment wins
// over the dotenv file.
func readEnv(opts LoadOptions) (map[string]any, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	dotenv := map[string]string{}
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	parsed, err := godotenv.Read(envFile)
	switch {
	case err == nil:
		dotenv = parsed
	case errors.Is(err, os.ErrNotExist) && opts.EnvFile == "":
	default:
		return nil, fmt.Errorf("read env file: %w", err)
	}

	get := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	values := map[string]any{}
	for key, field := range map[string]string{
		EnvBackend: "backend",
		EnvPath:    "path",
		EnvFormat:  "format",
	} {
		if v, ok := get(key); ok && v != "" {
			values[field] = v
		}
	}
	if v, ok := get(EnvVerbose); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvVerbose, err)
		}
		values["verbose"] = b
	}
	return values, nil
}

// details flattens a CUE error list, keeping positions.
func details(err error) string {
	return strings.TrimSpace(cueerrors.Details(err, nil))
}
