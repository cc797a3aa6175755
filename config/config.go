// Package config handles baseline.toml engine configuration.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/BurntSushi/toml"
	"github.com/chazu/baseline/ic"
)

// FileName is the name of the configuration file.
const FileName = "baseline.toml"

//go:embed schema.cue
var schemaSource string

// Config represents a baseline.toml configuration.
type Config struct {
	Engine Engine         `toml:"engine"`
	Caps   map[string]int `toml:"caps"`
	Sweep  Sweep          `toml:"sweep"`
	Log    Log            `toml:"log"`
	Store  Store          `toml:"store"`
	Server Server         `toml:"server"`

	// Dir is the directory containing the baseline.toml file (set at load time).
	Dir string `toml:"-"`
}

// Engine configures stub spaces and tier-up reporting.
type Engine struct {
	OptimizedSpaceLimit int    `toml:"optimized-space-limit"`
	FallbackSpaceLimit  int    `toml:"fallback-space-limit"`
	UseCountThreshold   uint64 `toml:"use-count-threshold"`
	Iterations          int    `toml:"iterations"`
}

// Sweep configures the background sweep requester.
type Sweep struct {
	Enabled  bool   `toml:"enabled"`
	Interval string `toml:"interval"`
	Purge    bool   `toml:"purge"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Store configures the profile store.
type Store struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// Server configures the inspection server.
type Server struct {
	Addr string `toml:"addr"`
}

// Default returns the configuration used when no baseline.toml exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Engine.Iterations == 0 {
		c.Engine.Iterations = 1000
	}
	if c.Sweep.Interval == "" {
		c.Sweep.Interval = ic.DefaultSweepInterval.String()
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.DSN == "" {
		c.Store.DSN = "baseline-profiles.db"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "localhost:7411"
	}
}

// Load parses a baseline.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	if c.Store.DSN != "" && !filepath.IsAbs(c.Store.DSN) && c.Store.DSN != ":memory:" {
		c.Store.DSN = filepath.Join(c.Dir, c.Store.DSN)
	}
	return c, nil
}

// Parse decodes and validates configuration text.
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	var c Config
	if _, err := toml.Decode(string(data), &c); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	for family := range c.Caps {
		if _, ok := familyKind(family); !ok {
			return nil, fmt.Errorf("caps: unknown family %q", family)
		}
	}
	c.applyDefaults()
	return &c, nil
}

// validate checks the decoded document against the embedded CUE schema.
func validate(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	v := schema.Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// FindAndLoad walks up from startDir to find a baseline.toml file,
// then loads and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// familyKind maps a caps key such as "GetProp" to its fallback kind.
func familyKind(family string) (ic.Kind, bool) {
	k, ok := ic.KindByName(family + "_Fallback")
	if !ok {
		return ic.KindInvalid, false
	}
	return k, true
}

// SweepInterval returns the parsed sweep interval.
func (c *Config) SweepInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Sweep.Interval)
	if err != nil {
		return 0, fmt.Errorf("sweep interval: %w", err)
	}
	return d, nil
}

// EngineOptions converts the configuration into engine options.
func (c *Config) EngineOptions() ic.Options {
	opts := ic.Options{
		OptimizedSpaceLimit: c.Engine.OptimizedSpaceLimit,
		FallbackSpaceLimit:  c.Engine.FallbackSpaceLimit,
		UseCountThreshold:   c.Engine.UseCountThreshold,
	}
	if len(c.Caps) > 0 {
		opts.Caps = make(map[ic.Kind]int, len(c.Caps))
		for family, n := range c.Caps {
			if k, ok := familyKind(family); ok {
				opts.Caps[k] = n
			}
		}
	}
	return opts
}

// Families lists the cap keys accepted in the [caps] section.
func Families() []string {
	var out []string
	for _, k := range ic.SpecializingKinds() {
		out = append(out, strings.TrimSuffix(k.String(), "_Fallback"))
	}
	sort.Strings(out)
	return out
}
