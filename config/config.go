// Package config loads actorbundle.yaml, the project file describing where
// modules come from, which variants to build, and where bundles go.
//
// Example:
//
//	output_dir: build/bundles
//	hash: blake2b-256
//	compression: zstd
//	validate_wasm: true
//	required_exports: [invoke]
//	source:
//	  dir: target/wasm
//	variants:
//	  - name: localnet
//	    features: [min-power-2k, small-deals]
//	publish:
//	  write_policy: all
//	  backends:
//	    - name: localfs
//	      config: {localfs-dir: /var/lib/actorbundle/blocks}
//	    - name: ipfs
//	      config: {ipfs-path: /var/lib/ipfs, ipfs-pin: "true"}
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"xdao.co/actorbundle/bundle"
	"xdao.co/actorbundle/cidutil"
	"xdao.co/actorbundle/internal/logging"
	"xdao.co/actorbundle/source"
	"xdao.co/actorbundle/storage/car"
	"xdao.co/actorbundle/variant"
)

// DefaultFile is the config file name looked up in the working directory.
const DefaultFile = "actorbundle.yaml"

type Config struct {
	OutputDir       string   `yaml:"output_dir"`
	Hash            string   `yaml:"hash"`
	Compression     string   `yaml:"compression"`
	Workers         int      `yaml:"workers"`
	Parallel        int      `yaml:"parallel"`
	ValidateWasm    bool     `yaml:"validate_wasm"`
	RequiredExports []string `yaml:"required_exports"`

	Source   SourceConfig      `yaml:"source"`
	Variants []variant.Override `yaml:"variants"`
	Publish  *Publish          `yaml:"publish"`
	Signing  *Signing          `yaml:"signing"`
	Log      logging.Config    `yaml:"log"`
}

// SourceConfig selects a module source: a directory of compiled modules,
// or a compiler command whose output lands under OutDir.
type SourceConfig struct {
	Dir           string        `yaml:"dir"`
	IgnoreUnknown bool          `yaml:"ignore_unknown"`
	Command       string        `yaml:"command"`
	Args          []string      `yaml:"args"`
	Env           []string      `yaml:"env"`
	OutDir        string        `yaml:"out_dir"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Signing configures release attestations.
type Signing struct {
	Alg     string `yaml:"alg"`
	Hash    string `yaml:"hash"`
	KeyFile string `yaml:"key_file"`
	KeyName string `yaml:"key_name"`
	// PerVariant derives a separate key per variant from the configured seed.
	PerVariant bool `yaml:"per_variant"`
}

// Load reads and validates a config file. Unknown keys are rejected.
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("config: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return Parse(b)
}

// Parse decodes YAML config bytes.
func Parse(b []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if _, err := cidutil.ParseHashFunc(c.Hash); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := car.ParseCompression(c.Compression); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Workers < 0 || c.Parallel < 0 {
		return errors.New("config: workers and parallel must not be negative")
	}
	if c.Source.Dir != "" && c.Source.Command != "" {
		return errors.New("config: source.dir and source.command are mutually exclusive")
	}
	if c.Source.Command != "" && c.Source.OutDir == "" {
		return errors.New("config: source.out_dir is required with source.command")
	}
	if _, err := c.VariantSet(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Publish != nil {
		if err := c.Publish.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// VariantSet returns the built-in variants with this file's overrides applied.
func (c Config) VariantSet() (*variant.Set, error) {
	base, err := variant.NewSet(variant.Builtins())
	if err != nil {
		return nil, err
	}
	if len(c.Variants) == 0 {
		return base, nil
	}
	return base.Merge(c.Variants)
}

// BuildOptions returns the bundle options shared by every variant.
func (c Config) BuildOptions() (bundle.Options, error) {
	hash, err := cidutil.ParseHashFunc(c.Hash)
	if err != nil {
		return bundle.Options{}, err
	}
	comp, err := car.ParseCompression(c.Compression)
	if err != nil {
		return bundle.Options{}, err
	}
	return bundle.Options{
		Hash:            hash,
		ValidateWasm:    c.ValidateWasm,
		RequiredExports: c.RequiredExports,
		Workers:         c.Workers,
		Compression:     comp,
	}, nil
}

// ModuleSource builds the configured source. A dir override (for example
// from a command-line flag) takes precedence over the file.
func (c Config) ModuleSource(dirOverride string) (source.Source, error) {
	switch {
	case dirOverride != "":
		return source.Dir{Root: dirOverride, IgnoreUnknown: c.Source.IgnoreUnknown}, nil
	case c.Source.Command != "":
		return source.Command{
			Path:          c.Source.Command,
			Args:          c.Source.Args,
			Env:           c.Source.Env,
			OutDir:        c.Source.OutDir,
			Timeout:       c.Source.Timeout,
			IgnoreUnknown: c.Source.IgnoreUnknown,
		}, nil
	case c.Source.Dir != "":
		return source.Dir{Root: c.Source.Dir, IgnoreUnknown: c.Source.IgnoreUnknown}, nil
	default:
		return nil, errors.New("config: no module source configured")
	}
}
