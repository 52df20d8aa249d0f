package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"xdao.co/actorbundle/cidutil"
	"xdao.co/actorbundle/config"
	"xdao.co/actorbundle/source"
	"xdao.co/actorbundle/storage"
	"xdao.co/actorbundle/storage/car"
	"xdao.co/actorbundle/storage/registry"

	_ "xdao.co/actorbundle/storage/localfs"
)

const sample = `
output_dir: build
hash: blake3
compression: lz4
workers: 2
validate_wasm: true
required_exports: [invoke]
source:
  command: ./compile.sh
  args: [--release]
  out_dir: target/actors
  timeout: 90s
variants:
  - name: devnet
    features: [min-power-2g]
  - name: localnet
    features: [min-power-2k]
  - name: mainnet
    require_all: false
log:
  level: debug
  format: json
`

func TestParse_Sample(t *testing.T) {
	cfg, err := config.Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	opts, err := cfg.BuildOptions()
	if err != nil {
		t.Fatalf("BuildOptions: %v", err)
	}
	if opts.Hash != cidutil.Blake3 || opts.Compression != car.CompressionLZ4 || opts.Workers != 2 || !opts.ValidateWasm {
		t.Fatalf("options: %+v", opts)
	}
	src, err := cfg.ModuleSource("")
	if err != nil {
		t.Fatalf("ModuleSource: %v", err)
	}
	cmd, ok := src.(source.Command)
	if !ok || cmd.Timeout != 90*time.Second || cmd.OutDir != "target/actors" {
		t.Fatalf("source: %#v", src)
	}
	if dir, _ := cfg.ModuleSource("/override"); dir.(source.Dir).Root != "/override" {
		t.Fatalf("override ignored")
	}

	set, err := cfg.VariantSet()
	if err != nil {
		t.Fatalf("VariantSet: %v", err)
	}
	dev, _ := set.Lookup("devnet")
	if dev.Params.MinConsensusPower != 2<<30 {
		t.Fatalf("devnet override not applied: %+v", dev.Params)
	}
	if main, _ := set.Lookup("mainnet"); main.RequireAll {
		t.Fatalf("require_all: false not applied to mainnet")
	}
	if _, err := set.Lookup("localnet"); err != nil {
		t.Fatalf("localnet: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("log config: %+v", cfg.Log)
	}
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":      "outptu_dir: x\n",
		"bad hash":         "hash: md5\n",
		"bad compression":  "compression: brotli\n",
		"both sources":     "source: {dir: a, command: b, out_dir: c}\n",
		"command no out":   "source: {command: b}\n",
		"bad variant":      "variants: [{name: x, actors_version: nope}]\n",
		"bad write policy": "publish: {write_policy: some, backends: [{name: localfs}]}\n",
		"dup backend":      "publish: {backends: [{name: localfs}, {name: localfs}]}\n",
	}
	for name, doc := range cases {
		if _, err := config.Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.DefaultFile)
	if err := os.WriteFile(path, []byte("source: {dir: modules}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source.Dir != "modules" {
		t.Fatalf("source dir: %q", cfg.Source.Dir)
	}
	if _, err := config.Load(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestPublish_OpenPolicies(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	backends := []config.BackendConfig{
		{Name: "localfs", ID: "primary", Config: map[string]string{"localfs-dir": a}},
		{Name: "localfs", ID: "mirror", Config: map[string]string{"localfs-dir": b}},
	}
	blk, err := storage.NewBlock(cidutil.CodecRaw, []byte("published"), cidutil.Addresser{})
	if err != nil {
		t.Fatal(err)
	}

	all := config.Publish{WritePolicy: "all", Backends: backends}
	s, closeFn, err := all.Open(registry.UsageCLI, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer closeFn()
	if _, ok := s.(storage.ReplicatingStore); !ok {
		t.Fatalf("all policy returned %T", s)
	}
	if err := s.Put(blk); err != nil {
		t.Fatalf("Put: %v", err)
	}
	for _, dir := range []string{a, b} {
		found := false
		_ = filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
			if err == nil && !info.IsDir() && strings.HasSuffix(p, blk.CID.String()) {
				found = true
			}
			return nil
		})
		if !found {
			t.Fatalf("block not replicated into %s", dir)
		}
	}

	first := config.Publish{Backends: backends}
	s, closeFn2, err := first.Open(registry.UsageCLI, "mirror")
	if err != nil {
		t.Fatalf("Open first: %v", err)
	}
	defer closeFn2()
	if _, ok := s.(storage.MultiStore); !ok {
		t.Fatalf("first policy returned %T", s)
	}
	if _, _, err := first.Open(registry.UsageCLI, "nowhere"); err == nil {
		t.Fatalf("expected error for unknown preferred backend")
	}
}
