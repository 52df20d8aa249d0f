package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"xdao.co/actorbundle/config"
	"xdao.co/actorbundle/internal/ctxlog"
	"xdao.co/actorbundle/internal/logging"
	"xdao.co/actorbundle/pipeline"
	"xdao.co/actorbundle/storage"
	"xdao.co/actorbundle/storage/registry"
	"xdao.co/actorbundle/variant"
)

func cmdBuild(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("build", errOut)
	var (
		cfgPath      string
		names        []string
		all          bool
		modulesDir   string
		outDir       string
		compress     string
		hash         string
		workers      int
		parallel     int
		validateWasm bool
		logLevel     string
		backend      string
		sf           signFlags
	)
	fs.StringVar(&cfgPath, "config", "", "Config file (default ./actorbundle.yaml if present)")
	fs.StringSliceVar(&names, "variant", nil, "Variant(s) to build (default: mainnet)")
	fs.BoolVar(&all, "all", false, "Build every known variant")
	fs.StringVar(&modulesDir, "modules", "", "Directory of compiled <actor>.wasm modules (overrides config source)")
	fs.StringVar(&outDir, "out", "", "Output directory (default: config output_dir or ./build)")
	fs.StringVar(&compress, "compress", "", "Archive compression: none, zstd, lz4")
	fs.StringVar(&hash, "hash", "", "CID hash function: blake2b-256, sha2-256, blake3")
	fs.IntVar(&workers, "workers", 0, "Hashing workers per build")
	fs.IntVar(&parallel, "parallel", 0, "Concurrent variant builds (0 = all)")
	fs.BoolVar(&validateWasm, "validate-wasm", false, "Compile every module with wazero before bundling")
	fs.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&backend, "publish-backend", "", "Publish blocks to this backend after building")
	sf.register(fs, "sign-")
	registry.RegisterFlags(fs, registry.UsageCLI)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(errOut, "build takes no positional arguments")
		return 2
	}
	if all && len(names) > 0 {
		fmt.Fprintln(errOut, "conflicting flags: --all cannot be combined with --variant")
		return 2
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 1
	}
	if fs.Changed("hash") {
		cfg.Hash = hash
	}
	if fs.Changed("compress") {
		cfg.Compression = compress
	}
	if fs.Changed("workers") {
		cfg.Workers = workers
	}
	if fs.Changed("parallel") {
		cfg.Parallel = parallel
	}
	if fs.Changed("validate-wasm") {
		cfg.ValidateWasm = validateWasm
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if outDir == "" {
		outDir = cfg.OutputDir
	}
	if outDir == "" {
		outDir = "build"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 2
	}

	logger, closeLog, err := logging.New(cfg.Log, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 2
	}
	defer closeLog()
	ctx = ctxlog.WithLogger(ctx, logger)

	set, err := cfg.VariantSet()
	if err != nil {
		fmt.Fprintf(errOut, "variants: %v\n", err)
		return 1
	}
	var variants []variant.Variant
	switch {
	case all:
		variants = set.All()
	case len(names) == 0:
		names = []string{"mainnet"}
		fallthrough
	default:
		for _, n := range names {
			v, err := set.Lookup(n)
			if err != nil {
				fmt.Fprintf(errOut, "%v\n", err)
				return 2
			}
			variants = append(variants, v)
		}
	}

	src, err := cfg.ModuleSource(modulesDir)
	if err != nil {
		fmt.Fprintf(errOut, "%v (use --modules or set source in %s)\n", err, config.DefaultFile)
		return 2
	}
	opts, err := cfg.BuildOptions()
	if err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 2
	}

	var publish storage.Blockstore
	switch {
	case backend != "":
		s, closeFn, err := registry.Open(backend, registry.UsageCLI)
		if err != nil {
			fmt.Fprintf(errOut, "publish backend: %v\n", err)
			return 2
		}
		if closeFn != nil {
			defer closeFn()
		}
		publish = s
	case cfg.Publish != nil:
		s, closeFn, err := cfg.Publish.Open(registry.UsageCLI, "")
		if err != nil {
			fmt.Fprintf(errOut, "publish: %v\n", err)
			return 1
		}
		defer closeFn()
		publish = s
	}

	var signer *signFlags
	if sf.configured() || cfg.Signing != nil {
		sf.applyConfig(cfg.Signing)
		signer = &sf
	}

	outcomes, err := pipeline.Run(ctx, pipeline.Request{
		Variants: variants,
		Source:   src,
		OutDir:   outDir,
		Options:  opts,
		Parallel: cfg.Parallel,
		Publish:  publish,
	})
	if err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 2
	}

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			fmt.Fprintf(errOut, "%s: FAILED: %v\n", o.Variant.Name, o.Err)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\t%s\n", o.Variant.Name, o.Result.Root, o.Result.Path)
		if signer != nil {
			sigPath, attCID, err := signer.signFile(o.Variant.Name, o.Result.Root, o.Result.Path)
			if err != nil {
				failed++
				fmt.Fprintf(errOut, "%s: sign: %v\n", o.Variant.Name, err)
				continue
			}
			logger.Info("bundle signed", zap.String("variant", o.Variant.Name), zap.String("attestation", sigPath), zap.Stringer("cid", attCID))
		}
	}
	if failed > 0 {
		return 1
	}
	return 0
}
