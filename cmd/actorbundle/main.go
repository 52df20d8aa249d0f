package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"xdao.co/actorbundle/config"
	"xdao.co/actorbundle/host"
	"xdao.co/actorbundle/storage/car"

	_ "xdao.co/actorbundle/storage/grpcstore"
	_ "xdao.co/actorbundle/storage/ipfs"
	_ "xdao.co/actorbundle/storage/localfs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "build":
		return cmdBuild(ctx, args[1:], out, errOut)
	case "inspect":
		return cmdInspect(args[1:], out, errOut)
	case "verify":
		return cmdVerify(args[1:], out, errOut)
	case "lookup":
		return cmdLookup(args[1:], out, errOut)
	case "publish":
		return cmdPublish(args[1:], out, errOut)
	case "variants":
		return cmdVariants(args[1:], out, errOut)
	case "sign":
		return cmdSign(args[1:], out, errOut)
	case "verify-sig":
		return cmdVerifySig(args[1:], out, errOut)
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "actorbundle: deterministic builtin-actor bundle builder")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  actorbundle build [--config <file>] [--variant <name,...> | --all] [--modules <dir>] [--out <dir>] [--compress none|zstd|lz4] [--sign-key <file>]")
	fmt.Fprintln(w, "  actorbundle inspect <bundle.car>")
	fmt.Fprintln(w, "  actorbundle verify [--require-all] <bundle.car>")
	fmt.Fprintln(w, "  actorbundle lookup [--out <file>] <bundle.car> <actor-type>")
	fmt.Fprintln(w, "  actorbundle publish --backend <name> [backend flags] <bundle.car>")
	fmt.Fprintln(w, "  actorbundle variants [--config <file>] [--actors-version <constraint>]")
	fmt.Fprintln(w, "  actorbundle sign --variant <name> (--key <file> | --key-name <name> | --seed-hex <64hex>) [--alg ed25519|dilithium3] <bundle.car>")
	fmt.Fprintln(w, "  actorbundle verify-sig [--car <bundle.car>] <attestation>")
	fmt.Fprintln(w, "  actorbundle key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  actorbundle key list")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - build reads ./actorbundle.yaml when present and --config is not given")
	fmt.Fprintln(w, "  - archive compression follows the file suffix (.car, .car.zst, .car.lz4)")
	fmt.Fprintln(w, "  - actor types may be given by name (storageminer) or number (6)")
	fmt.Fprintln(w, "  - sign writes <bundle>.sig next to the archive and prints the attestation CID")
}

// loadConfig reads path, or DefaultFile when path is empty and the file exists.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		if _, err := os.Stat(config.DefaultFile); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return config.Config{}, nil
			}
			return config.Config{}, err
		}
		path = config.DefaultFile
	}
	return config.Load(path)
}

func openArchive(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := car.DecompressReader(f, car.CompressionForPath(path))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return struct {
		io.Reader
		io.Closer
	}{r, closerFunc(func() error {
		_ = r.Close()
		return f.Close()
	})}, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func loadArchive(path string) (*host.Bundle, error) {
	rc, err := openArchive(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return host.LoadArchive(rc)
}

func newFlagSet(name string, errOut io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.SortFlags = false
	return fs
}

func cmdVariants(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("variants", errOut)
	var cfgPath, constraint string
	fs.StringVar(&cfgPath, "config", "", "Config file with variant overrides")
	fs.StringVar(&constraint, "actors-version", "", "Only list variants whose actors version satisfies this semver constraint")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 1
	}
	set, err := cfg.VariantSet()
	if err != nil {
		fmt.Fprintf(errOut, "variants: %v\n", err)
		return 1
	}
	vs := set.All()
	if constraint != "" {
		if vs, err = set.Matching(constraint); err != nil {
			fmt.Fprintf(errOut, "%v\n", err)
			return 2
		}
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tNV\tACTORS\tMIN POWER\tFULL\tFEATURES")
	for _, v := range vs {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%t\t%s\n", v.Name, v.NetworkVersion, v.ActorsVersion,
			v.Params.MinConsensusPower, v.RequireAll, strings.Join(v.Features, ","))
	}
	_ = tw.Flush()
	return 0
}
