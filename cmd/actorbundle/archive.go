package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"xdao.co/actorbundle/actors"
	"xdao.co/actorbundle/manifest"
	"xdao.co/actorbundle/storage"
	"xdao.co/actorbundle/storage/car"
	"xdao.co/actorbundle/storage/registry"
)

func cmdInspect(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("inspect", errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "inspect requires exactly one bundle path")
		return 2
	}
	b, err := loadArchive(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "%s: %v\n", fs.Arg(0), err)
		return 1
	}
	fmt.Fprintf(out, "root: %s\n", b.Root)
	fmt.Fprintf(out, "version: %d\n", manifest.Version)
	fmt.Fprintf(out, "entries: %d\n", b.Manifest.Len())
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tNAME\tSIZE\tCODE")
	for _, e := range b.Manifest.Entries() {
		_, code, err := b.Code(e.Type)
		if err != nil {
			_ = tw.Flush()
			fmt.Fprintf(errOut, "%v\n", err)
			return 1
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", uint32(e.Type), e.Type, len(code), e.Code)
	}
	_ = tw.Flush()
	return 0
}

func cmdVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("verify", errOut)
	var requireAll bool
	fs.BoolVar(&requireAll, "require-all", false, "Fail unless every builtin actor type is present")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "verify requires exactly one bundle path")
		return 2
	}
	path := fs.Arg(0)
	b, err := loadArchive(path)
	if err != nil {
		fmt.Fprintf(errOut, "%s: %v\n", path, err)
		return 1
	}
	if requireAll {
		var missing []actors.Type
		for _, t := range actors.All() {
			if _, ok := b.Manifest.Lookup(t); !ok {
				missing = append(missing, t)
			}
		}
		if len(missing) > 0 {
			fmt.Fprintf(errOut, "%s: %v\n", path, &manifest.MissingTypeError{Missing: missing})
			return 1
		}
	}
	fmt.Fprintf(out, "OK\t%s\t%d entries\n", b.Root, b.Manifest.Len())
	return 0
}

// parseActorType accepts a canonical name or a decimal discriminant.
func parseActorType(s string) (actors.Type, error) {
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		return actors.FromUint64(n)
	}
	return actors.ParseName(s)
}

func cmdLookup(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("lookup", errOut)
	var outPath string
	fs.StringVarP(&outPath, "out", "o", "", "Write the code bytes to this file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(errOut, "lookup requires a bundle path and an actor type")
		return 2
	}
	t, err := parseActorType(fs.Arg(1))
	if err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 2
	}
	b, err := loadArchive(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "%s: %v\n", fs.Arg(0), err)
		return 1
	}
	id, code, err := b.Code(t)
	if err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 1
	}
	if outPath != "" {
		if err := os.WriteFile(outPath, code, 0o644); err != nil {
			fmt.Fprintf(errOut, "%v\n", err)
			return 1
		}
	}
	fmt.Fprintf(out, "%s\t%s\t%d\n", t, id, len(code))
	return 0
}

func cmdPublish(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("publish", errOut)
	var backend string
	fs.StringVar(&backend, "backend", "", "Storage backend to publish to (required)")
	registry.RegisterFlags(fs, registry.UsageCLI)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "publish requires exactly one bundle path")
		return 2
	}
	if backend == "" {
		fmt.Fprintf(errOut, "missing --backend (available: %v)\n", registry.Names(registry.UsageCLI))
		return 2
	}
	path := fs.Arg(0)

	rc, err := openArchive(path)
	if err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 1
	}
	defer rc.Close()
	h, blocks, err := car.ReadAll(rc)
	if err != nil {
		fmt.Fprintf(errOut, "%s: %v\n", path, err)
		return 1
	}

	dst, closeFn, err := registry.Open(backend, registry.UsageCLI)
	if err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}
	if err := storage.PutAll(dst, blocks); err != nil {
		fmt.Fprintf(errOut, "publish: %v\n", err)
		return 1
	}
	for _, r := range h.Roots {
		fmt.Fprintf(out, "%s\t%d blocks\n", r, len(blocks))
	}
	return 0
}
