// Command cidof prints the CID of each file argument, for checking module
// and manifest addresses by hand.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"xdao.co/actorbundle/cidutil"
)

func main() {
	fs := pflag.NewFlagSet("cidof", pflag.ExitOnError)
	codec := fs.String("codec", "raw", "Codec: raw, dag-cbor")
	hash := fs.String("hash", string(cidutil.DefaultHash), "Hash: blake2b-256, sha2-256, blake3")
	_ = fs.Parse(os.Args[1:])
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: cidof [--codec raw|dag-cbor] [--hash <name>] <file>...")
		os.Exit(2)
	}

	var c uint64
	switch *codec {
	case "raw":
		c = cidutil.CodecRaw
	case "dag-cbor":
		c = cidutil.CodecDagCBOR
	default:
		fmt.Fprintf(os.Stderr, "unknown codec %q\n", *codec)
		os.Exit(2)
	}
	h, err := cidutil.ParseHashFunc(*hash)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	addr := cidutil.Addresser{Hash: h}

	for _, path := range fs.Args() {
		b, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read: %v\n", err)
			os.Exit(1)
		}
		id, err := addr.Identify(c, b)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cid: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s\t%s\n", id, path)
	}
}
