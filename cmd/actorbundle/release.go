package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ipfs/go-cid"
	"github.com/spf13/pflag"

	"xdao.co/actorbundle/config"
	"xdao.co/actorbundle/release"
)

// signFlags selects a signing key. build registers them with a "sign-"
// prefix; sign registers them bare.
type signFlags struct {
	alg        string
	hashAlg    string
	keyFile    string
	keyName    string
	keyDir     string
	seedHex    string
	perVariant bool
}

func (s *signFlags) register(fs *pflag.FlagSet, prefix string) {
	fs.StringVar(&s.alg, prefix+"alg", "", "Signature algorithm: ed25519, dilithium3 (default ed25519)")
	fs.StringVar(&s.hashAlg, prefix+"hash", "", "Digest: sha256, sha512, sha3-256")
	fs.StringVar(&s.keyFile, prefix+"key", "", "Path to a hex seed file")
	fs.StringVar(&s.keyName, prefix+"key-name", "", "Name of a key in the key store")
	fs.StringVar(&s.keyDir, prefix+"key-dir", "", "Key store directory (default ~/.actorbundle/keys)")
	fs.StringVar(&s.seedHex, prefix+"seed-hex", "", "32-byte seed as hex")
	fs.BoolVar(&s.perVariant, prefix+"per-variant", false, "Derive a separate key per variant from the seed")
}

func (s *signFlags) configured() bool {
	return s.keyFile != "" || s.keyName != "" || s.seedHex != ""
}

// applyConfig fills fields the command line left empty.
func (s *signFlags) applyConfig(c *config.Signing) {
	if c == nil {
		return
	}
	if s.alg == "" {
		s.alg = c.Alg
	}
	if s.hashAlg == "" {
		s.hashAlg = c.Hash
	}
	if !s.configured() {
		s.keyFile = c.KeyFile
		s.keyName = c.KeyName
	}
	if c.PerVariant {
		s.perVariant = true
	}
}

func (s *signFlags) seed() ([]byte, error) {
	n := 0
	for _, v := range []string{s.keyFile, s.keyName, s.seedHex} {
		if v != "" {
			n++
		}
	}
	switch {
	case n == 0:
		return nil, errors.New("no signing key: use a key file, key name or seed")
	case n > 1:
		return nil, errors.New("conflicting key sources: choose one of key file, key name or seed")
	}
	switch {
	case s.seedHex != "":
		return release.ParseSeedHex(s.seedHex)
	case s.keyFile != "":
		return release.LoadSeedFile(s.keyFile)
	default:
		ks, err := release.OpenKeyStore(s.keyDir)
		if err != nil {
			return nil, err
		}
		return ks.Load(s.keyName)
	}
}

func (s *signFlags) key(variant string) (*release.Key, error) {
	seed, err := s.seed()
	if err != nil {
		return nil, err
	}
	if s.perVariant {
		if seed, err = release.DeriveVariantSeed(seed, variant); err != nil {
			return nil, err
		}
	}
	alg := s.alg
	if alg == "" {
		alg = release.AlgEd25519
	}
	return release.KeyFromSeed(alg, s.hashAlg, seed)
}

// signFile writes the attestation for root next to the archive as <path>.sig.
func (s *signFlags) signFile(variant string, root cid.Cid, archivePath string) (string, cid.Cid, error) {
	k, err := s.key(variant)
	if err != nil {
		return "", cid.Undef, err
	}
	a, err := release.Sign(variant, root, k)
	if err != nil {
		return "", cid.Undef, err
	}
	b, err := a.Encode()
	if err != nil {
		return "", cid.Undef, err
	}
	id, err := a.CID()
	if err != nil {
		return "", cid.Undef, err
	}
	sigPath := archivePath + ".sig"
	if err := os.WriteFile(sigPath, b, 0o644); err != nil {
		return "", cid.Undef, err
	}
	return sigPath, id, nil
}

func cmdSign(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("sign", errOut)
	var (
		variantName string
		sf          signFlags
	)
	fs.StringVar(&variantName, "variant", "", "Variant the bundle was built for (required)")
	sf.register(fs, "")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "sign requires exactly one bundle path")
		return 2
	}
	if variantName == "" {
		fmt.Fprintln(errOut, "missing --variant")
		return 2
	}
	path := fs.Arg(0)
	b, err := loadArchive(path)
	if err != nil {
		fmt.Fprintf(errOut, "%s: %v\n", path, err)
		return 1
	}
	sigPath, id, err := sf.signFile(variantName, b.Root, path)
	if err != nil {
		fmt.Fprintf(errOut, "sign: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "%s\t%s\n", id, sigPath)
	return 0
}

func cmdVerifySig(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("verify-sig", errOut)
	var carPath, pubHex string
	fs.StringVar(&carPath, "car", "", "Also check the attestation root against this bundle")
	fs.StringVar(&pubHex, "pubkey-hex", "", "Require the attestation to be signed by this public key")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "verify-sig requires exactly one attestation path")
		return 2
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 1
	}
	a, err := release.Decode(data)
	if err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 1
	}
	if err := release.Verify(a); err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 1
	}
	if pubHex != "" && fmt.Sprintf("%x", a.PublicKey) != pubHex {
		fmt.Fprintln(errOut, "attestation signed by an unexpected key")
		return 1
	}
	if carPath != "" {
		b, err := loadArchive(carPath)
		if err != nil {
			fmt.Fprintf(errOut, "%s: %v\n", carPath, err)
			return 1
		}
		if !b.Root.Equals(a.Root) {
			fmt.Fprintf(errOut, "root mismatch: attestation %s, bundle %s\n", a.Root, b.Root)
			return 1
		}
	}
	fmt.Fprintf(out, "OK\t%s\t%s\t%s\n", a.Variant, a.Root, a.Alg)
	return 0
}

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "key requires a subcommand: init, list")
		return 2
	}
	switch args[0] {
	case "init":
		return cmdKeyInit(args[1:], out, errOut)
	case "list":
		return cmdKeyList(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n", args[0])
		return 2
	}
}

func cmdKeyInit(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("key init", errOut)
	var name, dir, seedHex, alg string
	var force bool
	fs.StringVar(&name, "name", "", "Key name (required)")
	fs.StringVar(&dir, "key-dir", "", "Key store directory (default ~/.actorbundle/keys)")
	fs.StringVar(&seedHex, "seed-hex", "", "Use this 32-byte hex seed instead of a random one")
	fs.StringVar(&alg, "alg", release.AlgEd25519, "Algorithm used to print the public key")
	fs.BoolVar(&force, "force", false, "Overwrite an existing key")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := release.CheckKeyName(name); err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 2
	}
	var seed []byte
	var err error
	if seedHex != "" {
		seed, err = release.ParseSeedHex(seedHex)
	} else {
		seed, err = release.NewSeed()
	}
	if err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 1
	}
	k, err := release.KeyFromSeed(alg, "", seed)
	if err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 2
	}
	ks, err := release.OpenKeyStore(dir)
	if err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 1
	}
	path, err := ks.Save(name, seed, force)
	if err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 1
	}
	fmt.Fprintf(out, "%s\t%x\n", path, k.PublicKey())
	return 0
}

func cmdKeyList(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("key list", errOut)
	var dir string
	fs.StringVar(&dir, "key-dir", "", "Key store directory (default ~/.actorbundle/keys)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	ks, err := release.OpenKeyStore(dir)
	if err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 1
	}
	names, err := ks.List()
	if err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 1
	}
	for _, n := range names {
		fmt.Fprintln(out, n)
	}
	return 0
}
