package ipfs

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"xdao.co/actorbundle/cidutil"
	"xdao.co/actorbundle/storage"
)

// Store is a block store backed by the local Kubo "ipfs" CLI.
//
// Properties:
// - Offline: operates on the local IPFS repo; does not require an IPFS daemon.
// - Codec-preserving: blocks are put with the codec and hash their CID declares,
//   so a published bundle resolves to the same CIDs inside IPFS.
// - Verifying: every Get is checked against the requested CID.
type Store struct {
	bin string
	env []string
	pin bool
}

var _ storage.Blockstore = (*Store)(nil)

type Options struct {
	// Bin is the path to the ipfs binary. If empty, "ipfs" is used.
	Bin string
	// Env optionally overrides the command environment (e.g. to set IPFS_PATH).
	// If nil, the process environment is used.
	Env []string
	// Pin pins each block after it is stored.
	Pin bool
}

func New(opts Options) *Store {
	bin := opts.Bin
	if bin == "" {
		bin = "ipfs"
	}
	return &Store{bin: bin, env: opts.Env, pin: opts.Pin}
}

// putArgs builds the `ipfs block put` arguments reproducing b.CID.
func putArgs(b storage.Block, pin bool) ([]string, error) {
	var codec string
	switch b.CID.Type() {
	case cidutil.CodecRaw:
		codec = "raw"
	case cidutil.CodecDagCBOR:
		codec = "dag-cbor"
	default:
		return nil, fmt.Errorf("ipfs: unsupported codec 0x%x", b.CID.Type())
	}
	dec, err := multihash.Decode(b.CID.Hash())
	if err != nil {
		return nil, err
	}
	name, ok := multihash.Codes[dec.Code]
	if !ok {
		return nil, fmt.Errorf("ipfs: unsupported multihash 0x%x", dec.Code)
	}
	return []string{
		"block", "put",
		"--quiet",
		"--cid-codec=" + codec,
		"--mhtype=" + name,
		fmt.Sprintf("--mhlen=%d", dec.Length),
		fmt.Sprintf("--pin=%t", pin),
		"/dev/stdin",
	}, nil
}

func (s *Store) Put(b storage.Block) error {
	if err := b.Verify(); err != nil {
		return err
	}
	args, err := putArgs(b, s.pin)
	if err != nil {
		return err
	}
	out, err := s.run(b.Data, args...)
	if err != nil {
		return err
	}
	got, err := cid.Decode(strings.TrimSpace(string(out)))
	if err != nil {
		return fmt.Errorf("ipfs: unexpected block put output: %w", err)
	}
	if !got.Equals(b.CID) {
		return storage.ErrCIDMismatch
	}
	return nil
}

func (s *Store) Get(id cid.Cid) (storage.Block, error) {
	if !id.Defined() {
		return storage.Block{}, storage.ErrInvalidCID
	}
	out, err := s.run(nil, "block", "get", id.String())
	if err != nil {
		if isLikelyNotFound(err) {
			return storage.Block{}, storage.ErrNotFound
		}
		return storage.Block{}, err
	}
	b := storage.Block{CID: id, Data: out}
	if err := b.Verify(); err != nil {
		return storage.Block{}, err
	}
	return b, nil
}

func (s *Store) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	_, err := s.run(nil, "block", "stat", "--offline", id.String())
	return err == nil
}

func (s *Store) run(stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.Command(s.bin, args...)
	if s.env != nil {
		cmd.Env = s.env
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}

	var ee *exec.ExitError
	if errors.As(err, &ee) {
		msg := strings.TrimSpace(string(ee.Stderr))
		if msg == "" {
			return nil, fmt.Errorf("ipfs: %v", err)
		}
		return nil, fmt.Errorf("ipfs: %s", msg)
	}
	return nil, err
}

func isLikelyNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "block not found")
}
