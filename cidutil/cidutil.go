package cidutil

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
)

// Content-type tags understood by this module. Code blocks are raw
// executable bytecode; the manifest is canonical DAG-CBOR.
const (
	CodecRaw     = cid.Raw
	CodecDagCBOR = cid.DagCBOR
)

// HashFunc names a multihash function usable for addressing.
type HashFunc string

const (
	Blake2b256 HashFunc = "blake2b-256"
	SHA2256    HashFunc = "sha2-256"
	Blake3     HashFunc = "blake3"
)

// DefaultHash is the hash used by Identify. Code CIDs on the target
// network are blake2b-256.
const DefaultHash = Blake2b256

var (
	ErrUnsupportedCodec = errors.New("cidutil: unsupported codec")
	ErrUnsupportedHash  = errors.New("cidutil: unsupported hash function")
	ErrMismatch         = errors.New("cidutil: cid does not match content")
)

// ParseHashFunc maps a hash name to a HashFunc. The empty string selects DefaultHash.
func ParseHashFunc(name string) (HashFunc, error) {
	switch HashFunc(name) {
	case "":
		return DefaultHash, nil
	case Blake2b256, SHA2256, Blake3:
		return HashFunc(name), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedHash, name)
	}
}

// Code returns the multihash code for h.
func (h HashFunc) Code() (uint64, error) {
	switch h {
	case Blake2b256:
		return multihash.BLAKE2B_MIN + 31, nil
	case SHA2256:
		return multihash.SHA2_256, nil
	case Blake3:
		return multihash.BLAKE3, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedHash, string(h))
	}
}

func hashFuncForCode(code uint64) (HashFunc, error) {
	switch code {
	case multihash.BLAKE2B_MIN + 31:
		return Blake2b256, nil
	case multihash.SHA2_256:
		return SHA2256, nil
	case multihash.BLAKE3:
		return Blake3, nil
	default:
		return "", fmt.Errorf("%w: multihash code 0x%x", ErrUnsupportedHash, code)
	}
}

// Addresser computes CIDs with a fixed hash function. The zero value uses DefaultHash.
type Addresser struct {
	Hash HashFunc
}

// Identify returns the CIDv1 for data under codec. It is a pure function of
// (codec, hash, data); empty data is valid.
func (a Addresser) Identify(codec uint64, data []byte) (cid.Cid, error) {
	switch codec {
	case CodecRaw, CodecDagCBOR:
	default:
		return cid.Undef, fmt.Errorf("%w: 0x%x", ErrUnsupportedCodec, codec)
	}
	h := a.Hash
	if h == "" {
		h = DefaultHash
	}
	mh, err := digest(h, data)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(codec, mh), nil
}

// Identify computes a CID with DefaultHash.
func Identify(codec uint64, data []byte) (cid.Cid, error) {
	return Addresser{}.Identify(codec, data)
}

// RawCID is Identify(CodecRaw, data).
func RawCID(data []byte) (cid.Cid, error) {
	return Identify(CodecRaw, data)
}

// Verify recomputes the CID of data with the codec and hash encoded in id.
func Verify(id cid.Cid, data []byte) error {
	if !id.Defined() {
		return fmt.Errorf("%w: undefined cid", ErrMismatch)
	}
	dec, err := multihash.Decode(id.Hash())
	if err != nil {
		return err
	}
	h, err := hashFuncForCode(dec.Code)
	if err != nil {
		return err
	}
	got, err := Addresser{Hash: h}.Identify(id.Type(), data)
	if err != nil {
		return err
	}
	if !got.Equals(id) {
		return ErrMismatch
	}
	return nil
}

func digest(h HashFunc, data []byte) (multihash.Multihash, error) {
	switch h {
	case Blake2b256:
		sum := blake2b.Sum256(data)
		return multihash.Encode(sum[:], multihash.BLAKE2B_MIN+31)
	case SHA2256:
		return multihash.Sum(data, multihash.SHA2_256, -1)
	case Blake3:
		sum := blake3.Sum256(data)
		return multihash.Encode(sum[:], multihash.BLAKE3)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedHash, string(h))
	}
}
