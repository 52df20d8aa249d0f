package release

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"github.com/ipfs/go-cid"
	"golang.org/x/crypto/sha3"

	"xdao.co/actorbundle/cidutil"
	"xdao.co/actorbundle/codec"
)

// Signature algorithms.
const (
	AlgEd25519    = "ed25519"
	AlgDilithium3 = "dilithium3"
)

// Digest algorithms applied to the signed message.
const (
	HashSHA256   = "sha256"
	HashSHA512   = "sha512"
	HashSHA3_256 = "sha3-256"
)

const domain = "actorbundle-release-v1"

var (
	ErrBadSignature = errors.New("release: signature invalid")
	ErrUnsupported  = errors.New("release: unsupported algorithm")
)

// Key is a private signing key.
type Key struct {
	Alg     string
	HashAlg string
	ed      ed25519.PrivateKey
	dil     *mode3.PrivateKey
	pub     []byte
}

// KeyFromSeed derives a key for alg from a 32-byte seed. hashAlg defaults
// to sha256 for ed25519 and sha3-256 for dilithium3.
func KeyFromSeed(alg, hashAlg string, seed []byte) (*Key, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("release: seed must be %d bytes", SeedSize)
	}
	k := &Key{Alg: alg, HashAlg: hashAlg}
	switch alg {
	case AlgEd25519:
		if k.HashAlg == "" {
			k.HashAlg = HashSHA256
		}
		k.ed = ed25519.NewKeyFromSeed(seed)
		k.pub = append([]byte(nil), k.ed.Public().(ed25519.PublicKey)...)
	case AlgDilithium3:
		if k.HashAlg == "" {
			k.HashAlg = HashSHA3_256
		}
		var s [mode3.SeedSize]byte
		copy(s[:], seed)
		pk, sk := mode3.NewKeyFromSeed(&s)
		pub, err := pk.MarshalBinary()
		if err != nil {
			return nil, err
		}
		k.dil = sk
		k.pub = pub
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, alg)
	}
	if _, err := digestFor(k.HashAlg, nil); err != nil {
		return nil, err
	}
	return k, nil
}

// PublicKey returns the encoded public key.
func (k *Key) PublicKey() []byte { return append([]byte(nil), k.pub...) }

func digestFor(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case HashSHA256:
		s := sha256.Sum256(message)
		return s[:], nil
	case HashSHA512:
		s := sha512.Sum512(message)
		return s[:], nil
	case HashSHA3_256:
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, fmt.Errorf("%w: hash %q", ErrUnsupported, hashAlg)
	}
}

func message(variant string, root cid.Cid) []byte {
	msg := make([]byte, 0, len(domain)+len(variant)+2+root.ByteLen())
	msg = append(msg, domain...)
	msg = append(msg, 0)
	msg = append(msg, variant...)
	msg = append(msg, 0)
	return append(msg, root.Bytes()...)
}

// Attestation is a signed statement that root is the bundle for Variant.
type Attestation struct {
	Variant   string
	Root      cid.Cid
	Alg       string
	HashAlg   string
	PublicKey []byte
	Signature []byte
}

// Sign attests that root is the bundle built for variant.
func Sign(variant string, root cid.Cid, k *Key) (Attestation, error) {
	if variant == "" {
		return Attestation{}, errors.New("release: variant is required")
	}
	if !root.Defined() {
		return Attestation{}, errors.New("release: undefined root")
	}
	digest, err := digestFor(k.HashAlg, message(variant, root))
	if err != nil {
		return Attestation{}, err
	}
	var sig []byte
	switch k.Alg {
	case AlgEd25519:
		sig = ed25519.Sign(k.ed, digest)
	case AlgDilithium3:
		sig = make([]byte, mode3.SignatureSize)
		mode3.SignTo(k.dil, digest, sig)
	default:
		return Attestation{}, fmt.Errorf("%w: %q", ErrUnsupported, k.Alg)
	}
	return Attestation{
		Variant:   variant,
		Root:      root,
		Alg:       k.Alg,
		HashAlg:   k.HashAlg,
		PublicKey: k.PublicKey(),
		Signature: sig,
	}, nil
}

// Verify checks the signature against the embedded public key. Callers
// decide separately whether that key is trusted.
func Verify(a Attestation) error {
	digest, err := digestFor(a.HashAlg, message(a.Variant, a.Root))
	if err != nil {
		return err
	}
	switch a.Alg {
	case AlgEd25519:
		if len(a.PublicKey) != ed25519.PublicKeySize || len(a.Signature) != ed25519.SignatureSize {
			return ErrBadSignature
		}
		if !ed25519.Verify(ed25519.PublicKey(a.PublicKey), digest, a.Signature) {
			return ErrBadSignature
		}
		return nil
	case AlgDilithium3:
		if len(a.Signature) != mode3.SignatureSize {
			return ErrBadSignature
		}
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(a.PublicKey); err != nil {
			return fmt.Errorf("%w: %v", ErrBadSignature, err)
		}
		if !mode3.Verify(&pk, digest, a.Signature) {
			return ErrBadSignature
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupported, a.Alg)
	}
}

type wireAttestation struct {
	Variant   string     `cbor:"variant"`
	Root      codec.Link `cbor:"root"`
	Alg       string     `cbor:"alg"`
	HashAlg   string     `cbor:"hash"`
	PublicKey []byte     `cbor:"pubkey"`
	Signature []byte     `cbor:"sig"`
}

// Encode returns the canonical DAG-CBOR form of a.
func (a Attestation) Encode() ([]byte, error) {
	return codec.Marshal(wireAttestation{
		Variant:   a.Variant,
		Root:      codec.Link{Cid: a.Root},
		Alg:       a.Alg,
		HashAlg:   a.HashAlg,
		PublicKey: a.PublicKey,
		Signature: a.Signature,
	})
}

// CID addresses the encoded attestation as a DAG-CBOR block.
func (a Attestation) CID() (cid.Cid, error) {
	b, err := a.Encode()
	if err != nil {
		return cid.Undef, err
	}
	return cidutil.Identify(cidutil.CodecDagCBOR, b)
}

// Decode parses an encoded attestation. It does not verify the signature.
func Decode(data []byte) (Attestation, error) {
	var w wireAttestation
	if err := codec.Unmarshal(data, &w); err != nil {
		return Attestation{}, fmt.Errorf("release: decode attestation: %w", err)
	}
	return Attestation{
		Variant:   w.Variant,
		Root:      w.Root.Cid,
		Alg:       w.Alg,
		HashAlg:   w.HashAlg,
		PublicKey: w.PublicKey,
		Signature: w.Signature,
	}, nil
}
