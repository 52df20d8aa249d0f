package cidutil

import (
	"errors"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

func TestIdentify_MatchesMultihashSum(t *testing.T) {
	data := []byte("actor bytecode")
	cases := []struct {
		hash HashFunc
		code uint64
	}{
		{Blake2b256, multihash.BLAKE2B_MIN + 31},
		{SHA2256, multihash.SHA2_256},
		{Blake3, multihash.BLAKE3},
	}
	for _, tc := range cases {
		got, err := Addresser{Hash: tc.hash}.Identify(CodecRaw, data)
		if err != nil {
			t.Fatalf("%s: Identify: %v", tc.hash, err)
		}
		mh, err := multihash.Sum(data, tc.code, -1)
		if err != nil {
			t.Fatalf("%s: multihash.Sum: %v", tc.hash, err)
		}
		want := cid.NewCidV1(cid.Raw, mh)
		if !got.Equals(want) {
			t.Fatalf("%s: got %s want %s", tc.hash, got, want)
		}
	}
}

func TestIdentify_CodecIsPartOfIdentity(t *testing.T) {
	data := []byte("same bytes")
	raw, err := Identify(CodecRaw, data)
	if err != nil {
		t.Fatal(err)
	}
	cbor, err := Identify(CodecDagCBOR, data)
	if err != nil {
		t.Fatal(err)
	}
	if raw.Equals(cbor) {
		t.Fatalf("raw and dag-cbor cids collide: %s", raw)
	}
	if raw.Type() != cid.Raw || cbor.Type() != cid.DagCBOR {
		t.Fatalf("codec not encoded: %x %x", raw.Type(), cbor.Type())
	}
}

func TestIdentify_EmptyInput(t *testing.T) {
	a, err := RawCID(nil)
	if err != nil {
		t.Fatalf("RawCID(nil): %v", err)
	}
	b, err := RawCID([]byte{})
	if err != nil {
		t.Fatalf("RawCID(empty): %v", err)
	}
	if !a.Defined() || !a.Equals(b) {
		t.Fatalf("empty input: %s vs %s", a, b)
	}
	if err := Verify(a, nil); err != nil {
		t.Fatalf("Verify(empty): %v", err)
	}
}

func TestIdentify_RejectsUnknownCodec(t *testing.T) {
	if _, err := Identify(cid.DagJSON, []byte("x")); !errors.Is(err, ErrUnsupportedCodec) {
		t.Fatalf("got %v want ErrUnsupportedCodec", err)
	}
}

func TestVerify(t *testing.T) {
	for _, h := range []HashFunc{Blake2b256, SHA2256, Blake3} {
		id, err := Addresser{Hash: h}.Identify(CodecDagCBOR, []byte("manifest"))
		if err != nil {
			t.Fatal(err)
		}
		if err := Verify(id, []byte("manifest")); err != nil {
			t.Fatalf("%s: Verify: %v", h, err)
		}
		if err := Verify(id, []byte("tampered")); !errors.Is(err, ErrMismatch) {
			t.Fatalf("%s: got %v want ErrMismatch", h, err)
		}
	}
	if err := Verify(cid.Undef, nil); !errors.Is(err, ErrMismatch) {
		t.Fatalf("undef: got %v", err)
	}
}

func TestParseHashFunc(t *testing.T) {
	h, err := ParseHashFunc("")
	if err != nil || h != DefaultHash {
		t.Fatalf("default: %q %v", h, err)
	}
	if _, err := ParseHashFunc("md5"); !errors.Is(err, ErrUnsupportedHash) {
		t.Fatalf("md5: got %v", err)
	}
}
