package release

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ipfs/go-cid"

	"xdao.co/actorbundle/cidutil"
)

func testSeed(b byte) []byte {
	seed := make([]byte, SeedSize)
	for i := range seed {
		seed[i] = b + byte(i)
	}
	return seed
}

func testRoot(t *testing.T, s string) cid.Cid {
	t.Helper()
	id, err := cidutil.Identify(cidutil.CodecDagCBOR, []byte(s))
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestSignVerify_AllAlgorithms(t *testing.T) {
	root := testRoot(t, "manifest")
	for _, alg := range []string{AlgEd25519, AlgDilithium3} {
		k, err := KeyFromSeed(alg, "", testSeed(1))
		if err != nil {
			t.Fatalf("%s: KeyFromSeed: %v", alg, err)
		}
		att, err := Sign("mainnet", root, k)
		if err != nil {
			t.Fatalf("%s: Sign: %v", alg, err)
		}
		if err := Verify(att); err != nil {
			t.Fatalf("%s: Verify: %v", alg, err)
		}

		wrongVariant := att
		wrongVariant.Variant = "calibrationnet"
		if err := Verify(wrongVariant); !errors.Is(err, ErrBadSignature) {
			t.Fatalf("%s: variant swap: got %v", alg, err)
		}
		wrongRoot := att
		wrongRoot.Root = testRoot(t, "other")
		if err := Verify(wrongRoot); !errors.Is(err, ErrBadSignature) {
			t.Fatalf("%s: root swap: got %v", alg, err)
		}
	}
}

func TestKeyFromSeed_Deterministic(t *testing.T) {
	a, _ := KeyFromSeed(AlgDilithium3, "", testSeed(7))
	b, _ := KeyFromSeed(AlgDilithium3, "", testSeed(7))
	if !bytes.Equal(a.PublicKey(), b.PublicKey()) {
		t.Fatalf("same seed produced different dilithium3 keys")
	}
	if _, err := KeyFromSeed("rsa", "", testSeed(7)); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("got %v want ErrUnsupported", err)
	}
	if _, err := KeyFromSeed(AlgEd25519, "md5", testSeed(7)); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("got %v want ErrUnsupported for hash", err)
	}
	if _, err := KeyFromSeed(AlgEd25519, "", []byte("short")); err == nil {
		t.Fatalf("expected seed length error")
	}
}

func TestAttestation_EncodeDecode(t *testing.T) {
	k, _ := KeyFromSeed(AlgEd25519, HashSHA512, testSeed(3))
	att, err := Sign("devnet", testRoot(t, "m"), k)
	if err != nil {
		t.Fatal(err)
	}
	enc, err := att.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	again, err := att.Encode()
	if err != nil || !bytes.Equal(enc, again) {
		t.Fatalf("encoding is not deterministic")
	}
	dec, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if dec.Variant != "devnet" || !dec.Root.Equals(att.Root) || dec.HashAlg != HashSHA512 {
		t.Fatalf("decoded: %+v", dec)
	}
	if err := Verify(dec); err != nil {
		t.Fatalf("Verify decoded: %v", err)
	}
	id, err := att.CID()
	if err != nil || id.Type() != cidutil.CodecDagCBOR {
		t.Fatalf("CID: %s %v", id, err)
	}
}

func TestKeyStore_SaveLoadList(t *testing.T) {
	ks, err := OpenKeyStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	path, err := ks.Save("release", testSeed(9), false)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	st, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if st.Mode().Perm() != 0o600 {
		t.Fatalf("mode %v want 0600", st.Mode().Perm())
	}
	if _, err := ks.Save("release", testSeed(10), false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	got, err := ks.Load("release")
	if err != nil || !bytes.Equal(got, testSeed(9)) {
		t.Fatalf("Load: %x %v", got, err)
	}
	if err := os.WriteFile(filepath.Join(ks.Directory, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	names, err := ks.List()
	if err != nil || len(names) != 1 || names[0] != "release" {
		t.Fatalf("List: %v %v", names, err)
	}
	if _, err := ks.Save("../escape", testSeed(1), false); err == nil {
		t.Fatalf("expected invalid name error")
	}
}

func TestParseSeedHex(t *testing.T) {
	seed, err := ParseSeedHex("  0x" + "11223344556677881122334455667788112233445566778811223344556677ff\n")
	if err != nil || len(seed) != SeedSize || seed[31] != 0xff {
		t.Fatalf("ParseSeedHex: %x %v", seed, err)
	}
	if _, err := ParseSeedHex("abcd"); err == nil {
		t.Fatalf("expected length error")
	}
}

func TestDeriveVariantSeed(t *testing.T) {
	root := testSeed(0)
	a, err := DeriveVariantSeed(root, "mainnet")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := DeriveVariantSeed(root, "mainnet")
	c, _ := DeriveVariantSeed(root, "devnet")
	if !bytes.Equal(a, b) || bytes.Equal(a, c) || len(a) != SeedSize {
		t.Fatalf("derivation is not deterministic and variant separated")
	}
	if _, err := DeriveVariantSeed(root[:8], "mainnet"); err == nil {
		t.Fatalf("expected root seed length error")
	}
}

func TestNewSeed(t *testing.T) {
	a, err := NewSeed()
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewSeed()
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != SeedSize || bytes.Equal(a, b) {
		t.Fatalf("seeds: %x %x", a, b)
	}
	if _, err := KeyFromSeed(AlgDilithium3, "", a); err != nil {
		t.Fatalf("KeyFromSeed: %v", err)
	}
}
