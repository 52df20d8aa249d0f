package ipfs

import (
	"strings"
	"testing"

	"xdao.co/actorbundle/cidutil"
	"xdao.co/actorbundle/storage"
)

func TestPutArgs_ReproduceCID(t *testing.T) {
	cases := []struct {
		codec uint64
		hash  cidutil.HashFunc
		want  []string
	}{
		{cidutil.CodecRaw, cidutil.Blake2b256, []string{"--cid-codec=raw", "--mhtype=blake2b-256", "--mhlen=32"}},
		{cidutil.CodecDagCBOR, cidutil.SHA2256, []string{"--cid-codec=dag-cbor", "--mhtype=sha2-256", "--mhlen=32"}},
	}
	for _, tc := range cases {
		b, err := storage.NewBlock(tc.codec, []byte("x"), cidutil.Addresser{Hash: tc.hash})
		if err != nil {
			t.Fatal(err)
		}
		args, err := putArgs(b, false)
		if err != nil {
			t.Fatalf("putArgs: %v", err)
		}
		joined := strings.Join(args, " ")
		for _, w := range tc.want {
			if !strings.Contains(joined, w) {
				t.Fatalf("args %q missing %q", joined, w)
			}
		}
		if !strings.Contains(joined, "--pin=false") {
			t.Fatalf("args %q missing pin flag", joined)
		}
	}
}

func TestPut_RejectsMismatchBeforeExec(t *testing.T) {
	s := New(Options{Bin: "/nonexistent/ipfs"})
	good, err := storage.NewBlock(cidutil.CodecRaw, []byte("good"), cidutil.Addresser{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(storage.Block{CID: good.CID, Data: []byte("bad")}); err != storage.ErrCIDMismatch {
		t.Fatalf("got %v want ErrCIDMismatch", err)
	}
}
