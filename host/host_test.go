package host

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/ipfs/go-cid"

	"xdao.co/actorbundle/actors"
	"xdao.co/actorbundle/bundle"
	"xdao.co/actorbundle/cidutil"
	"xdao.co/actorbundle/manifest"
	"xdao.co/actorbundle/storage"
	"xdao.co/actorbundle/storage/car"
)

func buildArchive(t *testing.T, mods []bundle.Module) ([]byte, bundle.Result) {
	t.Helper()
	var buf bytes.Buffer
	res, err := bundle.Build(context.Background(), mods, &buf, bundle.Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return buf.Bytes(), res
}

func TestLoadArchive_LookupByType(t *testing.T) {
	archive, res := buildArchive(t, []bundle.Module{
		{Type: actors.System, Code: []byte("AAA")},
		{Type: actors.Account, Code: []byte("BBBB")},
	})
	b, err := LoadArchive(bytes.NewReader(archive))
	if err != nil {
		t.Fatalf("LoadArchive: %v", err)
	}
	if !b.Root.Equals(res.Root) {
		t.Fatalf("root mismatch")
	}
	id, code, err := b.Code(actors.Account)
	if err != nil {
		t.Fatalf("Code: %v", err)
	}
	want, _ := cidutil.RawCID([]byte("BBBB"))
	if !id.Equals(want) || string(code) != "BBBB" {
		t.Fatalf("got %s %q", id, code)
	}
	if _, _, err := b.Code(actors.Multisig); !errors.Is(err, ErrNoActor) {
		t.Fatalf("got %v want ErrNoActor", err)
	}
}

func TestLoad_ReportsDanglingCode(t *testing.T) {
	code, _ := cidutil.RawCID([]byte("absent"))
	mb := manifest.NewBuilder()
	if err := mb.Add(actors.Cron, code); err != nil {
		t.Fatal(err)
	}
	m, err := mb.Finalize(manifest.FinalizeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	blk, err := m.Block(cidutil.Addresser{})
	if err != nil {
		t.Fatal(err)
	}
	store := storage.NewMemStore()
	if err := store.Put(blk); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(store, blk.CID); !errors.Is(err, ErrDanglingCode) {
		t.Fatalf("got %v want ErrDanglingCode", err)
	}
	if _, err := Load(store, code); err == nil {
		t.Fatalf("expected error for raw root")
	}
}

func TestIndex_SelectByNetworkVersion(t *testing.T) {
	store := storage.NewMemStore()
	idx := NewIndex()
	for nv, tag := range map[uint32]string{21: "v12", 22: "v13"} {
		archive, res := buildArchive(t, []bundle.Module{{Type: actors.System, Code: []byte(tag)}})
		if _, err := car.Import(bytes.NewReader(archive), store); err != nil {
			t.Fatalf("Import: %v", err)
		}
		if err := idx.Add(nv, res.Root); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	b, err := idx.Open(store, 22)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, code, _ := b.Code(actors.System); string(code) != "v13" {
		t.Fatalf("nv22 code = %q", code)
	}
	if _, err := idx.Select(23); !errors.Is(err, ErrNetworkVersion) {
		t.Fatalf("got %v want ErrNetworkVersion", err)
	}
	if got := idx.Versions(); len(got) != 2 || got[0] != 21 {
		t.Fatalf("versions: %v", got)
	}
	if err := idx.Add(21, cid.Undef); err == nil {
		t.Fatalf("expected error for undefined root")
	}
	other, _ := cidutil.Identify(cidutil.CodecDagCBOR, []byte("x"))
	if err := idx.Add(21, other); err == nil {
		t.Fatalf("expected rebind error")
	}
}

func TestIndex_ZeroValue(t *testing.T) {
	var idx Index
	if got := idx.Versions(); len(got) != 0 {
		t.Fatalf("versions: %v", got)
	}
	if _, err := idx.Select(22); !errors.Is(err, ErrNetworkVersion) {
		t.Fatalf("got %v want ErrNetworkVersion", err)
	}
	root, _ := cidutil.Identify(cidutil.CodecDagCBOR, []byte("manifest"))
	if err := idx.Add(22, root); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, err := idx.Select(22)
	if err != nil || !got.Equals(root) {
		t.Fatalf("Select: %s %v", got, err)
	}
}
