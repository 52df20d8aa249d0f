package actors

import (
	"errors"
	"testing"
)

func TestAll_IsAscendingAndComplete(t *testing.T) {
	all := All()
	if len(all) != 11 {
		t.Fatalf("got %d types want 11", len(all))
	}
	for i, typ := range all {
		if uint32(typ) != uint32(i+1) {
			t.Fatalf("index %d: got %d", i, typ)
		}
		if !typ.Known() || typ.Name() == "" {
			t.Fatalf("type %d has no name", typ)
		}
	}
}

func TestParseName_RoundTrip(t *testing.T) {
	for _, typ := range All() {
		got, err := ParseName(typ.Name())
		if err != nil {
			t.Fatalf("ParseName(%q): %v", typ.Name(), err)
		}
		if got != typ {
			t.Fatalf("ParseName(%q) = %d want %d", typ.Name(), got, typ)
		}
	}
	if _, err := ParseName("evm"); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("got %v want ErrUnknownType", err)
	}
}

func TestFromUint64_RejectsUnknown(t *testing.T) {
	for _, v := range []uint64{0, 12, 1 << 40} {
		if _, err := FromUint64(v); !errors.Is(err, ErrUnknownType) {
			t.Fatalf("FromUint64(%d): got %v", v, err)
		}
	}
	got, err := FromUint64(6)
	if err != nil || got != Miner {
		t.Fatalf("FromUint64(6) = %v, %v", got, err)
	}
	if Type(99).String() != "unknown(99)" {
		t.Fatalf("String: %s", Type(99))
	}
}
