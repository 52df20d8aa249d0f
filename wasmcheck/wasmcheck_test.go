package wasmcheck

import (
	"context"
	"errors"
	"testing"
)

// emptyModule is the smallest valid module: magic and version only.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// invokeModule exports one nullary function named "invoke".
var invokeModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00, // type: () -> ()
	0x03, 0x02, 0x01, 0x00, // func 0 uses type 0
	0x07, 0x0a, 0x01, 0x06, 'i', 'n', 'v', 'o', 'k', 'e', 0x00, 0x00, // export "invoke"
	0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b, // body: end
}

func TestCheck_AcceptsValidModules(t *testing.T) {
	ctx := context.Background()
	if err := (Checker{}).Check(ctx, emptyModule); err != nil {
		t.Fatalf("empty module: %v", err)
	}
	if err := (Checker{RequiredExports: []string{"invoke"}}).Check(ctx, invokeModule); err != nil {
		t.Fatalf("invoke module: %v", err)
	}
}

func TestCheck_RejectsGarbage(t *testing.T) {
	ctx := context.Background()
	for _, code := range [][]byte{nil, []byte("AAA"), emptyModule[:6]} {
		if err := (Checker{}).Check(ctx, code); !errors.Is(err, ErrInvalidModule) {
			t.Fatalf("%q: got %v want ErrInvalidModule", code, err)
		}
	}
}

func TestCheck_MissingExports(t *testing.T) {
	err := Checker{RequiredExports: []string{"validate", "invoke"}}.Check(context.Background(), invokeModule)
	var me *MissingExportsError
	if !errors.As(err, &me) {
		t.Fatalf("got %v want *MissingExportsError", err)
	}
	if len(me.Missing) != 1 || me.Missing[0] != "validate" {
		t.Fatalf("missing: %v", me.Missing)
	}
}

func TestExports(t *testing.T) {
	names, err := Exports(context.Background(), invokeModule)
	if err != nil {
		t.Fatalf("Exports: %v", err)
	}
	if len(names) != 1 || names[0] != "invoke" {
		t.Fatalf("exports: %v", names)
	}
}
