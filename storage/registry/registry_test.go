package registry

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"xdao.co/actorbundle/storage"
)

func testBackend(name string, usage Usage) Backend {
	return Backend{
		Name:          name,
		Usage:         usage,
		RegisterFlags: func(fs *pflag.FlagSet) {},
		Open: func() (storage.Blockstore, func() error, error) {
			return storage.NewMemStore(), nil, nil
		},
		OpenWithConfig: func(cfg map[string]string) (storage.Blockstore, func() error, error) {
			return storage.NewMemStore(), nil, nil
		},
	}
}

func TestRegister_RejectsDuplicatesAndIncomplete(t *testing.T) {
	if err := Register(testBackend("test-dup", UsageCLI)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := Register(testBackend("test-dup", UsageCLI)); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	incomplete := testBackend("test-incomplete", UsageCLI)
	incomplete.OpenWithConfig = nil
	if err := Register(incomplete); err == nil {
		t.Fatalf("expected missing Open error")
	}
	if err := Register(testBackend("test-nousage", 0)); err == nil {
		t.Fatalf("expected missing Usage error")
	}
}

func TestOpen_RespectsUsage(t *testing.T) {
	MustRegister(testBackend("test-daemon-only", UsageDaemon))

	if _, _, err := OpenWithConfig("test-daemon-only", UsageCLI, nil); err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Fatalf("got %v want usage error", err)
	}
	s, _, err := OpenWithConfig("test-daemon-only", UsageDaemon, nil)
	if err != nil || s == nil {
		t.Fatalf("OpenWithConfig: %v", err)
	}
	if _, _, err := Open("nope", UsageCLI); err == nil {
		t.Fatalf("expected unknown backend error")
	}
	for _, n := range Names(UsageCLI) {
		if n == "test-daemon-only" {
			t.Fatalf("daemon-only backend listed for CLI")
		}
	}
}
