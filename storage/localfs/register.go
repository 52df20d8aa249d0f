package localfs

import (
	"fmt"

	"github.com/spf13/pflag"

	"xdao.co/actorbundle/storage"
	"xdao.co/actorbundle/storage/registry"
)

var flagDir string

func init() {
	registry.MustRegister(registry.Backend{
		Name:        "localfs",
		Description: "Local filesystem block store (directory)",
		Usage:       registry.UsageCLI | registry.UsageDaemon,
		RegisterFlags: func(fs *pflag.FlagSet) {
			fs.StringVar(&flagDir, "localfs-dir", "", "LocalFS block directory (for --backend=localfs)")
		},
		Open: func() (storage.Blockstore, func() error, error) {
			return open(flagDir)
		},
		OpenWithConfig: func(cfg map[string]string) (storage.Blockstore, func() error, error) {
			return open(cfg["localfs-dir"])
		},
	})
}

func open(dir string) (storage.Blockstore, func() error, error) {
	if dir == "" {
		return nil, nil, fmt.Errorf("missing --localfs-dir")
	}
	s, err := New(dir)
	if err != nil {
		return nil, nil, err
	}
	return s, nil, nil
}
