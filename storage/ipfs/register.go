package ipfs

import (
	"os"
	"strconv"

	"github.com/spf13/pflag"

	"xdao.co/actorbundle/storage"
	"xdao.co/actorbundle/storage/registry"
)

var (
	flagBin  string
	flagPath string
	flagPin  bool
)

func init() {
	registry.MustRegister(registry.Backend{
		Name:        "ipfs",
		Description: "Local Kubo repo via the ipfs CLI",
		Usage:       registry.UsageCLI | registry.UsageDaemon,
		RegisterFlags: func(fs *pflag.FlagSet) {
			fs.StringVar(&flagBin, "ipfs-bin", "ipfs", "ipfs binary (for --backend=ipfs)")
			fs.StringVar(&flagPath, "ipfs-path", "", "IPFS_PATH override (for --backend=ipfs)")
			fs.BoolVar(&flagPin, "ipfs-pin", true, "Pin published blocks (for --backend=ipfs)")
		},
		Open: func() (storage.Blockstore, func() error, error) {
			return open(flagBin, flagPath, flagPin), nil, nil
		},
		OpenWithConfig: func(cfg map[string]string) (storage.Blockstore, func() error, error) {
			pin := true
			if v, ok := cfg["ipfs-pin"]; ok {
				b, err := strconv.ParseBool(v)
				if err != nil {
					return nil, nil, err
				}
				pin = b
			}
			return open(cfg["ipfs-bin"], cfg["ipfs-path"], pin), nil, nil
		},
	})
}

func open(bin, path string, pin bool) storage.Blockstore {
	var env []string
	if path != "" {
		env = append(os.Environ(), "IPFS_PATH="+path)
	}
	return New(Options{Bin: bin, Env: env, Pin: pin})
}
