package release

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SeedSize is the size of every signing seed.
const SeedSize = ed25519.SeedSize

// KeyStore keeps hex-encoded signing seeds under Directory, one file per
// key name, mode 0600.
type KeyStore struct {
	Directory string
}

func DefaultDirectory() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".actorbundle", "keys"), nil
}

// OpenKeyStore returns a store rooted at dir, or at DefaultDirectory when dir is empty.
func OpenKeyStore(dir string) (*KeyStore, error) {
	if dir == "" {
		var err error
		dir, err = DefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: dir}, nil
}

// NewSeed returns a fresh random seed.
func NewSeed() ([]byte, error) {
	seed := make([]byte, SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	return seed, nil
}

func CheckKeyName(name string) error {
	if name == "" {
		return errors.New("key name cannot be empty")
	}
	for _, c := range name {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in key name", c)
	}
	return nil
}

func (ks *KeyStore) path(name string) string {
	return filepath.Join(ks.Directory, name+".key")
}

// Save writes seed under name. Existing keys are kept unless overwrite is set.
func (ks *KeyStore) Save(name string, seed []byte, overwrite bool) (string, error) {
	if err := CheckKeyName(name); err != nil {
		return "", err
	}
	if len(seed) != SeedSize {
		return "", fmt.Errorf("expected seed length of %d bytes", SeedSize)
	}
	path := ks.path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		return "", err
	}
	return path, f.Close()
}

// Load returns the seed stored under name.
func (ks *KeyStore) Load(name string) ([]byte, error) {
	if err := CheckKeyName(name); err != nil {
		return nil, err
	}
	return LoadSeedFile(ks.path(name))
}

// List returns stored key names, sorted.
func (ks *KeyStore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".key") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".key"))
	}
	sort.Strings(names)
	return names, nil
}

// ParseSeedHex decodes a 32-byte seed, tolerating surrounding space and a 0x prefix.
func ParseSeedHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	seed, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", SeedSize, len(seed))
	}
	return seed, nil
}

// LoadSeedFile reads a hex seed file.
func LoadSeedFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeedHex(string(b))
}

// DeriveVariantSeed derives a per-variant signing seed from a root seed,
// so one release key can sign every network without sharing a keypair.
func DeriveVariantSeed(rootSeed []byte, variant string) ([]byte, error) {
	if len(rootSeed) != SeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", SeedSize)
	}
	if err := CheckKeyName(variant); err != nil {
		return nil, err
	}
	h := sha256.New()
	_, _ = h.Write(rootSeed)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("actorbundle-release-kdf-v1"))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("variant:"))
	_, _ = h.Write([]byte(variant))
	return h.Sum(nil)[:SeedSize], nil
}
