package config

import (
	"errors"
	"fmt"

	"xdao.co/actorbundle/storage"
	"xdao.co/actorbundle/storage/registry"
)

// Publish describes the block stores bundles are published to.
// Backends must be linked into the binary with blank imports.
//
// WritePolicy values:
// - "first" (default): write only to the first backend; reads fall back in order
// - "all": write to every backend (see storage.ReplicatingStore)
type Publish struct {
	WritePolicy string          `yaml:"write_policy"`
	Backends    []BackendConfig `yaml:"backends"`
}

type BackendConfig struct {
	// Name is the registry backend name (e.g. "grpc", "localfs", "ipfs").
	Name string `yaml:"name"`
	// ID is an optional stable alias used in error reports. Defaults to Name.
	ID     string            `yaml:"id"`
	Config map[string]string `yaml:"config"`
}

func (b BackendConfig) id() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

func (p Publish) Validate() error {
	if len(p.Backends) == 0 {
		return errors.New("config: publish needs at least one backend")
	}
	seen := make(map[string]struct{}, len(p.Backends))
	for _, b := range p.Backends {
		if b.Name == "" {
			return errors.New("config: backend name is required")
		}
		if _, ok := seen[b.id()]; ok {
			return fmt.Errorf("config: duplicate backend id %q", b.id())
		}
		seen[b.id()] = struct{}{}
	}
	switch p.WritePolicy {
	case "", "first", "all":
		return nil
	default:
		return fmt.Errorf("config: invalid write_policy %q", p.WritePolicy)
	}
}

// Open opens the configured backends.
//
// If preferred is non-empty, the matching backend is moved first and so
// receives writes under the "first" policy.
func (p Publish) Open(usage registry.Usage, preferred string) (storage.Blockstore, func() error, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}

	ordered := append([]BackendConfig(nil), p.Backends...)
	if preferred != "" {
		idx := -1
		for i := range ordered {
			if ordered[i].Name == preferred || ordered[i].ID == preferred {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, nil, fmt.Errorf("config: preferred backend %q not found", preferred)
		}
		if idx != 0 {
			b := ordered[idx]
			copy(ordered[1:idx+1], ordered[0:idx])
			ordered[0] = b
		}
	}

	named := make([]storage.NamedStore, 0, len(ordered))
	closers := make([]func() error, 0, len(ordered))
	closeAll := func() error {
		var firstErr error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	for _, b := range ordered {
		s, closeFn, err := registry.OpenWithConfig(b.Name, usage, b.Config)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("config: backend %q: %w", b.id(), err)
		}
		named = append(named, storage.NamedStore{Name: b.id(), Store: s})
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
	}

	if len(named) == 1 {
		return named[0].Store, closeAll, nil
	}
	switch p.WritePolicy {
	case "", "first":
		stores := make([]storage.Blockstore, 0, len(named))
		for _, n := range named {
			stores = append(stores, n.Store)
		}
		return storage.MultiStore{Stores: stores}, closeAll, nil
	default:
		return storage.ReplicatingStore{Backends: named}, closeAll, nil
	}
}
