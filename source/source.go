// Package source supplies compiled actor modules for a variant. The
// compiler itself is external; sources only locate or produce its output.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"xdao.co/actorbundle/actors"
	"xdao.co/actorbundle/bundle"
	"xdao.co/actorbundle/internal/ctxlog"
	"xdao.co/actorbundle/variant"
)

// ModuleExt is the file suffix of compiled actor modules.
const ModuleExt = ".wasm"

// ErrUnknownModule is returned for a module file whose name is not an actor name.
var ErrUnknownModule = errors.New("source: unknown module file")

// Source yields the module set for one variant. Each call returns fresh
// slices; callers may not assume results are shared between calls.
type Source interface {
	Modules(ctx context.Context, v variant.Variant) ([]bundle.Module, error)
}

// Dir reads modules from a directory tree. For variant v it uses
// Root/<v.Name> when that directory exists, otherwise Root itself. Each
// file must be named <actor-name>.wasm (for example storageminer.wasm).
type Dir struct {
	Root string
	// IgnoreUnknown skips .wasm files that do not name an actor.
	IgnoreUnknown bool
}

func (d Dir) dirFor(v variant.Variant) (string, error) {
	if d.Root == "" {
		return "", errors.New("source: empty module root")
	}
	if v.Name != "" {
		p := filepath.Join(d.Root, v.Name)
		if st, err := os.Stat(p); err == nil && st.IsDir() {
			return p, nil
		}
	}
	st, err := os.Stat(d.Root)
	if err != nil {
		return "", err
	}
	if !st.IsDir() {
		return "", fmt.Errorf("source: %s is not a directory", d.Root)
	}
	return d.Root, nil
}

func (d Dir) Modules(ctx context.Context, v variant.Variant) ([]bundle.Module, error) {
	dir, err := d.dirFor(v)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx)
	var mods []bundle.Module
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), ModuleExt) {
			continue
		}
		typ, err := actors.ParseName(strings.TrimSuffix(e.Name(), ModuleExt))
		if err != nil {
			if d.IgnoreUnknown {
				logger.Debug("skipping unknown module file", zap.String("file", e.Name()))
				continue
			}
			return nil, fmt.Errorf("%w: %s", ErrUnknownModule, filepath.Join(dir, e.Name()))
		}
		code, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		mods = append(mods, bundle.Module{Type: typ, Name: e.Name(), Code: code})
	}
	logger.Debug("modules discovered", zap.String("dir", dir), zap.Int("count", len(mods)))
	return mods, nil
}

// Command runs an external compiler once per variant and then reads its
// output directory. The compiler receives the variant's settings through
// the environment (see variant.Variant.Env) and ACTORBUNDLE_OUT_DIR.
type Command struct {
	Path string
	Args []string
	// OutDir is the parent of per-variant output directories.
	OutDir string
	// Env is appended to the inherited environment.
	Env []string
	// Timeout bounds one compiler run. Zero means no limit.
	Timeout       time.Duration
	IgnoreUnknown bool
}

func (c Command) Modules(ctx context.Context, v variant.Variant) ([]bundle.Module, error) {
	if c.Path == "" {
		return nil, errors.New("source: compiler path is required")
	}
	if c.OutDir == "" {
		return nil, errors.New("source: compiler output dir is required")
	}
	out := filepath.Join(c.OutDir, v.Name)
	if err := os.MkdirAll(out, 0o755); err != nil {
		return nil, err
	}

	runCtx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(runCtx, c.Path, c.Args...)
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Env = append(cmd.Env, v.Env()...)
	cmd.Env = append(cmd.Env, "ACTORBUNDLE_OUT_DIR="+out)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger := ctxlog.FromContext(ctx).With(zap.String("variant", v.Name))
	logger.Info("running compiler", zap.String("path", c.Path), zap.Strings("args", c.Args))
	start := time.Now()
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("source: compiler for %s: %w: %s", v.Name, err, msg)
		}
		return nil, fmt.Errorf("source: compiler for %s: %w", v.Name, err)
	}
	logger.Info("compiler finished", zap.Duration("elapsed", time.Since(start)))
	return Dir{Root: out, IgnoreUnknown: c.IgnoreUnknown}.Modules(ctx, variant.Variant{})
}

// Static serves fixed modules. ByVariant takes precedence over Default.
// Returned slices are copies.
type Static struct {
	ByVariant map[string][]bundle.Module
	Default   []bundle.Module
}

func (s Static) Modules(ctx context.Context, v variant.Variant) ([]bundle.Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mods, ok := s.ByVariant[v.Name]
	if !ok {
		mods = s.Default
	}
	out := make([]bundle.Module, len(mods))
	for i, m := range mods {
		m.Code = append([]byte(nil), m.Code...)
		out[i] = m
	}
	return out, nil
}
