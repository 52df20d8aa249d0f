// Package wasmcheck validates actor bytecode before it is addressed.
//
// Validation compiles the module with the wazero interpreter; nothing is
// instantiated or executed. A bundle never inspects bytecode otherwise, so
// this check is opt-in.
package wasmcheck

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero"
)

// ErrInvalidModule is returned when bytes are not a loadable Wasm module.
var ErrInvalidModule = errors.New("wasmcheck: invalid wasm module")

// MissingExportsError lists required function exports the module lacks.
type MissingExportsError struct {
	Missing []string
}

func (e *MissingExportsError) Error() string {
	return "wasmcheck: missing exports: " + strings.Join(e.Missing, ", ")
}

// Checker compiles modules and checks their exported functions.
// A Checker is safe for concurrent use.
type Checker struct {
	// RequiredExports are function names every module must export.
	RequiredExports []string
}

// Check compiles code and verifies RequiredExports.
func (c Checker) Check(ctx context.Context, code []byte) error {
	if len(code) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidModule)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, code)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidModule, err)
	}
	defer compiled.Close(ctx)

	if len(c.RequiredExports) == 0 {
		return nil
	}
	exported := compiled.ExportedFunctions()
	var missing []string
	for _, name := range c.RequiredExports {
		if _, ok := exported[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &MissingExportsError{Missing: missing}
	}
	return nil
}

// Exports returns the sorted names of the module's exported functions.
func Exports(ctx context.Context, code []byte) ([]string, error) {
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModule, err)
	}
	defer compiled.Close(ctx)

	names := make([]string, 0, len(compiled.ExportedFunctions()))
	for name := range compiled.ExportedFunctions() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
