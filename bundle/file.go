package bundle

import (
	"context"
	"os"
	"path/filepath"

	"xdao.co/actorbundle/storage/car"
)

// BuildFile builds the bundle into path. The archive is written to a
// temporary file in the same directory, synced, and renamed over path only
// after a successful flush, so path never holds a partial archive.
//
// When opts.Compression is CompressionNone the compression is inferred
// from the suffix of path (.car.zst, .car.lz4).
func BuildFile(ctx context.Context, modules []Module, path string, opts Options) (res Result, err error) {
	if opts.Compression == car.CompressionNone {
		opts.Compression = car.CompressionForPath(path)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, &Error{Kind: KindIO, Variant: opts.Variant, Message: "create output dir", Cause: err}
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return Result{}, &Error{Kind: KindIO, Variant: opts.Variant, Message: "create temp file", Cause: err}
	}
	tmp := f.Name()
	committed := false
	defer func() {
		if !committed {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	res, err = Build(ctx, modules, f, opts)
	if err != nil {
		return Result{}, err
	}
	if err := f.Sync(); err != nil {
		return Result{}, &Error{Kind: KindIO, Variant: opts.Variant, Message: "sync", Cause: err}
	}
	if err := f.Close(); err != nil {
		return Result{}, &Error{Kind: KindIO, Variant: opts.Variant, Message: "close", Cause: err}
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		return Result{}, &Error{Kind: KindIO, Variant: opts.Variant, Message: "chmod", Cause: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return Result{}, &Error{Kind: KindIO, Variant: opts.Variant, Message: "rename", Cause: err}
	}
	committed = true
	res.Path = path
	return res, nil
}
