// Package bundle builds one actor bundle: it addresses every compiled
// module, assembles the manifest, and streams a single-root CAR archive.
//
// A build owns all of its state. Nothing is cached between calls, so
// builds for different variants may run concurrently in one process.
package bundle

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/ipfs/go-cid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"xdao.co/actorbundle/actors"
	"xdao.co/actorbundle/cidutil"
	"xdao.co/actorbundle/internal/ctxlog"
	"xdao.co/actorbundle/manifest"
	"xdao.co/actorbundle/storage"
	"xdao.co/actorbundle/storage/car"
	"xdao.co/actorbundle/wasmcheck"
)

// DefaultWorkers is the addressing pool size when Options.Workers is unset.
const DefaultWorkers = 4

var tracer = otel.Tracer("xdao.co/actorbundle/bundle")

// Module is one compiled actor.
type Module struct {
	Type actors.Type
	// Name identifies the module in errors (usually its file name).
	// It never affects the archive.
	Name string
	Code []byte
}

func (m Module) label() string {
	if m.Name != "" {
		return m.Name
	}
	return m.Type.String()
}

// Options configures a build. The zero value builds a partial bundle with
// blake2b-256 CIDs and no bytecode validation.
type Options struct {
	// Variant names the build in errors, logs and the Result.
	Variant string
	Hash    cidutil.HashFunc
	// Required lists actor types that must all be present. Nil allows
	// partial bundles.
	Required []actors.Type
	// ValidateWasm compiles each module before addressing it.
	ValidateWasm bool
	// RequiredExports is checked when ValidateWasm is set.
	RequiredExports []string
	Workers         int
	// Compression wraps the archive stream written by Build.
	Compression car.Compression
}

// Result describes a committed archive.
type Result struct {
	Variant  string
	Root     cid.Cid
	Manifest *manifest.Manifest
	// Blocks is the archive's block sequence: code blocks by actor type,
	// then the manifest block.
	Blocks []storage.Block
	// Size is the uncompressed archive length in bytes.
	Size int64
	// Path is set by BuildFile.
	Path string
}

// Build writes the bundle for modules to w and returns its root.
//
// Every module and the manifest are validated before the first byte is
// written, so DuplicateActorType, MissingRequiredType and InvalidModule
// failures leave w untouched. An IO or Canceled failure may leave a
// partial archive in w that the caller must discard.
func Build(ctx context.Context, modules []Module, w io.Writer, opts Options) (Result, error) {
	ctx, span := tracer.Start(ctx, "bundle.Build", trace.WithAttributes(
		attribute.String("actorbundle.variant", opts.Variant),
		attribute.Int("actorbundle.modules", len(modules)),
	))
	defer span.End()

	res, err := build(ctx, modules, w, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, KindOf(err).String())
		return Result{}, err
	}
	span.SetAttributes(
		attribute.String("actorbundle.root", res.Root.String()),
		attribute.Int64("actorbundle.size", res.Size),
	)
	return res, nil
}

func build(ctx context.Context, modules []Module, w io.Writer, opts Options) (Result, error) {
	logger := ctxlog.FromContext(ctx).With(zap.String("variant", opts.Variant))

	b, err := newBuilder(opts)
	if err != nil {
		return Result{}, err
	}
	if err := b.assemble(ctx, modules); err != nil {
		logger.Warn("bundle rejected", zap.Error(err))
		return Result{}, err
	}
	size, err := b.emit(ctx, w)
	if err != nil {
		logger.Error("archive write failed", zap.Error(err))
		return Result{}, err
	}
	blocks := b.store.All()
	logger.Info("bundle built",
		zap.Stringer("root", b.root),
		zap.Int("actors", b.man.Len()),
		zap.Int("blocks", len(blocks)),
		zap.Int64("bytes", size),
	)
	return Result{
		Variant:  opts.Variant,
		Root:     b.root,
		Manifest: b.man,
		Blocks:   blocks,
		Size:     size,
	}, nil
}

// builder is the per-build context. It is never shared between builds.
type builder struct {
	opts  Options
	addr  cidutil.Addresser
	store *storage.MemStore
	mb    *manifest.Builder

	man  *manifest.Manifest
	root cid.Cid
}

func newBuilder(opts Options) (*builder, error) {
	hash := opts.Hash
	if hash == "" {
		hash = cidutil.DefaultHash
	}
	if _, err := hash.Code(); err != nil {
		return nil, &Error{Kind: KindEncoding, Variant: opts.Variant, Message: "hash function", Cause: err}
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &builder{
		opts:  opts,
		addr:  cidutil.Addresser{Hash: hash},
		store: storage.NewMemStore(),
		mb:    manifest.NewBuilder(),
	}, nil
}

type addressed struct {
	mod   Module
	block storage.Block
	err   error
}

// address computes code blocks on a bounded pool. The result is sorted by
// actor type and CID, so later steps never see discovery order.
func (b *builder) address(ctx context.Context, modules []Module) ([]addressed, error) {
	out := make([]addressed, len(modules))
	workers := b.opts.Workers
	if workers > len(modules) {
		workers = len(modules)
	}
	checker := wasmcheck.Checker{RequiredExports: b.opts.RequiredExports}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				out[j] = b.addressOne(ctx, modules[j], checker)
			}
		}()
	}
feed:
	for i := range modules {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: KindCanceled, Variant: b.opts.Variant, Message: "addressing", Cause: err}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].mod.Type != out[j].mod.Type {
			return out[i].mod.Type < out[j].mod.Type
		}
		return out[i].block.CID.KeyString() < out[j].block.CID.KeyString()
	})
	return out, nil
}

func (b *builder) addressOne(ctx context.Context, m Module, checker wasmcheck.Checker) addressed {
	a := addressed{mod: m}
	if !m.Type.Known() {
		_, err := actors.FromUint64(uint64(m.Type))
		a.err = &Error{Kind: KindInvalidModule, Variant: b.opts.Variant, Message: fmt.Sprintf("module %q", m.label()), Cause: err}
		return a
	}
	if b.opts.ValidateWasm {
		if err := checker.Check(ctx, m.Code); err != nil {
			a.err = &Error{Kind: KindInvalidModule, Variant: b.opts.Variant, Message: fmt.Sprintf("module %q", m.label()), Cause: err}
			return a
		}
	}
	blk, err := storage.NewBlock(cidutil.CodecRaw, m.Code, b.addr)
	if err != nil {
		a.err = classify(b.opts.Variant, fmt.Sprintf("address %q", m.label()), err)
		return a
	}
	a.block = blk
	return a
}

// assemble fills the store with code blocks and the manifest block. It
// performs every check that can fail for reasons other than I/O.
func (b *builder) assemble(ctx context.Context, modules []Module) error {
	v := b.opts.Variant
	addressedMods, err := b.address(ctx, modules)
	if err != nil {
		return err
	}
	for _, a := range addressedMods {
		if a.err != nil {
			return a.err
		}
	}

	owners := make(map[actors.Type]string, len(addressedMods))
	for _, a := range addressedMods {
		if err := b.mb.Add(a.mod.Type, a.block.CID); err != nil {
			msg := fmt.Sprintf("actor type %s", a.mod.Type)
			if prev, ok := owners[a.mod.Type]; ok {
				msg = fmt.Sprintf("actor type %s claimed by %q and %q", a.mod.Type, prev, a.mod.label())
			}
			return classify(v, msg, err)
		}
		owners[a.mod.Type] = a.mod.label()
		if err := b.store.Put(a.block); err != nil {
			return classify(v, fmt.Sprintf("store %q", a.mod.label()), err)
		}
	}

	man, err := b.mb.Finalize(manifest.FinalizeOptions{Required: b.opts.Required})
	if err != nil {
		return classify(v, "finalize manifest", err)
	}
	mblk, err := man.Block(b.addr)
	if err != nil {
		return classify(v, "encode manifest", err)
	}
	if err := b.store.Put(mblk); err != nil {
		return classify(v, "store manifest", err)
	}
	if err := checkReferences(man, b.store); err != nil {
		return &Error{Kind: KindIntegrity, Variant: v, Message: "manifest references", Cause: err}
	}
	b.man = man
	b.root = mblk.CID
	return nil
}

// checkReferences verifies every manifest entry names a raw code block
// present in store whose bytes hash to the entry's CID.
func checkReferences(man *manifest.Manifest, store storage.Blockstore) error {
	for _, e := range man.Entries() {
		if e.Code.Type() != cidutil.CodecRaw {
			return fmt.Errorf("%s: code %s is not raw bytecode", e.Type, e.Code)
		}
		blk, err := store.Get(e.Code)
		if err != nil {
			return fmt.Errorf("%s: code %s: %w", e.Type, e.Code, err)
		}
		if err := blk.Verify(); err != nil {
			return fmt.Errorf("%s: code %s: %w", e.Type, e.Code, err)
		}
	}
	return nil
}

// emit streams the store's blocks to w. Cancellation is honoured between
// records; once the final flush starts the archive is committed.
func (b *builder) emit(ctx context.Context, w io.Writer) (int64, error) {
	v := b.opts.Variant
	ioErr := func(msg string, err error) error {
		return &Error{Kind: KindIO, Variant: v, Message: msg, Cause: err}
	}

	cw, err := car.CompressWriter(w, b.opts.Compression)
	if err != nil {
		return 0, ioErr("compression", err)
	}
	aw, err := car.NewWriter(cw, []cid.Cid{b.root})
	if err != nil {
		return 0, ioErr("write header", err)
	}
	for _, blk := range b.store.All() {
		if err := ctx.Err(); err != nil {
			return aw.Written(), &Error{Kind: KindCanceled, Variant: v, Message: "archive write", Cause: err}
		}
		if err := aw.Put(blk); err != nil {
			return aw.Written(), ioErr(fmt.Sprintf("write block %s", blk.CID), err)
		}
	}
	if err := ctx.Err(); err != nil {
		return aw.Written(), &Error{Kind: KindCanceled, Variant: v, Message: "archive write", Cause: err}
	}
	if err := aw.Close(); err != nil {
		return aw.Written(), ioErr("flush", err)
	}
	if err := cw.Close(); err != nil {
		return aw.Written(), ioErr("flush compressor", err)
	}
	return aw.Written(), nil
}
