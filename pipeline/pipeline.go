// Package pipeline builds several variants side by side. Each variant gets
// its own module fetch and its own bundle build; a failure is reported in
// that variant's Outcome and never stops its siblings.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"xdao.co/actorbundle/bundle"
	"xdao.co/actorbundle/internal/ctxlog"
	"xdao.co/actorbundle/source"
	"xdao.co/actorbundle/storage"
	"xdao.co/actorbundle/variant"
)

// Request describes one multi-variant run.
type Request struct {
	Variants []variant.Variant
	Source   source.Source
	// OutDir receives <variant><ext> files. When empty, archives are kept
	// in memory and returned in Outcome.Archive.
	OutDir string
	// Options is the template for every build. Variant and Required are
	// filled in per variant.
	Options bundle.Options
	// Parallel bounds concurrent builds. Zero runs every variant at once.
	Parallel int
	// Publish, when set, receives every block of each successful build.
	Publish storage.Blockstore
}

// Outcome is the result for one variant.
type Outcome struct {
	Variant variant.Variant
	Result  bundle.Result
	// Archive holds the archive bytes when Request.OutDir is empty.
	Archive   []byte
	Published bool
	Err       error
}

// Run builds every requested variant and returns one Outcome per variant
// in request order.
func Run(ctx context.Context, req Request) ([]Outcome, error) {
	if req.Source == nil {
		return nil, errors.New("pipeline: source is required")
	}
	if len(req.Variants) == 0 {
		return nil, errors.New("pipeline: no variants requested")
	}
	seen := map[string]bool{}
	for _, v := range req.Variants {
		if seen[v.Name] {
			return nil, errors.New("pipeline: variant requested twice: " + v.Name)
		}
		seen[v.Name] = true
	}

	parallel := req.Parallel
	if parallel <= 0 || parallel > len(req.Variants) {
		parallel = len(req.Variants)
	}
	sem := make(chan struct{}, parallel)
	out := make([]Outcome, len(req.Variants))
	var wg sync.WaitGroup
	for i, v := range req.Variants {
		wg.Add(1)
		go func(i int, v variant.Variant) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				out[i] = Outcome{Variant: v, Err: &bundle.Error{Kind: bundle.KindCanceled, Variant: v.Name, Message: "queued", Cause: ctx.Err()}}
				return
			}
			defer func() { <-sem }()
			out[i] = runOne(ctx, req, v)
		}(i, v)
	}
	wg.Wait()
	return out, nil
}

func runOne(ctx context.Context, req Request, v variant.Variant) Outcome {
	logger := ctxlog.FromContext(ctx).With(zap.String("variant", v.Name))
	ctx = ctxlog.WithLogger(ctx, logger)
	o := Outcome{Variant: v}

	mods, err := req.Source.Modules(ctx, v)
	if err != nil {
		logger.Error("module source failed", zap.Error(err))
		o.Err = err
		return o
	}

	opts := req.Options
	opts.Variant = v.Name
	opts.Required = v.Required()

	if req.OutDir != "" {
		path := filepath.Join(req.OutDir, v.Name+opts.Compression.Extension())
		o.Result, o.Err = bundle.BuildFile(ctx, mods, path, opts)
	} else {
		var buf bytes.Buffer
		o.Result, o.Err = bundle.Build(ctx, mods, &buf, opts)
		if o.Err == nil {
			o.Archive = buf.Bytes()
		}
	}
	if o.Err != nil {
		return o
	}

	if req.Publish != nil {
		if err := storage.PutAll(req.Publish, o.Result.Blocks); err != nil {
			logger.Error("publish failed", zap.Error(err))
			o.Err = err
			return o
		}
		o.Published = true
		logger.Info("bundle published", zap.Stringer("root", o.Result.Root))
	}
	return o
}

// Failed returns the outcomes that carry an error.
func Failed(outcomes []Outcome) []Outcome {
	var failed []Outcome
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}
