package bundle

import (
	"context"
	"errors"
	"fmt"

	"xdao.co/actorbundle/actors"
	"xdao.co/actorbundle/manifest"
	"xdao.co/actorbundle/storage"
	"xdao.co/actorbundle/wasmcheck"
)

// Kind classifies a build failure. Every kind is fatal for the variant
// being built and none is retried here.
type Kind uint8

const (
	// KindIntegrity means a block's bytes do not match its CID, or a
	// manifest entry references a block the bundle does not contain.
	KindIntegrity Kind = iota + 1
	// KindDuplicateActorType means two modules claim one actor type.
	KindDuplicateActorType
	// KindMissingRequiredType means a full bundle lacks a mandatory type.
	KindMissingRequiredType
	// KindEncoding means the manifest could not be canonically encoded.
	KindEncoding
	// KindIO means the archive sink failed. Partial output is invalid.
	KindIO
	// KindInvalidModule means a module was rejected before addressing.
	KindInvalidModule
	// KindCanceled means the context ended before the archive was committed.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindIntegrity:
		return "integrity"
	case KindDuplicateActorType:
		return "duplicate-actor-type"
	case KindMissingRequiredType:
		return "missing-required-type"
	case KindEncoding:
		return "encoding"
	case KindIO:
		return "io"
	case KindInvalidModule:
		return "invalid-module"
	case KindCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Error is returned by Build for every failure.
type Error struct {
	Kind    Kind
	Variant string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	prefix := "bundle"
	if e.Variant != "" {
		prefix = "bundle " + e.Variant
	}
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// IsKind reports whether err is a *Error of kind k.
func IsKind(err error, k Kind) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == k
}

// KindOf returns the kind of err, or 0 if err is not a *Error.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return 0
}

// classify maps an error from a lower layer to a build error.
func classify(variant, msg string, err error) *Error {
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	var dup *manifest.DuplicateTypeError
	var miss *manifest.MissingTypeError
	var exp *wasmcheck.MissingExportsError
	kind := KindIO
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = KindCanceled
	case errors.As(err, &dup):
		kind = KindDuplicateActorType
	case errors.As(err, &miss):
		kind = KindMissingRequiredType
	case errors.Is(err, manifest.ErrEncoding):
		kind = KindEncoding
	case storage.IsIntegrity(err), errors.Is(err, storage.ErrInvalidCID):
		kind = KindIntegrity
	case errors.Is(err, actors.ErrUnknownType), errors.Is(err, wasmcheck.ErrInvalidModule), errors.As(err, &exp):
		kind = KindInvalidModule
	}
	return &Error{Kind: kind, Variant: variant, Message: msg, Cause: err}
}
