package manifest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"

	"xdao.co/actorbundle/actors"
)

// ErrEncoding wraps failures to produce or parse the canonical form.
var ErrEncoding = errors.New("manifest: encoding error")

// DuplicateTypeError reports two code blocks claiming one actor type.
type DuplicateTypeError struct {
	Type        actors.Type
	Existing    cid.Cid
	Conflicting cid.Cid
}

func (e *DuplicateTypeError) Error() string {
	return fmt.Sprintf("manifest: duplicate actor type %s: %s and %s", e.Type, e.Existing, e.Conflicting)
}

// MissingTypeError reports required actor types absent from a manifest.
type MissingTypeError struct {
	Missing []actors.Type
}

func (e *MissingTypeError) Error() string {
	names := make([]string, 0, len(e.Missing))
	for _, t := range e.Missing {
		names = append(names, fmt.Sprintf("%s(%d)", t, uint32(t)))
	}
	return "manifest: missing required actor types: " + strings.Join(names, ", ")
}
