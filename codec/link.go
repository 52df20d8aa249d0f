package codec

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
)

// TagCID is the CBOR tag IPLD assigns to CID links.
const TagCID = 42

var ErrInvalidLink = errors.New("codec: invalid cid link")

// Link is a CID encoded as an IPLD link: tag 42 over a byte string holding
// the multibase identity prefix 0x00 followed by the binary CID.
type Link struct {
	cid.Cid
}

func (l Link) MarshalCBOR() ([]byte, error) {
	if !l.Cid.Defined() {
		return nil, ErrInvalidLink
	}
	raw := l.Cid.Bytes()
	content := make([]byte, 0, len(raw)+1)
	content = append(content, 0x00)
	content = append(content, raw...)
	return encMode.Marshal(cbor.Tag{Number: TagCID, Content: content})
}

func (l *Link) UnmarshalCBOR(data []byte) error {
	var tag cbor.RawTag
	if err := decMode.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	if tag.Number != TagCID {
		return fmt.Errorf("%w: tag %d", ErrInvalidLink, tag.Number)
	}
	var content []byte
	if err := decMode.Unmarshal(tag.Content, &content); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	if len(content) < 2 || content[0] != 0x00 {
		return fmt.Errorf("%w: missing identity multibase prefix", ErrInvalidLink)
	}
	id, err := cid.Cast(content[1:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	l.Cid = id
	return nil
}
