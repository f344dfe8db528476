// Package payload implements the content payload wire format used for
// in-place navigation, and the compatibility key gate that guards it.
//
// Layout (big-endian):
//
//	offset 0      uint32  compatibility key
//	offset 4      uint32  page-data length N
//	offset 8      N bytes page data (a single msgpack value)
//	offset 8+N    head block (a single msgpack array of HeadTag)
//
// The head block must consume the remainder of the payload exactly. The
// layout is shared by producer and consumer; any change to it requires a new
// CompatibilityKey.
package payload

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// CompatibilityKey identifies the wire format produced by this build.
const CompatibilityKey uint32 = 1

const headerSize = 8

var (
	// ErrPayloadInvalid is the umbrella error for any payload that must not
	// be applied. All other payload errors match it with errors.Is.
	ErrPayloadInvalid = errors.New("payload: invalid")

	ErrTruncated    = fmt.Errorf("%w: truncated", ErrPayloadInvalid)
	ErrMalformed    = fmt.Errorf("%w: malformed block", ErrPayloadInvalid)
	ErrIncompatible = fmt.Errorf("%w: compatibility key mismatch", ErrPayloadInvalid)
)

// Attr is a single head tag attribute.
type Attr struct {
	Name  string `msgpack:"n"`
	Value string `msgpack:"v"`
}

// HeadTag describes one element to place in the document head.
type HeadTag struct {
	Name    string `msgpack:"t"`
	Attrs   []Attr `msgpack:"a,omitempty"`
	Content string `msgpack:"c,omitempty"`
}

// Attr returns the value of the named attribute.
func (h HeadTag) Attr(name string) (string, bool) {
	for _, a := range h.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Payload is a decoded content payload.
type Payload struct {
	Key  uint32
	Data []byte // raw msgpack page data, see UnmarshalData
	Head []HeadTag
}

// Accepts reports whether a payload produced under payloadKey can be
// interpreted by a runtime built with runtimeKey.
func Accepts(payloadKey, runtimeKey uint32) bool {
	return payloadKey == runtimeKey
}

// Encode assembles a payload from already-encoded page data.
// data must hold exactly one msgpack value.
func Encode(key uint32, data []byte, head []HeadTag) ([]byte, error) {
	if head == nil {
		head = []HeadTag{}
	}
	headBlock, err := msgpack.Marshal(head)
	if err != nil {
		return nil, fmt.Errorf("payload: encode head: %w", err)
	}

	buf := make([]byte, headerSize, headerSize+len(data)+len(headBlock))
	binary.BigEndian.PutUint32(buf[0:4], key)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(data)))
	buf = append(buf, data...)
	buf = append(buf, headBlock...)
	return buf, nil
}

// Marshal msgpack-encodes v as page data and assembles a payload.
func Marshal(key uint32, v any, head []HeadTag) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("payload: encode data: %w", err)
	}
	return Encode(key, data, head)
}

// Key reads the compatibility key without interpreting anything else.
func Key(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, ErrTruncated
	}
	return binary.BigEndian.Uint32(b[0:4]), nil
}

// Decode parses a payload and validates both data blocks. It does not check
// the compatibility key; use Open for that.
func Decode(b []byte) (*Payload, error) {
	key, err := Key(b)
	if err != nil {
		return nil, err
	}
	return decodeBlocks(key, b)
}

// Open checks the compatibility key against runtimeKey and only then decodes
// the rest of the payload. A mismatched payload is never partially read.
func Open(b []byte, runtimeKey uint32) (*Payload, error) {
	key, err := Key(b)
	if err != nil {
		return nil, err
	}
	if !Accepts(key, runtimeKey) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrIncompatible, key, runtimeKey)
	}
	return decodeBlocks(key, b)
}

func decodeBlocks(key uint32, b []byte) (*Payload, error) {
	if len(b) < headerSize {
		return nil, ErrTruncated
	}
	n := binary.BigEndian.Uint32(b[4:8])
	if uint64(n) > uint64(len(b)-headerSize) {
		return nil, ErrTruncated
	}
	data := b[headerSize : headerSize+int(n)]
	rest := b[headerSize+int(n):]

	if err := checkSingleValue(data); err != nil {
		return nil, err
	}

	var head []HeadTag
	r := bytes.NewReader(rest)
	if err := msgpack.NewDecoder(r).Decode(&head); err != nil {
		return nil, fmt.Errorf("%w: head: %v", ErrMalformed, err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, r.Len())
	}

	return &Payload{
		Key:  key,
		Data: append([]byte(nil), data...),
		Head: head,
	}, nil
}

// checkSingleValue verifies that b holds exactly one msgpack value.
func checkSingleValue(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("%w: empty page data", ErrMalformed)
	}
	r := bytes.NewReader(b)
	if err := msgpack.NewDecoder(r).Skip(); err != nil {
		return fmt.Errorf("%w: page data: %v", ErrMalformed, err)
	}
	if r.Len() != 0 {
		return fmt.Errorf("%w: page data has %d trailing bytes", ErrMalformed, r.Len())
	}
	return nil
}

// UnmarshalData decodes the payload's page data into v.
func UnmarshalData(p *Payload, v any) error {
	return msgpack.Unmarshal(p.Data, v)
}
