// Copyright The Notary Project Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package asn1

import (
	"bytes"
	"encoding/asn1"
	"errors"
	"math/big"
	"time"
)

// Element is a decoded tag-length-value triple.
type Element struct {
	// Tag is the identifier octet.
	Tag Tag

	// Offset is the position of the identifier octet relative to the start
	// of the outermost input.
	Offset int

	// Content holds the content octets.
	Content []byte

	// Raw holds the identifier, length and content octets.
	Raw []byte
}

// Children returns a reader over the members of a constructed element.
func (e Element) Children() *Reader {
	return &Reader{
		data: e.Content,
		base: e.Offset + len(e.Raw) - len(e.Content),
	}
}

// Reader iterates over consecutive DER elements in a byte slice.
// Definite-length BER is accepted; indefinite lengths and high tag numbers
// are not.
type Reader struct {
	data []byte
	base int
	pos  int
}

// NewReader returns a reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Empty reports whether all elements have been consumed.
func (r *Reader) Empty() bool {
	return r.pos >= len(r.data)
}

// Offset returns the absolute offset of the next element.
func (r *Reader) Offset() int {
	return r.base + r.pos
}

// Peek returns the tag of the next element without consuming it.
func (r *Reader) Peek() (Tag, bool) {
	if r.Empty() {
		return 0, false
	}
	return Tag(r.data[r.pos]), true
}

// Next reads the next element.
func (r *Reader) Next() (Element, error) {
	offset := r.Offset()
	if r.Empty() {
		return Element{}, &DecodeError{Offset: offset, Msg: "unexpected end of data"}
	}
	remaining := r.data[r.pos:]
	tag := Tag(remaining[0])

	br := bytes.NewReader(remaining)
	identifier, err := decodeIdentifier(br)
	if err != nil {
		return Element{}, &DecodeError{Tag: tag, Offset: offset, Msg: err.Error()}
	}
	if len(identifier) != 1 {
		return Element{}, &DecodeError{Tag: tag, Offset: offset, Msg: "high tag number form not supported"}
	}
	length, err := decodeLength(br)
	if err != nil {
		return Element{}, &DecodeError{Tag: tag, Offset: offset, Msg: "invalid length: " + err.Error()}
	}
	header := len(remaining) - br.Len()
	if length > br.Len() {
		return Element{}, &DecodeError{Tag: tag, Offset: offset, Msg: "truncated value"}
	}

	raw := remaining[:header+length]
	r.pos += len(raw)
	return Element{
		Tag:     tag,
		Offset:  offset,
		Content: raw[header:],
		Raw:     raw,
	}, nil
}

// Expect reads the next element and checks its tag.
func (r *Reader) Expect(tag Tag) (Element, error) {
	if got, ok := r.Peek(); ok && got != tag {
		return Element{}, &DecodeError{Tag: got, Offset: r.Offset(), Msg: "unexpected tag, want " + tag.String()}
	}
	e, err := r.Next()
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) && de.Tag == 0 {
			de.Tag = tag
		}
		return Element{}, err
	}
	return e, nil
}

// Optional reads the next element if it carries the given tag.
func (r *Reader) Optional(tag Tag) (Element, bool, error) {
	if got, ok := r.Peek(); !ok || got != tag {
		return Element{}, false, nil
	}
	e, err := r.Next()
	if err != nil {
		return Element{}, false, err
	}
	return e, true, nil
}

// Finish returns an error if unread data remains.
func (r *Reader) Finish() error {
	if r.Empty() {
		return nil
	}
	tag, _ := r.Peek()
	return &DecodeError{Tag: tag, Offset: r.Offset(), Msg: "trailing data"}
}

// ReadSequence reads a SEQUENCE and returns a reader over its members.
func (r *Reader) ReadSequence() (*Reader, error) {
	e, err := r.Expect(TagSequence)
	if err != nil {
		return nil, err
	}
	return e.Children(), nil
}

// ReadInteger reads an INTEGER.
func (r *Reader) ReadInteger() (*big.Int, error) {
	e, err := r.Expect(TagInteger)
	if err != nil {
		return nil, err
	}
	n, err := DecodeInteger(e.Content)
	return n, at(e, err)
}

// ReadInt64 reads an INTEGER that fits an int64.
func (r *Reader) ReadInt64() (int64, error) {
	e, err := r.Expect(TagInteger)
	if err != nil {
		return 0, err
	}
	n, err := DecodeInt64(e.Content)
	return n, at(e, err)
}

// ReadBoolean reads a BOOLEAN.
func (r *Reader) ReadBoolean() (bool, error) {
	e, err := r.Expect(TagBoolean)
	if err != nil {
		return false, err
	}
	v, err := DecodeBoolean(e.Content)
	return v, at(e, err)
}

// ReadOctetString reads a primitive OCTET STRING.
func (r *Reader) ReadOctetString() ([]byte, error) {
	e, err := r.Expect(TagOctetString)
	if err != nil {
		return nil, err
	}
	return e.Content, nil
}

// ReadOID reads an OBJECT IDENTIFIER.
func (r *Reader) ReadOID() (asn1.ObjectIdentifier, error) {
	e, err := r.Expect(TagOID)
	if err != nil {
		return nil, err
	}
	oid, err := DecodeOID(e.Content)
	return oid, at(e, err)
}

// ReadGeneralizedTime reads a GeneralizedTime.
func (r *Reader) ReadGeneralizedTime() (time.Time, error) {
	e, err := r.Expect(TagGeneralizedTime)
	if err != nil {
		return time.Time{}, err
	}
	t, err := DecodeGeneralizedTime(e.Content)
	return t, at(e, err)
}

// at sets the offset of a content decoding error to the element offset.
func at(e Element, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		de.Offset = e.Offset
	}
	return err
}
