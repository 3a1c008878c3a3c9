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

// Package asn1 encodes and decodes the DER subset used by the Time-Stamp
// Protocol: INTEGER, BOOLEAN, NULL, OCTET STRING, BIT STRING, OBJECT
// IDENTIFIER, UTF8String, GeneralizedTime, SEQUENCE, SET and
// context-specific tags.
// Reference: http://luca.ntop.org/Teaching/Appunti/asn1.html
package asn1

import "fmt"

// Tag is a single identifier octet. The high-tag-number form is not
// supported since no structure of RFC 3161 needs it.
type Tag byte

// Universal tags.
const (
	TagBoolean         Tag = 0x01
	TagInteger         Tag = 0x02
	TagBitString       Tag = 0x03
	TagOctetString     Tag = 0x04
	TagNull            Tag = 0x05
	TagOID             Tag = 0x06
	TagUTF8String      Tag = 0x0c
	TagPrintableString Tag = 0x13
	TagIA5String       Tag = 0x16
	TagGeneralizedTime Tag = 0x18
	TagSequence        Tag = 0x30
	TagSet             Tag = 0x31
)

const (
	classContextSpecific = 0x80
	flagConstructed      = 0x20
)

// ContextTag returns the identifier of a context-specific tag [n].
// n must be less than 31.
func ContextTag(n int, constructed bool) Tag {
	t := Tag(classContextSpecific | byte(n&0x1f))
	if constructed {
		t |= flagConstructed
	}
	return t
}

// Constructed reports whether the constructed flag of the tag is set.
func (t Tag) Constructed() bool {
	return !isPrimitive(byte(t))
}

// String returns the tag in hex.
func (t Tag) String() string {
	return fmt.Sprintf("0x%02x", byte(t))
}

// DecodeError is returned when the input is not valid DER for the expected
// structure. Offset is the position of the offending identifier octet
// relative to the start of the decoded input, or -1 if unknown.
type DecodeError struct {
	Tag    Tag
	Offset int
	Msg    string
}

// Error returns error message.
func (e *DecodeError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("asn1: %s (tag %v)", e.Msg, e.Tag)
	}
	return fmt.Sprintf("asn1: %s (tag %v at offset %d)", e.Msg, e.Tag, e.Offset)
}

func decodeError(tag Tag, msg string, args ...interface{}) *DecodeError {
	return &DecodeError{
		Tag:    tag,
		Offset: -1,
		Msg:    fmt.Sprintf(msg, args...),
	}
}
