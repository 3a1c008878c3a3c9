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
	"encoding/asn1"
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"
)

// DecodeInteger decodes the content octets of an INTEGER.
func DecodeInteger(content []byte) (*big.Int, error) {
	if err := checkInteger(content); err != nil {
		return nil, err
	}
	n := new(big.Int)
	if content[0]&0x80 == 0 {
		return n.SetBytes(content), nil
	}

	// negative: n = -(^content + 1)
	inverted := make([]byte, len(content))
	for i, b := range content {
		inverted[i] = ^b
	}
	n.SetBytes(inverted)
	n.Add(n, big.NewInt(1))
	return n.Neg(n), nil
}

// DecodeInt64 decodes the content octets of an INTEGER that must fit an
// int64.
func DecodeInt64(content []byte) (int64, error) {
	n, err := DecodeInteger(content)
	if err != nil {
		return 0, err
	}
	if !n.IsInt64() {
		return 0, decodeError(TagInteger, "integer too large")
	}
	return n.Int64(), nil
}

func checkInteger(content []byte) error {
	if len(content) == 0 {
		return decodeError(TagInteger, "empty integer")
	}
	if len(content) > 1 {
		if (content[0] == 0x00 && content[1]&0x80 == 0) ||
			(content[0] == 0xff && content[1]&0x80 != 0) {
			return decodeError(TagInteger, "integer not minimally encoded")
		}
	}
	return nil
}

// DecodeBoolean decodes the content octets of a BOOLEAN.
func DecodeBoolean(content []byte) (bool, error) {
	if len(content) != 1 {
		return false, decodeError(TagBoolean, "invalid boolean length %d", len(content))
	}
	switch content[0] {
	case 0x00:
		return false, nil
	case 0xff:
		return true, nil
	}
	return false, decodeError(TagBoolean, "invalid boolean value 0x%02x", content[0])
}

// DecodeNull checks the content octets of a NULL.
func DecodeNull(content []byte) error {
	if len(content) != 0 {
		return decodeError(TagNull, "null with content")
	}
	return nil
}

// DecodeOID decodes the content octets of an OBJECT IDENTIFIER.
func DecodeOID(content []byte) (asn1.ObjectIdentifier, error) {
	if len(content) == 0 {
		return nil, decodeError(TagOID, "empty object identifier")
	}
	var oid asn1.ObjectIdentifier
	for i := 0; i < len(content); {
		v, n, err := readBase128(content[i:])
		if err != nil {
			return nil, err
		}
		if i == 0 {
			switch {
			case v < 40:
				oid = append(oid, 0, v)
			case v < 80:
				oid = append(oid, 1, v-40)
			default:
				oid = append(oid, 2, v-80)
			}
		} else {
			oid = append(oid, v)
		}
		i += n
	}
	return oid, nil
}

func readBase128(b []byte) (int, int, error) {
	if b[0] == 0x80 {
		return 0, 0, decodeError(TagOID, "subidentifier not minimally encoded")
	}
	v := 0
	for i, c := range b {
		if v > math.MaxInt32>>7 {
			return 0, 0, decodeError(TagOID, "subidentifier too large")
		}
		v = v<<7 | int(c&0x7f)
		if c&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, decodeError(TagOID, "truncated subidentifier")
}

// ParseOID parses an object identifier in dotted decimal form, e.g.
// "2.16.840.1.101.3.4.2.1".
func ParseOID(dotted string) (asn1.ObjectIdentifier, error) {
	parts := strings.Split(dotted, ".")
	if len(parts) < 2 {
		return nil, decodeError(TagOID, "object identifier %q has less than two arcs", dotted)
	}
	oid := make(asn1.ObjectIdentifier, 0, len(parts))
	for _, p := range parts {
		if p == "" || strings.TrimLeft(p, "0123456789") != "" {
			return nil, decodeError(TagOID, "invalid arc %q in object identifier %q", p, dotted)
		}
		if len(p) > 1 && p[0] == '0' {
			return nil, decodeError(TagOID, "arc %q has leading zeros in %q", p, dotted)
		}
		arc, err := strconv.Atoi(p)
		if err != nil || arc > math.MaxInt32 {
			return nil, decodeError(TagOID, "arc %q out of range in %q", p, dotted)
		}
		oid = append(oid, arc)
	}
	if oid[0] > 2 || (oid[0] < 2 && oid[1] >= 40) {
		return nil, decodeError(TagOID, "invalid leading arcs in object identifier %q", dotted)
	}
	return oid, nil
}

// BitString is a decoded BIT STRING.
type BitString struct {
	Bytes     []byte
	BitLength int
}

// At returns the bit at the given index, counting from the most significant
// bit of the first octet. Out of range indexes return 0.
func (b BitString) At(i int) int {
	if i < 0 || i >= b.BitLength {
		return 0
	}
	return int(b.Bytes[i/8]>>(7-uint(i%8))) & 1
}

// DecodeBitString decodes the content octets of a BIT STRING.
func DecodeBitString(content []byte) (BitString, error) {
	if len(content) == 0 {
		return BitString{}, decodeError(TagBitString, "empty bit string")
	}
	padding := int(content[0])
	if padding > 7 || (len(content) == 1 && padding > 0) {
		return BitString{}, decodeError(TagBitString, "invalid padding bits %d", padding)
	}
	data := content[1:]
	if padding > 0 && data[len(data)-1]&(1<<uint(padding)-1) != 0 {
		return BitString{}, decodeError(TagBitString, "non-zero padding bits")
	}
	return BitString{
		Bytes:     data,
		BitLength: len(data)*8 - padding,
	}, nil
}

// DecodeUTF8String decodes the content octets of a UTF8String.
func DecodeUTF8String(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", decodeError(TagUTF8String, "invalid UTF-8")
	}
	return string(content), nil
}
