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
	"fmt"
	"math/big"
)

// EncodeTLV encodes a value with the given identifier and content octets.
func EncodeTLV(tag Tag, content []byte) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 1+encodedLengthSize(len(content))+len(content)))
	buf.WriteByte(byte(tag))
	// writes to a bytes.Buffer never fail
	_ = encodeLength(buf, len(content))
	buf.Write(content)
	return buf.Bytes()
}

// EncodeInteger encodes an INTEGER in two's complement with the minimum
// number of octets.
func EncodeInteger(n *big.Int) []byte {
	return EncodeTLV(TagInteger, integerContent(n))
}

// EncodeInt64 encodes an INTEGER from an int64.
func EncodeInt64(n int64) []byte {
	return EncodeInteger(big.NewInt(n))
}

func integerContent(n *big.Int) []byte {
	switch n.Sign() {
	case 0:
		return []byte{0x00}
	case 1:
		b := n.Bytes()
		if b[0]&0x80 != 0 {
			// a positive value must not be read back as negative
			b = append([]byte{0x00}, b...)
		}
		return b
	}

	// two's complement of a negative value: invert the bits of |n|-1
	m := new(big.Int).Neg(n)
	m.Sub(m, big.NewInt(1))
	b := m.Bytes()
	for i := range b {
		b[i] ^= 0xff
	}
	if len(b) == 0 || b[0]&0x80 == 0 {
		b = append([]byte{0xff}, b...)
	}
	return b
}

// EncodeBoolean encodes a BOOLEAN. DER requires 0xff for true.
func EncodeBoolean(v bool) []byte {
	if v {
		return EncodeTLV(TagBoolean, []byte{0xff})
	}
	return EncodeTLV(TagBoolean, []byte{0x00})
}

// EncodeNull encodes a NULL.
func EncodeNull() []byte {
	return []byte{byte(TagNull), 0x00}
}

// EncodeOctetString encodes an OCTET STRING.
func EncodeOctetString(b []byte) []byte {
	return EncodeTLV(TagOctetString, b)
}

// EncodeUTF8String encodes a UTF8String.
func EncodeUTF8String(s string) []byte {
	return EncodeTLV(TagUTF8String, []byte(s))
}

// EncodeBitString encodes the first bitLength bits of b as a BIT STRING.
// Unused bits of the last octet are cleared.
func EncodeBitString(b []byte, bitLength int) []byte {
	n := (bitLength + 7) / 8
	content := make([]byte, 1+n)
	copy(content[1:], b[:n])
	if padding := n*8 - bitLength; padding > 0 {
		content[0] = byte(padding)
		content[n] &^= 1<<uint(padding) - 1
	}
	return EncodeTLV(TagBitString, content)
}

// EncodeOID encodes an OBJECT IDENTIFIER.
func EncodeOID(oid asn1.ObjectIdentifier) ([]byte, error) {
	if len(oid) < 2 {
		return nil, fmt.Errorf("asn1: object identifier %v has less than two arcs", oid)
	}
	if oid[0] < 0 || oid[0] > 2 || oid[1] < 0 || (oid[0] < 2 && oid[1] >= 40) {
		return nil, fmt.Errorf("asn1: invalid leading arcs in object identifier %v", oid)
	}
	var content []byte
	content = appendBase128(content, oid[0]*40+oid[1])
	for _, arc := range oid[2:] {
		if arc < 0 {
			return nil, fmt.Errorf("asn1: negative arc in object identifier %v", oid)
		}
		content = appendBase128(content, arc)
	}
	return EncodeTLV(TagOID, content), nil
}

func appendBase128(dst []byte, n int) []byte {
	if n == 0 {
		return append(dst, 0x00)
	}
	var tmp [10]byte
	i := len(tmp)
	for n > 0 {
		i--
		tmp[i] = byte(n & 0x7f)
		n >>= 7
	}
	for j := i; j < len(tmp)-1; j++ {
		tmp[j] |= 0x80
	}
	return append(dst, tmp[i:]...)
}

// EncodeSequence encodes a SEQUENCE from already encoded members.
func EncodeSequence(members ...[]byte) []byte {
	return EncodeTLV(TagSequence, bytes.Join(members, nil))
}

// EncodeSet encodes a SET from already encoded members.
// Members are written in the given order; callers needing DER SET OF
// ordering must sort them first.
func EncodeSet(members ...[]byte) []byte {
	return EncodeTLV(TagSet, bytes.Join(members, nil))
}

// EncodeExplicit wraps an encoded value with an explicit context-specific
// tag [n].
func EncodeExplicit(n int, inner []byte) []byte {
	return EncodeTLV(ContextTag(n, true), inner)
}
