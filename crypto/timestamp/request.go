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

package timestamp

import (
	"crypto/rand"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"

	"github.com/payrollkit/stamp/internal/crypto/oid"
	asn1util "github.com/payrollkit/stamp/internal/encoding/asn1"
)

// Media types of RFC 3161 3.4 Time-Stamp Protocol via HTTP.
const (
	MediaTypeQuery = "application/timestamp-query"
	MediaTypeReply = "application/timestamp-reply"
)

// nonceSize is the number of random bytes in a request nonce.
const nonceSize = 8

// RequestOptions customizes a time-stamping request.
type RequestOptions struct {
	// PolicyOID is the dotted TSA policy to request. No policy is
	// requested if empty.
	PolicyOID string

	// NoCertReq clears certReq so that the TSA omits its certificate from
	// the token.
	NoCertReq bool
}

// Request is a time-stamping request.
// TimeStampReq ::= SEQUENCE {
//  version         INTEGER                 { v1(1) },
//  messageImprint  MessageImprint,
//  reqPolicy       TSAPolicyID              OPTIONAL,
//  nonce           INTEGER                  OPTIONAL,
//  certReq         BOOLEAN                  DEFAULT FALSE,
//  extensions      [0] IMPLICIT Extensions  OPTIONAL }
// MessageImprint ::= SEQUENCE {
//  hashAlgorithm   AlgorithmIdentifier,
//  hashedMessage   OCTET STRING }
type Request struct {
	Version       int // fixed to 1 as defined in RFC 3161 2.4.1 Request Format
	HashAlgorithm asn1.ObjectIdentifier
	HashedMessage Digest
	ReqPolicy     asn1.ObjectIdentifier
	Nonce         *big.Int
	CertReq       bool
}

// NewRequest creates a request for the given digest with a fresh random
// nonce.
func NewRequest(d Digest, opts RequestOptions) (*Request, error) {
	var policy asn1.ObjectIdentifier
	if opts.PolicyOID != "" {
		var err error
		if policy, err = asn1util.ParseOID(opts.PolicyOID); err != nil {
			return nil, ConfigError{Msg: "invalid policy OID", Detail: err}
		}
	}
	nonce, err := generateNonce()
	if err != nil {
		return nil, err
	}
	return &Request{
		Version:       1,
		HashAlgorithm: oid.SHA256,
		HashedMessage: d,
		ReqPolicy:     policy,
		Nonce:         nonce,
		CertReq:       !opts.NoCertReq,
	}, nil
}

// BuildRequest creates a request for the given digest and encodes it.
func BuildRequest(d Digest, opts RequestOptions) (*Request, []byte, error) {
	req, err := NewRequest(d, opts)
	if err != nil {
		return nil, nil, err
	}
	der, err := req.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	return req, der, nil
}

// generateNonce returns a positive random integer of nonceSize bytes.
func generateNonce() (*big.Int, error) {
	b := make([]byte, nonceSize)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("timestamp: failed to generate nonce: %w", err)
	}
	return new(big.Int).SetBytes(b), nil
}

// MarshalBinary encodes the request to DER.
// This method implements encoding.BinaryMarshaler
func (r *Request) MarshalBinary() ([]byte, error) {
	if r == nil {
		return nil, errors.New("timestamp: nil request")
	}
	hashAlgorithm, err := asn1util.EncodeOID(r.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	members := [][]byte{
		asn1util.EncodeInt64(int64(r.Version)),
		asn1util.EncodeSequence(
			asn1util.EncodeSequence(hashAlgorithm, asn1util.EncodeNull()),
			asn1util.EncodeOctetString(r.HashedMessage[:]),
		),
	}
	if len(r.ReqPolicy) > 0 {
		policy, err := asn1util.EncodeOID(r.ReqPolicy)
		if err != nil {
			return nil, err
		}
		members = append(members, policy)
	}
	if r.Nonce != nil {
		members = append(members, asn1util.EncodeInteger(r.Nonce))
	}
	if r.CertReq {
		members = append(members, asn1util.EncodeBoolean(true))
	}
	return asn1util.EncodeSequence(members...), nil
}

// UnmarshalBinary decodes the request from DER. Extensions are skipped.
// This method implements encoding.BinaryUnmarshaler
func (r *Request) UnmarshalBinary(data []byte) error {
	top := asn1util.NewReader(data)
	seq, err := top.ReadSequence()
	if err != nil {
		return err
	}
	if err := top.Finish(); err != nil {
		return err
	}

	var req Request
	version, err := seq.ReadInt64()
	if err != nil {
		return err
	}
	req.Version = int(version)

	imprint, err := seq.ReadSequence()
	if err != nil {
		return err
	}
	if req.HashAlgorithm, err = readAlgorithmIdentifier(imprint); err != nil {
		return err
	}
	offset := imprint.Offset()
	hashed, err := imprint.ReadOctetString()
	if err != nil {
		return err
	}
	if len(hashed) != len(req.HashedMessage) {
		return &asn1util.DecodeError{
			Tag:    asn1util.TagOctetString,
			Offset: offset,
			Msg:    fmt.Sprintf("hashed message of %d bytes, want %d", len(hashed), len(req.HashedMessage)),
		}
	}
	copy(req.HashedMessage[:], hashed)
	if err := imprint.Finish(); err != nil {
		return err
	}

	if tag, ok := seq.Peek(); ok && tag == asn1util.TagOID {
		if req.ReqPolicy, err = seq.ReadOID(); err != nil {
			return err
		}
	}
	if tag, ok := seq.Peek(); ok && tag == asn1util.TagInteger {
		if req.Nonce, err = seq.ReadInteger(); err != nil {
			return err
		}
	}
	if tag, ok := seq.Peek(); ok && tag == asn1util.TagBoolean {
		if req.CertReq, err = seq.ReadBoolean(); err != nil {
			return err
		}
	}
	if _, _, err := seq.Optional(asn1util.ContextTag(0, true)); err != nil {
		return err
	}
	if err := seq.Finish(); err != nil {
		return err
	}
	*r = req
	return nil
}

// ParseResponse parses a DER-encoded TimeStampResp received for this
// request and checks it against the digest and nonce of the request.
func (r *Request) ParseResponse(data []byte) (*Token, error) {
	return ParseResponse(data, r.HashedMessage, ParseOptions{Nonce: r.Nonce})
}

// readAlgorithmIdentifier reads an AlgorithmIdentifier whose parameters are
// absent or NULL.
// AlgorithmIdentifier ::= SEQUENCE {
//  algorithm   OBJECT IDENTIFIER,
//  parameters  ANY DEFINED BY algorithm OPTIONAL }
func readAlgorithmIdentifier(r *asn1util.Reader) (asn1.ObjectIdentifier, error) {
	seq, err := r.ReadSequence()
	if err != nil {
		return nil, err
	}
	algorithm, err := seq.ReadOID()
	if err != nil {
		return nil, err
	}
	if e, ok, err := seq.Optional(asn1util.TagNull); err != nil {
		return nil, err
	} else if ok {
		if err := asn1util.DecodeNull(e.Content); err != nil {
			return nil, err
		}
	}
	return algorithm, seq.Finish()
}
