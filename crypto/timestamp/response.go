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
	"bytes"
	"errors"
	"math/big"

	"github.com/payrollkit/stamp/internal/crypto/oid"
	"github.com/payrollkit/stamp/internal/crypto/pki"
	asn1util "github.com/payrollkit/stamp/internal/encoding/asn1"
)

// Response is a time-stamping response.
// TimeStampResp ::= SEQUENCE {
//  status          PKIStatusInfo,
//  timeStampToken  TimeStampToken  OPTIONAL }
type Response struct {
	Status pki.StatusInfo

	// TimeStampToken holds the DER-encoded ContentInfo of the token, if
	// any.
	TimeStampToken []byte
}

// MarshalBinary encodes the response to binary form.
// This method implements encoding.BinaryMarshaler
func (r *Response) MarshalBinary() ([]byte, error) {
	if r == nil {
		return nil, errors.New("timestamp: nil response")
	}
	members := [][]byte{r.Status.Encode()}
	if len(r.TimeStampToken) > 0 {
		members = append(members, r.TimeStampToken)
	}
	return asn1util.EncodeSequence(members...), nil
}

// UnmarshalBinary decodes the response from DER. Trailing data is rejected.
// This method implements encoding.BinaryUnmarshaler
func (r *Response) UnmarshalBinary(data []byte) error {
	top := asn1util.NewReader(data)
	seq, err := top.ReadSequence()
	if err != nil {
		return err
	}
	if err := top.Finish(); err != nil {
		return err
	}
	status, err := pki.ParseStatusInfo(seq)
	if err != nil {
		return err
	}
	var token []byte
	if e, ok, err := seq.Optional(asn1util.TagSequence); err != nil {
		return err
	} else if ok {
		token = e.Raw
	}
	if err := seq.Finish(); err != nil {
		return err
	}
	r.Status = status
	r.TimeStampToken = token
	return nil
}

// ParseOptions controls the checks ParseResponse applies.
type ParseOptions struct {
	// Nonce is the nonce of the request. If set, the token must echo it.
	Nonce *big.Int
}

// ParseResponse parses a DER-encoded TimeStampResp and returns the token it
// carries for digest d.
//
// A status other than granted or grantedWithMods yields a RejectionError. A
// granted response without a token yields a TokenMissingError. Anything
// malformed, or a token that does not match d or the nonce, yields a
// ProtocolError.
func ParseResponse(data []byte, d Digest, opts ParseOptions) (*Token, error) {
	var resp Response
	if err := resp.UnmarshalBinary(data); err != nil {
		return nil, ProtocolError{Msg: "malformed time-stamp response", Detail: err}
	}
	if !resp.Status.Granted() {
		return nil, RejectionError{
			Status:      resp.Status.Status,
			StatusText:  resp.Status.StatusString,
			FailureInfo: resp.Status.FailureInfo(),
		}
	}
	if len(resp.TimeStampToken) == 0 {
		return nil, TokenMissingError{Status: resp.Status.Status}
	}

	signed, err := ParseSignedToken(resp.TimeStampToken)
	if err != nil {
		return nil, ProtocolError{Msg: "malformed time-stamp token", Detail: err}
	}
	info, err := signed.Info()
	if err != nil {
		return nil, ProtocolError{Msg: "malformed TSTInfo", Detail: err}
	}
	if err := checkTSTInfo(info, d, opts); err != nil {
		return nil, err
	}

	tsaName := info.TSAName
	if tsaName == "" {
		if cert := signed.SigningCertificate(); cert != nil {
			tsaName = cert.Subject.CommonName
		}
	}
	return &Token{
		Raw:               resp.TimeStampToken,
		GenTime:           info.GenTime,
		SerialNumber:      info.SerialNumber.String(),
		PolicyOID:         info.Policy.String(),
		HashAlgorithm:     HashAlgorithm,
		MessageImprintHex: d.Hex(),
		TSAName:           tsaName,
		Accuracy:          info.Accuracy,
		Status:            pki.StatusText(resp.Status.Status),
	}, nil
}

// checkTSTInfo checks that the token answers the request.
func checkTSTInfo(info *TSTInfo, d Digest, opts ParseOptions) error {
	if !oid.SHA256.Equal(info.HashAlgorithm) {
		return ProtocolError{Msg: "unexpected message imprint algorithm " + info.HashAlgorithm.String()}
	}
	if !bytes.Equal(info.HashedMessage, d[:]) {
		return ProtocolError{Msg: "message imprint does not match the request"}
	}
	if opts.Nonce != nil {
		if info.Nonce == nil {
			return ProtocolError{Msg: "nonce missing in token"}
		}
		if info.Nonce.Cmp(opts.Nonce) != 0 {
			return ProtocolError{Msg: "nonce does not match the request"}
		}
	}
	return nil
}
