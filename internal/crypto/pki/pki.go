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

// Package pki contains certificate management protocol structures
// defined in RFC 2510 and used by RFC 3161 responses.
package pki

import (
	"encoding/asn1"
	"fmt"
	"math"
	"strings"

	asn1util "github.com/payrollkit/stamp/internal/encoding/asn1"
)

// PKIStatus is defined in RFC 2510 3.2.3.
const (
	StatusGranted                = 0 // you got exactly what you asked for
	StatusGrantedWithMods        = 1 // you got something like what you asked for
	StatusRejection              = 2 // you don't get it, more information elsewhere in the message
	StatusWaiting                = 3 // the request body part has not yet been processed, expect to hear more later
	StatusRevocationWarning      = 4 // this message contains a warning that a revocation is imminent
	StatusRevocationNotification = 5 // notification that a revocation has occurred
)

// PKIFailureInfo is defined in RFC 2510 3.2.3 and RFC 3161 2.4.2.
const (
	FailureInfoBadAlg              = 0  // unrecognized or unsupported Algorithm Identifier
	FailureInfoBadRequest          = 2  // transaction not permitted or supported
	FailureInfoBadDataFormat       = 5  // the data submitted has the wrong format
	FailureInfoTimeNotAvailable    = 14 // the TSA's time source is not available
	FailureInfoUnacceptedPolicy    = 15 // the requested TSA policy is not supported by the TSA.
	FailureInfoUnacceptedExtension = 16 // the requested extension is not supported by the TSA.
	FailureInfoAddInfoNotAvailable = 17 // the additional information requested could not be understood or is not available
	FailureInfoSystemFailure       = 25 // the request cannot be handled due to system failure
)

var failureInfoNames = map[int]string{
	FailureInfoBadAlg:              "badAlg",
	FailureInfoBadRequest:          "badRequest",
	FailureInfoBadDataFormat:       "badDataFormat",
	FailureInfoTimeNotAvailable:    "timeNotAvailable",
	FailureInfoUnacceptedPolicy:    "unacceptedPolicy",
	FailureInfoUnacceptedExtension: "unacceptedExtension",
	FailureInfoAddInfoNotAvailable: "addInfoNotAvailable",
	FailureInfoSystemFailure:       "systemFailure",
}

// StatusText returns the RFC name of a PKIStatus value.
func StatusText(status int) string {
	switch status {
	case StatusGranted:
		return "granted"
	case StatusGrantedWithMods:
		return "grantedWithMods"
	case StatusRejection:
		return "rejection"
	case StatusWaiting:
		return "waiting"
	case StatusRevocationWarning:
		return "revocationWarning"
	case StatusRevocationNotification:
		return "revocationNotification"
	}
	return fmt.Sprintf("status(%d)", status)
}

// StatusInfo contains status codes and failure information for PKI messages.
// PKIStatusInfo ::= SEQUENCE {
//  status          PKIStatus,
//  statusString    PKIFreeText     OPTIONAL,
//  failInfo        PKIFailureInfo  OPTIONAL }
// PKIStatus        ::= INTEGER
// PKIFreeText      ::= SEQUENCE SIZE (1..MAX) OF UTF8String
// PKIFailureInfo   ::= BIT STRING
// Reference: RFC 2510 3.2.3 Status codes and Failure Information for PKI messages.
type StatusInfo struct {
	Status       int
	StatusString []string
	FailInfo     asn1.BitString
}

// Encode returns the DER encoding of the PKIStatusInfo. Empty optional
// members are omitted.
func (si StatusInfo) Encode() []byte {
	members := [][]byte{asn1util.EncodeInt64(int64(si.Status))}
	if len(si.StatusString) > 0 {
		texts := make([][]byte, 0, len(si.StatusString))
		for _, s := range si.StatusString {
			texts = append(texts, asn1util.EncodeUTF8String(s))
		}
		members = append(members, asn1util.EncodeSequence(texts...))
	}
	if si.FailInfo.BitLength > 0 {
		members = append(members, asn1util.EncodeBitString(si.FailInfo.Bytes, si.FailInfo.BitLength))
	}
	return asn1util.EncodeSequence(members...)
}

// Granted reports whether the status allows a token to be issued.
func (si StatusInfo) Granted() bool {
	return si.Status == StatusGranted || si.Status == StatusGrantedWithMods
}

// FailureInfo returns the names of the failure bits that are set.
func (si StatusInfo) FailureInfo() []string {
	var names []string
	for i := 0; i < si.FailInfo.BitLength; i++ {
		if si.FailInfo.At(i) == 0 {
			continue
		}
		name, ok := failureInfoNames[i]
		if !ok {
			name = fmt.Sprintf("bit(%d)", i)
		}
		names = append(names, name)
	}
	return names
}

// String returns a human readable status line.
func (si StatusInfo) String() string {
	s := StatusText(si.Status)
	if len(si.StatusString) > 0 {
		s += ": " + strings.Join(si.StatusString, "; ")
	}
	if fi := si.FailureInfo(); len(fi) > 0 {
		s += " (" + strings.Join(fi, ", ") + ")"
	}
	return s
}

// ParseStatusInfo reads a PKIStatusInfo from r.
func ParseStatusInfo(r *asn1util.Reader) (StatusInfo, error) {
	var si StatusInfo
	seq, err := r.ReadSequence()
	if err != nil {
		return si, err
	}
	statusOffset := seq.Offset()
	status, err := seq.ReadInt64()
	if err != nil {
		return si, err
	}
	// PKIStatus values are tiny; other values within int32 are reported
	// faithfully so that they never alias a granted status
	if status < math.MinInt32 || status > math.MaxInt32 {
		return si, &asn1util.DecodeError{Tag: asn1util.TagInteger, Offset: statusOffset, Msg: fmt.Sprintf("status %d out of range", status)}
	}
	si.Status = int(status)

	if e, ok, err := seq.Optional(asn1util.TagSequence); err != nil {
		return si, err
	} else if ok {
		texts := e.Children()
		for !texts.Empty() {
			text, err := texts.Expect(asn1util.TagUTF8String)
			if err != nil {
				return si, err
			}
			s, err := asn1util.DecodeUTF8String(text.Content)
			if err != nil {
				return si, err
			}
			si.StatusString = append(si.StatusString, s)
		}
	}

	if e, ok, err := seq.Optional(asn1util.TagBitString); err != nil {
		return si, err
	} else if ok {
		bits, err := asn1util.DecodeBitString(e.Content)
		if err != nil {
			return si, err
		}
		si.FailInfo = asn1.BitString{
			Bytes:     bits.Bytes,
			BitLength: bits.BitLength,
		}
	}
	return si, seq.Finish()
}
