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
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"
	"time"

	"github.com/payrollkit/stamp/internal/crypto/cms"
	"github.com/payrollkit/stamp/internal/crypto/oid"
	asn1util "github.com/payrollkit/stamp/internal/encoding/asn1"
)

// GeneralName tags of RFC 5280 4.2.1.6 used to name a TSA.
var (
	tagRFC822Name    = asn1util.ContextTag(1, false)
	tagDNSName       = asn1util.ContextTag(2, false)
	tagDirectoryName = asn1util.ContextTag(4, true)
	tagURI           = asn1util.ContextTag(6, false)
)

// Token is a time-stamp token issued by a TSA for a digest. It is meant to
// be persisted as JSON next to the stamped document.
type Token struct {
	// Raw is the DER-encoded ContentInfo of the timeStampToken as received.
	Raw []byte `json:"raw"`

	// GenTime is the time at which the token was created by the TSA.
	GenTime time.Time `json:"genTime"`

	// SerialNumber is the decimal serial number assigned by the TSA.
	SerialNumber string `json:"serialNumber"`

	// PolicyOID is the dotted TSA policy under which the token was issued.
	PolicyOID string `json:"policyOid"`

	// HashAlgorithm is always "SHA-256".
	HashAlgorithm string `json:"hashAlgorithm"`

	// MessageImprintHex is the hex digest that was stamped.
	MessageImprintHex string `json:"messageImprintHex"`

	TSAName  string    `json:"tsaName,omitempty"`
	Accuracy *Accuracy `json:"accuracy,omitempty"`

	// Status is "granted" or "grantedWithMods".
	Status string `json:"status"`
}

// Accuracy ::= SEQUENCE {
//  seconds     INTEGER             OPTIONAL,
//  millis  [0] INTEGER (1..999)    OPTIONAL,
//  micros  [1] INTEGER (1..999)    OPTIONAL }
type Accuracy struct {
	Seconds      int `json:"seconds,omitempty" asn1:"optional"`
	Milliseconds int `json:"millis,omitempty" asn1:"optional,tag:0"`
	Microseconds int `json:"micros,omitempty" asn1:"optional,tag:1"`
}

// Duration returns the accuracy as a duration.
func (a Accuracy) Duration() time.Duration {
	return time.Duration(a.Seconds)*time.Second +
		time.Duration(a.Milliseconds)*time.Millisecond +
		time.Duration(a.Microseconds)*time.Microsecond
}

// TSTInfo ::= SEQUENCE {
//  version         INTEGER                 { v1(1) },
//  policy          TSAPolicyId,
//  messageImprint  MessageImprint,
//  serialNumber    INTEGER,
//  genTime         GeneralizedTime,
//  accuracy        Accuracy                OPTIONAL,
//  ordering        BOOLEAN                 DEFAULT FALSE,
//  nonce           INTEGER                 OPTIONAL,
//  tsa             [0] GeneralName         OPTIONAL,
//  extensions      [1] IMPLICIT Extensions OPTIONAL }
type TSTInfo struct {
	Version       int
	Policy        asn1.ObjectIdentifier
	HashAlgorithm asn1.ObjectIdentifier
	HashedMessage []byte
	SerialNumber  *big.Int
	GenTime       time.Time
	Accuracy      *Accuracy
	Ordering      bool
	Nonce         *big.Int

	// TSAName is the tsa GeneralName rendered as text, if present.
	TSAName string
}

// ParseTSTInfo parses a DER-encoded TSTInfo. Extensions are skipped.
func ParseTSTInfo(data []byte) (*TSTInfo, error) {
	top := asn1util.NewReader(data)
	seq, err := top.ReadSequence()
	if err != nil {
		return nil, err
	}
	if err := top.Finish(); err != nil {
		return nil, err
	}

	var info TSTInfo
	version, err := seq.ReadInt64()
	if err != nil {
		return nil, err
	}
	if version != 1 {
		return nil, fmt.Errorf("unsupported TSTInfo version %d", version)
	}
	info.Version = int(version)
	if info.Policy, err = seq.ReadOID(); err != nil {
		return nil, err
	}

	imprint, err := seq.ReadSequence()
	if err != nil {
		return nil, err
	}
	if info.HashAlgorithm, err = readAlgorithmIdentifier(imprint); err != nil {
		return nil, err
	}
	if info.HashedMessage, err = imprint.ReadOctetString(); err != nil {
		return nil, err
	}
	if err := imprint.Finish(); err != nil {
		return nil, err
	}

	if info.SerialNumber, err = seq.ReadInteger(); err != nil {
		return nil, err
	}
	if info.GenTime, err = seq.ReadGeneralizedTime(); err != nil {
		return nil, err
	}
	if e, ok, err := seq.Optional(asn1util.TagSequence); err != nil {
		return nil, err
	} else if ok {
		if info.Accuracy, err = parseAccuracy(e.Children()); err != nil {
			return nil, err
		}
	}
	if tag, ok := seq.Peek(); ok && tag == asn1util.TagBoolean {
		if info.Ordering, err = seq.ReadBoolean(); err != nil {
			return nil, err
		}
	}
	if tag, ok := seq.Peek(); ok && tag == asn1util.TagInteger {
		if info.Nonce, err = seq.ReadInteger(); err != nil {
			return nil, err
		}
	}
	if e, ok, err := seq.Optional(asn1util.ContextTag(0, true)); err != nil {
		return nil, err
	} else if ok {
		if info.TSAName, err = parseGeneralName(e.Children()); err != nil {
			return nil, err
		}
	}
	if _, _, err := seq.Optional(asn1util.ContextTag(1, true)); err != nil {
		return nil, err
	}
	if err := seq.Finish(); err != nil {
		return nil, err
	}
	return &info, nil
}

func parseAccuracy(r *asn1util.Reader) (*Accuracy, error) {
	var accuracy Accuracy
	if tag, ok := r.Peek(); ok && tag == asn1util.TagInteger {
		seconds, err := r.ReadInt64()
		if err != nil {
			return nil, err
		}
		accuracy.Seconds = int(seconds)
	}
	for i, field := range []*int{&accuracy.Milliseconds, &accuracy.Microseconds} {
		e, ok, err := r.Optional(asn1util.ContextTag(i, false))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		n, err := asn1util.DecodeInt64(e.Content)
		if err != nil {
			return nil, err
		}
		if n < 1 || n > 999 {
			return nil, &asn1util.DecodeError{Tag: e.Tag, Offset: e.Offset, Msg: fmt.Sprintf("accuracy value %d out of range", n)}
		}
		*field = int(n)
	}
	return &accuracy, r.Finish()
}

// parseGeneralName renders the GeneralName naming the TSA.
func parseGeneralName(r *asn1util.Reader) (string, error) {
	e, err := r.Next()
	if err != nil {
		return "", err
	}
	if err := r.Finish(); err != nil {
		return "", err
	}
	switch e.Tag {
	case tagDirectoryName:
		var rdns pkix.RDNSequence
		rest, err := asn1.Unmarshal(e.Content, &rdns)
		if err != nil {
			return "", &asn1util.DecodeError{Tag: e.Tag, Offset: e.Offset, Msg: "invalid directory name: " + err.Error()}
		}
		if len(rest) > 0 {
			return "", &asn1util.DecodeError{Tag: e.Tag, Offset: e.Offset, Msg: "trailing data in directory name"}
		}
		var name pkix.Name
		name.FillFromRDNSequence(&rdns)
		return name.String(), nil
	case tagDNSName, tagURI, tagRFC822Name:
		return string(e.Content), nil
	}
	// other forms are not rendered
	return "", nil
}

// SignedToken is a parsed time-stamp token. Signatures are not verified.
type SignedToken cms.ParsedSignedData

// ParseSignedToken parses a DER-encoded time-stamp token.
func ParseSignedToken(data []byte) (*SignedToken, error) {
	signed, err := cms.ParseSignedData(data)
	if err != nil {
		return nil, err
	}
	if !oid.TSTInfo.Equal(signed.ContentType) {
		return nil, fmt.Errorf("unexpected content type: %v", signed.ContentType)
	}
	if signed.Content == nil {
		return nil, cms.ErrNoContent
	}
	return (*SignedToken)(signed), nil
}

// Info returns the timestamping information.
func (t *SignedToken) Info() (*TSTInfo, error) {
	return ParseTSTInfo(t.Content)
}

// SigningCertificate returns the certificate of the TSA that signed the
// token, if the token carries it.
func (t *SignedToken) SigningCertificate() *x509.Certificate {
	return (*cms.ParsedSignedData)(t).SigningCertificate()
}
