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

package cms

import (
	"bytes"
	"crypto/x509"
	"encoding/asn1"
	"math/big"

	"github.com/payrollkit/stamp/internal/crypto/oid"
	asn1util "github.com/payrollkit/stamp/internal/encoding/asn1"
)

// tagConstructedOctetString is the BER constructed form of OCTET STRING.
// Some TSAs emit eContent this way.
const tagConstructedOctetString asn1util.Tag = 0x24

// ParsedSignedData is a parsed SignedData structure for golang friendly types.
type ParsedSignedData struct {
	Content      []byte
	ContentType  asn1.ObjectIdentifier
	Certificates []*x509.Certificate
	Signers      []SignerIdentifier
}

// SignerIdentifier identifies the certificate of a signer.
//
//	SignerIdentifier ::= CHOICE {
//	 issuerAndSerialNumber IssuerAndSerialNumber,
//	 subjectKeyIdentifier [0] SubjectKeyIdentifier }
type SignerIdentifier struct {
	// RawIssuer and SerialNumber are set for version 1 signers.
	RawIssuer    []byte
	SerialNumber *big.Int

	// SubjectKeyID is set for version 3 signers.
	SubjectKeyID []byte
}

// ParseSignedData walks a DER-encoded ContentInfo holding SignedData.
// Signatures are not checked.
func ParseSignedData(data []byte) (*ParsedSignedData, error) {
	r := asn1util.NewReader(data)
	contentInfo, err := r.ReadSequence()
	if err != nil {
		return nil, SyntaxError{Message: "invalid content info", Detail: err}
	}
	if err := r.Finish(); err != nil {
		return nil, SyntaxError{Message: "invalid content info", Detail: err}
	}
	contentType, err := contentInfo.ReadOID()
	if err != nil {
		return nil, SyntaxError{Message: "invalid content type", Detail: err}
	}
	if !oid.SignedData.Equal(contentType) {
		return nil, ErrExpectSignedData
	}
	explicit, err := contentInfo.Expect(asn1util.ContextTag(0, true))
	if err != nil {
		return nil, SyntaxError{Message: "invalid content info", Detail: err}
	}
	if err := contentInfo.Finish(); err != nil {
		return nil, SyntaxError{Message: "invalid content info", Detail: err}
	}

	outer := explicit.Children()
	signedData, err := outer.ReadSequence()
	if err != nil {
		return nil, SyntaxError{Message: "invalid signed data", Detail: err}
	}
	if err := outer.Finish(); err != nil {
		return nil, SyntaxError{Message: "invalid signed data", Detail: err}
	}
	parsed, err := parseSignedData(signedData)
	if err != nil {
		return nil, SyntaxError{Message: "invalid signed data", Detail: err}
	}
	return parsed, nil
}

func parseSignedData(r *asn1util.Reader) (*ParsedSignedData, error) {
	if _, err := r.ReadInt64(); err != nil {
		return nil, err
	}
	if _, err := r.Expect(asn1util.TagSet); err != nil {
		return nil, err
	}

	var parsed ParsedSignedData
	encap, err := r.ReadSequence()
	if err != nil {
		return nil, err
	}
	if parsed.ContentType, err = encap.ReadOID(); err != nil {
		return nil, err
	}
	if e, ok, err := encap.Optional(asn1util.ContextTag(0, true)); err != nil {
		return nil, err
	} else if ok {
		if parsed.Content, err = readOctetString(e.Children()); err != nil {
			return nil, err
		}
	}
	if err := encap.Finish(); err != nil {
		return nil, err
	}

	if e, ok, err := r.Optional(asn1util.ContextTag(0, true)); err != nil {
		return nil, err
	} else if ok {
		if parsed.Certificates, err = x509.ParseCertificates(e.Content); err != nil {
			return nil, err
		}
	}
	if _, _, err := r.Optional(asn1util.ContextTag(1, true)); err != nil {
		return nil, err
	}

	signerInfos, err := r.Expect(asn1util.TagSet)
	if err != nil {
		return nil, err
	}
	signers := signerInfos.Children()
	for !signers.Empty() {
		signer, err := signers.ReadSequence()
		if err != nil {
			return nil, err
		}
		sid, err := parseSignerIdentifier(signer)
		if err != nil {
			return nil, err
		}
		parsed.Signers = append(parsed.Signers, sid)
	}
	return &parsed, r.Finish()
}

// parseSignerIdentifier reads the version and sid of a SignerInfo. The
// remaining members are left unread.
func parseSignerIdentifier(r *asn1util.Reader) (SignerIdentifier, error) {
	var sid SignerIdentifier
	if _, err := r.ReadInt64(); err != nil {
		return sid, err
	}
	if e, ok, err := r.Optional(asn1util.ContextTag(0, false)); err != nil {
		return sid, err
	} else if ok {
		sid.SubjectKeyID = e.Content
		return sid, nil
	}
	issuerAndSerial, err := r.ReadSequence()
	if err != nil {
		return sid, err
	}
	issuer, err := issuerAndSerial.Expect(asn1util.TagSequence)
	if err != nil {
		return sid, err
	}
	sid.RawIssuer = issuer.Raw
	if sid.SerialNumber, err = issuerAndSerial.ReadInteger(); err != nil {
		return sid, err
	}
	return sid, issuerAndSerial.Finish()
}

// readOctetString reads a single OCTET STRING in primitive or constructed
// form.
func readOctetString(r *asn1util.Reader) ([]byte, error) {
	if e, ok, err := r.Optional(tagConstructedOctetString); err != nil {
		return nil, err
	} else if ok {
		var buf bytes.Buffer
		segments := e.Children()
		for !segments.Empty() {
			segment, err := segments.ReadOctetString()
			if err != nil {
				return nil, err
			}
			buf.Write(segment)
		}
		return buf.Bytes(), r.Finish()
	}
	content, err := r.ReadOctetString()
	if err != nil {
		return nil, err
	}
	return content, r.Finish()
}

// SigningCertificate returns the certificate of the first signer found in
// the certificate set, or nil.
func (d *ParsedSignedData) SigningCertificate() *x509.Certificate {
	for _, signer := range d.Signers {
		for _, cert := range d.Certificates {
			if signer.Matches(cert) {
				return cert
			}
		}
	}
	return nil
}

// Matches reports whether cert is the certificate identified by sid.
func (sid SignerIdentifier) Matches(cert *x509.Certificate) bool {
	if sid.SubjectKeyID != nil {
		return bytes.Equal(cert.SubjectKeyId, sid.SubjectKeyID)
	}
	return bytes.Equal(cert.RawIssuer, sid.RawIssuer) &&
		sid.SerialNumber != nil && cert.SerialNumber.Cmp(sid.SerialNumber) == 0
}
