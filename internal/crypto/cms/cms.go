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

// Package cms walks Cryptographic Message Syntax (CMS) / PKCS7 SignedData
// structures defined in RFC 5652 as carried by RFC 3161 time-stamp tokens.
package cms

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
)

// The structures below are marshaled with encoding/asn1 when building
// tokens. Parsing goes through ParseSignedData.

// ContentInfo ::= SEQUENCE {
//  contentType ContentType,
//  content     [0] EXPLICIT ANY DEFINED BY contentType }
type ContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"explicit,tag:0"`
}

// SignedData ::= SEQUENCE {
//  version             CMSVersion,
//  digestAlgorithms    DigestAlgorithmIdentifiers,
//  encapContentInfo    EncapsulatedContentInfo,
//  certificates        [0] IMPLICIT CertificateSet             OPTIONAL,
//  crls                [1] IMPLICIT CertificateRevocationLists OPTIONAL,
//  signerInfos         SignerInfos }
type SignedData struct {
	Version                    int
	DigestAlgorithmIdentifiers []pkix.AlgorithmIdentifier `asn1:"set"`
	EncapsulatedContentInfo    EncapsulatedContentInfo
	Certificates               asn1.RawValue `asn1:"optional,tag:0"`
	SignerInfos                []SignerInfo  `asn1:"set"`
}

// EncapsulatedContentInfo ::= SEQUENCE {
//  eContentType    ContentType,
//  eContent        [0] EXPLICIT OCTET STRING   OPTIONAL }
type EncapsulatedContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     []byte `asn1:"explicit,optional,tag:0"`
}

// SignerInfo ::= SEQUENCE {
//  version             CMSVersion,
//  sid                 SignerIdentifier,
//  digestAlgorithm     DigestAlgorithmIdentifier,
//  signedAttrs         [0] IMPLICIT SignedAttributes   OPTIONAL,
//  signatureAlgorithm  SignatureAlgorithmIdentifier,
//  signature           SignatureValue,
//  unsignedAttrs       [1] IMPLICIT UnsignedAttributes OPTIONAL }
// Only version 1 is marshaled. As defined in RFC 5652 5.3, SignerIdentifier
// is IssuerAndSerialNumber when version is 1.
type SignerInfo struct {
	Version            int
	SignerIdentifier   IssuerAndSerialNumber
	DigestAlgorithm    pkix.AlgorithmIdentifier
	SignedAttributes   Attributes `asn1:"optional,tag:0"`
	SignatureAlgorithm pkix.AlgorithmIdentifier
	Signature          []byte
}

// IssuerAndSerialNumber ::= SEQUENCE {
//  issuer          Name,
//  serialNumber    CertificateSerialNumber }
type IssuerAndSerialNumber struct {
	Issuer       asn1.RawValue
	SerialNumber *big.Int
}

// Attribute ::= SEQUENCE {
//  attrType    OBJECT IDENTIFIER,
//  attrValues  SET OF AttributeValue }
type Attribute struct {
	Type   asn1.ObjectIdentifier
	Values asn1.RawValue `asn1:"set"`
}

// Attributes ::= SET SIZE (1..MAX) OF Attribute
type Attributes []Attribute
