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

// Package timestamptest provides an in-process Timestamping Authority for
// tests. It is not a TSA server implementation.
package timestamptest

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"io"
	"math"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/payrollkit/stamp/crypto/timestamp"
	"github.com/payrollkit/stamp/internal/crypto/cms"
	"github.com/payrollkit/stamp/internal/crypto/oid"
	"github.com/payrollkit/stamp/internal/crypto/pki"
)

// DefaultPolicy is the policy of issued tokens unless requested otherwise.
var DefaultPolicy = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 4146, 2, 3}

// messageImprint is the wire form of MessageImprint.
type messageImprint struct {
	HashAlgorithm pkix.AlgorithmIdentifier
	HashedMessage []byte
}

// tstInfo is the wire form of TSTInfo.
type tstInfo struct {
	Version        int
	Policy         asn1.ObjectIdentifier
	MessageImprint messageImprint
	SerialNumber   *big.Int
	GenTime        time.Time          `asn1:"generalized"`
	Accuracy       timestamp.Accuracy `asn1:"optional"`
	Nonce          *big.Int           `asn1:"optional"`
	TSA            asn1.RawValue      `asn1:"optional"`
}

// TSA is a Timestamping Authority for testing purpose. The exported fields
// may be changed between requests to inject faults; they must not be
// changed while requests are in flight.
type TSA struct {
	// key is the TSA signing key.
	key *rsa.PrivateKey

	// cert is the self-signed certificate by the TSA signing key.
	cert *x509.Certificate

	// NowFunc provides the current time. time.Now() is used if nil.
	NowFunc func() time.Time

	// Status is the PKIStatus of every response. Zero grants requests.
	Status int

	// StatusString and FailureInfo are sent with the status.
	StatusString []string
	FailureInfo  []int

	// Name is sent as the tsa directoryName if set.
	Name string

	// OmitToken drops the token from granted responses.
	OmitToken bool

	// OmitNonce drops the nonce from issued tokens.
	OmitNonce bool

	// TamperNonce answers with a nonce different from the request nonce.
	TamperNonce bool

	// TamperImprint answers with a message imprint different from the
	// request.
	TamperImprint bool

	// HTTPFailures is the number of HTTP requests answered with 503
	// Service Unavailable before the TSA starts answering.
	HTTPFailures int

	mu       sync.Mutex
	requests int
}

// NewTSA creates a TSA with random credentials.
func NewTSA() (*TSA, error) {
	// generate key
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	// generate certificate
	serialNumber, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return nil, err
	}
	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName: "timestamp test",
		},
		NotBefore:             now,
		NotAfter:              now.Add(365 * 24 * time.Hour), // 1 year
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageTimeStamping},
		BasicConstraintsValid: true,
	}
	certBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, key.Public(), key)
	if err != nil {
		return nil, err
	}
	cert, err := x509.ParseCertificate(certBytes)
	if err != nil {
		return nil, err
	}

	return &TSA{
		key:  key,
		cert: cert,
	}, nil
}

// Certificate returns the certificate used by the server.
func (tsa *TSA) Certificate() *x509.Certificate {
	return tsa.cert
}

// Requests returns the number of requests received so far.
func (tsa *TSA) Requests() int {
	tsa.mu.Lock()
	defer tsa.mu.Unlock()
	return tsa.requests
}

// Timestamp stamps the time in-process, as an HTTP TSA would.
func (tsa *TSA) Timestamp(ctx context.Context, req *timestamp.Request) (*timestamp.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tsa.mu.Lock()
	tsa.requests++
	tsa.mu.Unlock()

	resp, err := tsa.Respond(req)
	if err != nil {
		return nil, err
	}
	respBytes, err := resp.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return req.ParseResponse(respBytes)
}

// ServeHTTP answers RFC 3161 requests posted over HTTP.
func (tsa *TSA) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tsa.mu.Lock()
	tsa.requests++
	fail := tsa.requests <= tsa.HTTPFailures
	tsa.mu.Unlock()
	if fail {
		http.Error(w, "try again later", http.StatusServiceUnavailable)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Header.Get("Content-Type") != timestamp.MediaTypeQuery {
		http.Error(w, "unsupported media type", http.StatusUnsupportedMediaType)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var resp *timestamp.Response
	var req timestamp.Request
	if err := req.UnmarshalBinary(body); err != nil {
		resp = rejection(pki.FailureInfoBadDataFormat)
	} else if resp, err = tsa.Respond(&req); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respBytes, err := resp.MarshalBinary()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", timestamp.MediaTypeReply)
	w.Write(respBytes)
}

// Respond builds the response to a request.
func (tsa *TSA) Respond(req *timestamp.Request) (*timestamp.Response, error) {
	// validate request
	if req.Version != 1 {
		return rejection(pki.FailureInfoBadRequest), nil
	}
	if !oid.SHA256.Equal(req.HashAlgorithm) {
		return rejection(pki.FailureInfoBadAlg), nil
	}

	status := pki.StatusInfo{
		Status:       tsa.Status,
		StatusString: tsa.StatusString,
		FailInfo:     bitString(tsa.FailureInfo...),
	}
	if !status.Granted() || tsa.OmitToken {
		return &timestamp.Response{Status: status}, nil
	}

	policy := DefaultPolicy
	if len(req.ReqPolicy) > 0 {
		policy = req.ReqPolicy
	}
	infoBytes, err := tsa.generateTokenInfo(req, policy)
	if err != nil {
		return nil, err
	}

	// generate signed data
	signed, err := tsa.generateSignedData(infoBytes, req.CertReq)
	if err != nil {
		return nil, err
	}
	content, err := convertToRawASN1(signed, "explicit,tag:0")
	if err != nil {
		return nil, err
	}

	// generate content info
	token, err := asn1.Marshal(cms.ContentInfo{
		ContentType: oid.SignedData,
		Content:     content,
	})
	if err != nil {
		return nil, err
	}
	return &timestamp.Response{
		Status:         status,
		TimeStampToken: token,
	}, nil
}

// generateTokenInfo generate timestamp token info.
func (tsa *TSA) generateTokenInfo(req *timestamp.Request, policy asn1.ObjectIdentifier) ([]byte, error) {
	serialNumber, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return nil, err
	}
	nowFunc := tsa.NowFunc
	if nowFunc == nil {
		nowFunc = time.Now
	}
	hashed := append([]byte{}, req.HashedMessage[:]...)
	if tsa.TamperImprint {
		hashed[0] ^= 0xff
	}
	info := tstInfo{
		Version: 1,
		Policy:  policy,
		MessageImprint: messageImprint{
			HashAlgorithm: pkix.AlgorithmIdentifier{
				Algorithm:  req.HashAlgorithm,
				Parameters: asn1.NullRawValue,
			},
			HashedMessage: hashed,
		},
		SerialNumber: serialNumber,
		GenTime:      nowFunc().UTC().Truncate(time.Second),
		Accuracy: timestamp.Accuracy{
			Seconds: 1,
		},
	}
	if req.Nonce != nil && !tsa.OmitNonce {
		info.Nonce = req.Nonce
		if tsa.TamperNonce {
			info.Nonce = new(big.Int).Add(req.Nonce, big.NewInt(1))
		}
	}
	if tsa.Name != "" {
		name, err := asn1.Marshal(pkix.Name{CommonName: tsa.Name}.ToRDNSequence())
		if err != nil {
			return nil, err
		}
		directoryName, err := asn1.Marshal(asn1.RawValue{
			Class:      asn1.ClassContextSpecific,
			Tag:        4,
			IsCompound: true,
			Bytes:      name,
		})
		if err != nil {
			return nil, err
		}
		info.TSA = asn1.RawValue{
			Class:      asn1.ClassContextSpecific,
			Tag:        0,
			IsCompound: true,
			Bytes:      directoryName,
		}
	}
	return asn1.Marshal(info)
}

// generateSignedData generate signed data according to RFC 5652.
func (tsa *TSA) generateSignedData(infoBytes []byte, requestCert bool) (cms.SignedData, error) {
	var issuer asn1.RawValue
	_, err := asn1.Unmarshal(tsa.cert.RawIssuer, &issuer)
	if err != nil {
		return cms.SignedData{}, err
	}
	contentType, err := convertToRawASN1([]interface{}{oid.TSTInfo}, "set")
	if err != nil {
		return cms.SignedData{}, err
	}
	infoDigest := sha256.Sum256(infoBytes)
	messageDigest, err := convertToRawASN1([]interface{}{infoDigest[:]}, "set")
	if err != nil {
		return cms.SignedData{}, err
	}
	signingTime, err := convertToRawASN1([]interface{}{time.Now().UTC()}, "set")
	if err != nil {
		return cms.SignedData{}, err
	}
	signed := cms.SignedData{
		Version: 3,
		DigestAlgorithmIdentifiers: []pkix.AlgorithmIdentifier{
			{
				Algorithm: oid.SHA256,
			},
		},
		EncapsulatedContentInfo: cms.EncapsulatedContentInfo{
			ContentType: oid.TSTInfo,
			Content:     infoBytes,
		},
		SignerInfos: []cms.SignerInfo{
			{
				Version: 1,
				SignerIdentifier: cms.IssuerAndSerialNumber{
					Issuer:       issuer,
					SerialNumber: tsa.cert.SerialNumber,
				},
				DigestAlgorithm: pkix.AlgorithmIdentifier{
					Algorithm: oid.SHA256,
				},
				SignedAttributes: cms.Attributes{
					{
						Type:   oid.ContentType,
						Values: contentType,
					},
					{
						Type:   oid.MessageDigest,
						Values: messageDigest,
					},
					{
						Type:   oid.SigningTime,
						Values: signingTime,
					},
				},
				SignatureAlgorithm: pkix.AlgorithmIdentifier{
					Algorithm: oid.SHA256WithRSA,
				},
			},
		},
	}
	if requestCert {
		signed.Certificates = asn1.RawValue{
			Class:      asn1.ClassContextSpecific,
			Tag:        0,
			IsCompound: true,
			Bytes:      tsa.cert.Raw,
		}
	}

	// sign data
	signer := &signed.SignerInfos[0]
	encodedAttributes, err := asn1.MarshalWithParams(signer.SignedAttributes, "set")
	if err != nil {
		return cms.SignedData{}, err
	}
	hashedAttributes := sha256.Sum256(encodedAttributes)
	signer.Signature, err = rsa.SignPKCS1v15(rand.Reader, tsa.key, crypto.SHA256, hashedAttributes[:])
	if err != nil {
		return cms.SignedData{}, err
	}
	return signed, nil
}

// rejection is a general response for request rejection.
func rejection(failureInfo int) *timestamp.Response {
	return &timestamp.Response{
		Status: pki.StatusInfo{
			Status:   pki.StatusRejection,
			FailInfo: bitString(failureInfo),
		},
	}
}

// bitString sets the given bits in a PKIFailureInfo.
func bitString(bits ...int) asn1.BitString {
	var bs asn1.BitString
	if len(bits) == 0 {
		return bs
	}
	for _, bit := range bits {
		if bit+1 > bs.BitLength {
			bs.BitLength = bit + 1
		}
	}
	bs.Bytes = make([]byte, (bs.BitLength+7)/8)
	for _, bit := range bits {
		bs.Bytes[bit/8] |= 0x80 >> uint(bit%8)
	}
	return bs
}

// convertToRawASN1 convert any data ASN.1 data structure to asn1.RawValue.
func convertToRawASN1(val interface{}, params string) (asn1.RawValue, error) {
	b, err := asn1.MarshalWithParams(val, params)
	if err != nil {
		return asn1.NullRawValue, err
	}
	var raw asn1.RawValue
	_, err = asn1.UnmarshalWithParams(b, &raw, params)
	if err != nil {
		return asn1.NullRawValue, err
	}
	return raw, nil
}
