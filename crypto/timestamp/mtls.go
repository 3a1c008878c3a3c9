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
	"crypto/tls"
	"encoding/pem"
	"os"

	"golang.org/x/crypto/pkcs12"
)

// LoadClientCertificate loads the client certificate used for mutual TLS
// with a TSA. The file is either a PEM file holding the certificate chain
// and the private key, or a PKCS#12 bundle protected by password.
//
// The password never appears in returned errors.
func LoadClientCertificate(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, ConfigError{Msg: "failed to read client certificate", Detail: err}
	}

	if block, _ := pem.Decode(data); block != nil {
		cert, err := tls.X509KeyPair(data, data)
		if err != nil {
			return tls.Certificate{}, ConfigError{Msg: "invalid PEM client certificate " + path, Detail: err}
		}
		return cert, nil
	}

	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return tls.Certificate{}, ConfigError{Msg: "invalid PKCS#12 client certificate " + path, Detail: err}
	}
	var pemData bytes.Buffer
	for _, b := range blocks {
		if err := pem.Encode(&pemData, b); err != nil {
			return tls.Certificate{}, ConfigError{Msg: "invalid PKCS#12 client certificate " + path, Detail: err}
		}
	}
	cert, err := tls.X509KeyPair(pemData.Bytes(), pemData.Bytes())
	if err != nil {
		return tls.Certificate{}, ConfigError{Msg: "invalid PKCS#12 client certificate " + path, Detail: err}
	}
	return cert, nil
}
