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

package cryptoutil

import (
	"crypto/x509"
	"encoding/pem"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestNewCertPool(t *testing.T) {
	server := httptest.NewTLSServer(nil)
	defer server.Close()
	cert := server.Certificate()

	dir := t.TempDir()
	path := filepath.Join(dir, "ca.pem")
	data := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte("skipped")})
	data = append(data, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})...)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	certs, err := ReadCertificateFile(path)
	if err != nil {
		t.Fatalf("ReadCertificateFile() error = %v", err)
	}
	if len(certs) != 1 || !certs[0].Equal(cert) {
		t.Fatalf("ReadCertificateFile() = %d certificates, want the server certificate", len(certs))
	}
	pool, err := NewCertPool(path)
	if err != nil {
		t.Fatalf("NewCertPool() error = %v", err)
	}
	if _, err := cert.Verify(x509.VerifyOptions{Roots: pool, DNSName: "example.com"}); err != nil {
		t.Fatalf("Verify() with the pool error = %v", err)
	}
}

func TestNewCertPoolEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pem")
	if err := os.WriteFile(path, []byte("no certificates here"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewCertPool(path); err == nil {
		t.Fatal("NewCertPool() error = nil, want error")
	}
	if _, err := NewCertPool(filepath.Join(t.TempDir(), "missing.pem")); err == nil {
		t.Fatal("NewCertPool() with a missing file error = nil, want error")
	}
}
