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

package stamp

import (
	"context"
	"time"

	"github.com/payrollkit/stamp/audit"
	"github.com/payrollkit/stamp/config"
	"github.com/payrollkit/stamp/crypto/timestamp"
	"github.com/payrollkit/stamp/log"
)

// Synthetic values of tokens issued in mock environments.
const (
	MockTSAURL       = "mock:"
	MockTSAName      = "Mock TSA (not a trusted timestamp)"
	MockSerialNumber = "0"
	MockPolicyOID    = "1.3.6.1.4.1.4146.2.3"
)

var mockTokenRaw = []byte("MOCK-RFC3161-TOKEN")

// stampMock issues a token without contacting a TSA. The message imprint
// is the real digest so verification behaves as with a real token.
func (s *Stamper) stampMock(ctx context.Context, d timestamp.Digest, subject audit.Subject) *timestamp.Token {
	log.GetLogger(ctx).Warnf("Environment %q is mocked, issuing an untrusted time-stamp token", s.env.Name)
	ep := endpoint{Endpoint: config.Endpoint{Name: MockTSAName, URL: MockTSAURL}}
	s.record(ctx, s.newEntry(audit.ActionRequest, ep, d, subject, 0))

	token := &timestamp.Token{
		Raw:               append([]byte(nil), mockTokenRaw...),
		GenTime:           time.Now().UTC().Truncate(time.Millisecond),
		SerialNumber:      MockSerialNumber,
		PolicyOID:         MockPolicyOID,
		HashAlgorithm:     timestamp.HashAlgorithm,
		MessageImprintHex: d.Hex(),
		TSAName:           MockTSAName,
		Status:            "granted",
	}

	entry := s.newEntry(audit.ActionSuccess, ep, d, subject, 0)
	entry.SerialNumber = token.SerialNumber
	entry.GenTime = token.GenTime
	s.record(ctx, entry)
	return token
}
