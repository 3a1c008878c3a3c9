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

// Package timestamp generates RFC 3161 time-stamping requests, sends them to
// TSA servers over HTTP and parses the untrusted responses into tokens.
//
// Only SHA-256 message imprints are requested and accepted. Signatures on
// the returned tokens are not validated; callers keep the raw token for
// later validation by other tooling.
package timestamp

import "context"

// Timestamper stamps the time.
type Timestamper interface {
	// Timestamp stamps the time with the given request. The returned token
	// has already been checked against the request.
	Timestamp(context.Context, *Request) (*Token, error)
}
