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
	"crypto/subtle"
	"strings"
)

// Verify reports whether token was issued for content by recomputing the
// SHA-256 digest of content and comparing it with the message imprint of
// the token. Any mismatch, including a truncated or corrupted imprint,
// yields false.
//
// An error is returned only if the token cannot be verified at all: a nil
// token, an empty imprint or a hash algorithm other than SHA-256.
func Verify(content []byte, token *Token) (bool, error) {
	if token == nil {
		return false, InvalidTokenError{Msg: "nil token"}
	}
	if token.MessageImprintHex == "" {
		return false, InvalidTokenError{Msg: "no message imprint"}
	}
	if !strings.EqualFold(token.HashAlgorithm, HashAlgorithm) {
		return false, InvalidTokenError{Msg: "unsupported hash algorithm " + token.HashAlgorithm}
	}
	want := ComputeDigest(content).Hex()
	got := strings.ToLower(token.MessageImprintHex)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1, nil
}
