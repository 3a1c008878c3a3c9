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
	_ "crypto/sha256" // registers SHA-256 for go-digest
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"
)

// HashAlgorithm is the display name of the only supported message imprint
// algorithm.
const HashAlgorithm = "SHA-256"

// Digest is a SHA-256 content digest.
type Digest [32]byte

// ComputeDigest hashes content with SHA-256.
func ComputeDigest(content []byte) Digest {
	h := digest.SHA256.Hash()
	h.Write(content)
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// ParseDigestHex parses a digest from its hex form. The go-digest form
// "sha256:<hex>" is also accepted.
func ParseDigestHex(s string) (Digest, error) {
	var d Digest
	encoded := s
	if strings.Contains(s, ":") {
		parsed, err := digest.Parse(s)
		if err != nil {
			return d, fmt.Errorf("invalid digest %q: %w", s, err)
		}
		if parsed.Algorithm() != digest.SHA256 {
			return d, fmt.Errorf("unsupported digest algorithm %q", parsed.Algorithm())
		}
		encoded = parsed.Encoded()
	} else if err := digest.SHA256.Validate(s); err != nil {
		return d, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	if _, err := hex.Decode(d[:], []byte(encoded)); err != nil {
		return d, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	return d, nil
}

// Hex returns the lowercase hex encoding of the digest.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// String returns the digest in the form "sha256:<hex>".
func (d Digest) String() string {
	return digest.NewDigestFromEncoded(digest.SHA256, d.Hex()).String()
}
