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

// Package pkix matches TSA names against distinguished names.
package pkix

import (
	"fmt"
	"strings"

	ldapv3 "github.com/go-ldap/ldap/v3"
)

// ParseDistinguishedName parses an RFC 4514 DN into its attributes, keyed by
// upper-case attribute type. Multi-valued RDNs and duplicate attributes are
// rejected.
func ParseDistinguishedName(name string) (map[string]string, error) {
	attrKeyValue := make(map[string]string)
	dn, err := ldapv3.ParseDN(name)
	if err != nil {
		return nil, fmt.Errorf("distinguished name (DN) %q is not valid, it must follow RFC 4514 standard", name)
	}
	if len(dn.RDNs) == 0 {
		return nil, fmt.Errorf("distinguished name (DN) %q is empty", name)
	}

	for _, rdn := range dn.RDNs {
		if len(rdn.Attributes) > 1 {
			return nil, fmt.Errorf("distinguished name (DN) %q has multi-valued RDN attributes, remove multi-valued RDN attributes as they are not supported", name)
		}
		for _, attribute := range rdn.Attributes {
			key := strings.ToUpper(attribute.Type)
			if key == "S" {
				key = "ST"
			}
			if _, ok := attrKeyValue[key]; ok {
				return nil, fmt.Errorf("distinguished name (DN) %q has duplicate RDN attribute for %q, DN can only have unique RDN attributes", name, attribute.Type)
			}
			attrKeyValue[key] = attribute.Value
		}
	}
	return attrKeyValue, nil
}

// IsSubsetDN returns true if dn1 is a subset of dn2 i.e. every key/value pair
// of dn1 has a matching key/value pair in dn2, otherwise returns false.
func IsSubsetDN(dn1 map[string]string, dn2 map[string]string) bool {
	for key, value := range dn1 {
		if got, ok := dn2[key]; !ok || got != value {
			return false
		}
	}
	return true
}

// MatchName reports whether every attribute of the DN want is present with
// the same value in the DN got.
func MatchName(want, got string) (bool, error) {
	wantDN, err := ParseDistinguishedName(want)
	if err != nil {
		return false, err
	}
	gotDN, err := ParseDistinguishedName(got)
	if err != nil {
		return false, err
	}
	return IsSubsetDN(wantDN, gotDN), nil
}
