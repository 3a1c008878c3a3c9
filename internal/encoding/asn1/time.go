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

package asn1

import (
	"strconv"
	"strings"
	"time"
)

const generalizedTimeLayout = "20060102150405"

// EncodeGeneralizedTime encodes t in UTC as YYYYMMDDHHMMSS[.f+]Z with
// trailing zeros of the fraction removed, as required by DER.
func EncodeGeneralizedTime(t time.Time) []byte {
	t = t.UTC()
	s := t.Format(generalizedTimeLayout)
	if ns := t.Nanosecond(); ns != 0 {
		frac := strings.TrimRight(strconv.Itoa(1000000000 + ns)[1:], "0")
		s += "." + frac
	}
	return EncodeTLV(TagGeneralizedTime, []byte(s+"Z"))
}

// DecodeGeneralizedTime decodes the content octets of a GeneralizedTime in
// the DER form YYYYMMDDHHMMSS[.f+]Z. Local times, time zone offsets and
// malformed values are rejected.
func DecodeGeneralizedTime(content []byte) (time.Time, error) {
	s := string(content)
	if len(s) < len(generalizedTimeLayout)+1 {
		return time.Time{}, decodeError(TagGeneralizedTime, "generalized time %q too short", s)
	}
	if s[len(s)-1] != 'Z' {
		return time.Time{}, decodeError(TagGeneralizedTime, "generalized time %q is not in UTC", s)
	}
	s = s[:len(s)-1]

	base := s[:len(generalizedTimeLayout)]
	for i := 0; i < len(base); i++ {
		if base[i] < '0' || base[i] > '9' {
			return time.Time{}, decodeError(TagGeneralizedTime, "invalid digit in generalized time %q", content)
		}
	}
	atoi := func(from, to int) int {
		n, _ := strconv.Atoi(base[from:to])
		return n
	}
	year, month, day := atoi(0, 4), atoi(4, 6), atoi(6, 8)
	hour, minute, second := atoi(8, 10), atoi(10, 12), atoi(12, 14)
	if month < 1 || month > 12 || day < 1 || hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, decodeError(TagGeneralizedTime, "field out of range in generalized time %q", content)
	}

	var nsec int
	if frac := s[len(generalizedTimeLayout):]; frac != "" {
		digits := frac[1:]
		if frac[0] != '.' || digits == "" || len(digits) > 9 {
			return time.Time{}, decodeError(TagGeneralizedTime, "invalid fraction in generalized time %q", content)
		}
		if strings.TrimLeft(digits, "0123456789") != "" {
			return time.Time{}, decodeError(TagGeneralizedTime, "invalid digit in generalized time %q", content)
		}
		if digits[len(digits)-1] == '0' {
			return time.Time{}, decodeError(TagGeneralizedTime, "trailing zero in fraction of generalized time %q", content)
		}
		nsec, _ = strconv.Atoi(digits + strings.Repeat("0", 9-len(digits)))
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, nsec, time.UTC)
	if t.Day() != day {
		// time.Date normalizes dates like February 30th
		return time.Time{}, decodeError(TagGeneralizedTime, "invalid day in generalized time %q", content)
	}
	return t, nil
}
