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

package pki

import (
	"encoding/asn1"
	"reflect"
	"testing"

	asn1util "github.com/payrollkit/stamp/internal/encoding/asn1"
)

func TestParseStatusInfo(t *testing.T) {
	tests := []struct {
		name        string
		info        StatusInfo
		granted     bool
		failureInfo []string
		text        string
	}{
		{
			name:    "granted",
			info:    StatusInfo{Status: StatusGranted},
			granted: true,
			text:    "granted",
		},
		{
			name:    "granted with mods",
			info:    StatusInfo{Status: StatusGrantedWithMods, StatusString: []string{"policy changed"}},
			granted: true,
			text:    "grantedWithMods: policy changed",
		},
		{
			name: "rejection with fail info",
			info: StatusInfo{
				Status:       StatusRejection,
				StatusString: []string{"bad", "request"},
				FailInfo:     asn1.BitString{Bytes: []byte{0x20}, BitLength: 3},
			},
			failureInfo: []string{"badRequest"},
			text:        "rejection: bad; request (badRequest)",
		},
		{
			name: "system failure",
			info: StatusInfo{
				Status:   StatusRejection,
				FailInfo: asn1.BitString{Bytes: []byte{0x00, 0x00, 0x00, 0x40}, BitLength: 26},
			},
			failureInfo: []string{"systemFailure"},
			text:        "rejection (systemFailure)",
		},
		{
			name: "waiting",
			info: StatusInfo{Status: StatusWaiting},
			text: "waiting",
		},
		{
			name: "unknown status",
			info: StatusInfo{Status: 9},
			text: "status(9)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := tt.info.Encode()

			// cross check with the standard library
			var std struct {
				Status       int
				StatusString []string       `asn1:"optional"`
				FailInfo     asn1.BitString `asn1:"optional"`
			}
			if rest, err := asn1.Unmarshal(encoded, &std); err != nil || len(rest) != 0 {
				t.Fatalf("asn1.Unmarshal() error = %v, rest = %x", err, rest)
			}
			if std.Status != tt.info.Status || !reflect.DeepEqual(std.StatusString, tt.info.StatusString) || std.FailInfo.BitLength != tt.info.FailInfo.BitLength {
				t.Fatalf("asn1.Unmarshal() = %+v, want %+v", std, tt.info)
			}

			got, err := ParseStatusInfo(asn1util.NewReader(encoded))
			if err != nil {
				t.Fatalf("ParseStatusInfo() error = %v", err)
			}
			if got.Status != tt.info.Status || !reflect.DeepEqual(got.StatusString, tt.info.StatusString) {
				t.Fatalf("ParseStatusInfo() = %+v, want %+v", got, tt.info)
			}
			if got.Granted() != tt.granted {
				t.Errorf("Granted() = %v, want %v", got.Granted(), tt.granted)
			}
			if fi := got.FailureInfo(); !reflect.DeepEqual(fi, tt.failureInfo) {
				t.Errorf("FailureInfo() = %v, want %v", fi, tt.failureInfo)
			}
			if s := got.String(); s != tt.text {
				t.Errorf("String() = %q, want %q", s, tt.text)
			}
		})
	}
}

func TestParseStatusInfoInvalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "not a sequence", data: []byte{0x02, 0x01, 0x00}},
		{name: "missing status", data: []byte{0x30, 0x00}},
		{name: "status string not utf8", data: []byte{0x30, 0x07, 0x02, 0x01, 0x02, 0x30, 0x02, 0x04, 0x00}},
		{name: "trailing member", data: []byte{0x30, 0x05, 0x02, 0x01, 0x00, 0x05, 0x00}},
		{name: "status above int32", data: []byte{0x30, 0x07, 0x02, 0x05, 0x01, 0x00, 0x00, 0x00, 0x00}},
		{name: "status below int32", data: []byte{0x30, 0x07, 0x02, 0x05, 0xfe, 0xff, 0xff, 0xff, 0xff}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseStatusInfo(asn1util.NewReader(tt.data)); err == nil {
				t.Fatal("ParseStatusInfo() error = nil, want error")
			}
		})
	}
}

func TestStatusInfoEncode(t *testing.T) {
	info := StatusInfo{
		Status:       StatusRejection,
		StatusString: []string{"unsupported policy"},
		FailInfo:     asn1.BitString{Bytes: []byte{0x00, 0x01}, BitLength: 16},
	}
	want := []byte{
		0x30, 0x1e,
		0x02, 0x01, 0x02,
		0x30, 0x14,
		0x0c, 0x12, 'u', 'n', 's', 'u', 'p', 'p', 'o', 'r', 't', 'e', 'd', ' ', 'p', 'o', 'l', 'i', 'c', 'y',
		0x03, 0x03, 0x00, 0x00, 0x01,
	}
	if got := info.Encode(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Encode() = %x, want %x", got, want)
	}
	got, err := ParseStatusInfo(asn1util.NewReader(want))
	if err != nil {
		t.Fatalf("ParseStatusInfo() error = %v", err)
	}
	if fi := got.FailureInfo(); !reflect.DeepEqual(fi, []string{"unacceptedPolicy"}) {
		t.Fatalf("FailureInfo() = %v, want [unacceptedPolicy]", fi)
	}
}
