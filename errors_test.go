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
	"errors"
	"testing"

	"github.com/payrollkit/stamp/crypto/timestamp"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		want     string
		wantCode timestamp.ErrorCode
	}{
		{
			name:     "after attempts",
			err:      &Error{Attempts: 4, Err: timestamp.TransportError{Msg: "request to https://tsa.example.com failed"}},
			want:     "stamp: no time-stamp token after 4 attempt(s): timestamp: transport failure: request to https://tsa.example.com failed",
			wantCode: timestamp.CodeTransport,
		},
		{
			name:     "before any attempt",
			err:      &Error{Err: timestamp.ConfigError{Msg: "disabled"}},
			want:     "stamp: no time-stamp token: timestamp: invalid configuration: disabled",
			wantCode: timestamp.CodeConfig,
		},
		{
			name:     "canceled",
			err:      &Error{Attempts: 1, Err: context.Canceled},
			want:     "stamp: no time-stamp token after 1 attempt(s): context canceled",
			wantCode: timestamp.CodeCanceled,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
			if got := tt.err.Code(); got != tt.wantCode {
				t.Errorf("Code() = %v, want %v", got, tt.wantCode)
			}
			if !errors.Is(tt.err, tt.err.Err) {
				t.Errorf("errors.Is(err, Err) = false")
			}
		})
	}
}
