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
	"fmt"

	"github.com/payrollkit/stamp/crypto/timestamp"
)

// Error is returned by Stamp and StampDigest when no time-stamp token could
// be obtained. Err is the error of the last attempt and keeps its
// timestamp error type.
type Error struct {
	// Attempts is the number of requests sent over all endpoints.
	Attempts int

	Err error
}

func (e *Error) Error() string {
	if e.Attempts == 0 {
		return "stamp: no time-stamp token: " + e.Err.Error()
	}
	return fmt.Sprintf("stamp: no time-stamp token after %d attempt(s): %v", e.Attempts, e.Err)
}

// Unwrap returns the error of the last attempt.
func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the error code of the last attempt.
func (e *Error) Code() timestamp.ErrorCode {
	return timestamp.CodeOf(e.Err)
}
