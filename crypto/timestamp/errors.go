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
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is a machine readable error classification recorded in audit
// logs.
type ErrorCode string

// Error codes.
const (
	CodeConfig       ErrorCode = "config_error"
	CodeTransport    ErrorCode = "transport_error"
	CodeProtocol     ErrorCode = "protocol_error"
	CodeRejection    ErrorCode = "tsa_rejection"
	CodeTokenMissing ErrorCode = "token_missing"
	CodeInvalidToken ErrorCode = "invalid_token"
	CodeCanceled     ErrorCode = "canceled"
	CodeInternal     ErrorCode = "internal_error"
)

// ConfigError is used when the TSA configuration is invalid. It is never
// retried.
type ConfigError struct {
	Msg    string
	Detail error
}

func (e ConfigError) Error() string {
	msg := "timestamp: invalid configuration"
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Detail != nil {
		msg += ": " + e.Detail.Error()
	}
	return msg
}

// Unwrap returns the internal error.
func (e ConfigError) Unwrap() error {
	return e.Detail
}

// Code returns CodeConfig.
func (e ConfigError) Code() ErrorCode {
	return CodeConfig
}

// TransportError is used when the TSA could not be reached or did not
// answer in time.
type TransportError struct {
	Msg    string
	Detail error
}

func (e TransportError) Error() string {
	msg := "timestamp: transport failure"
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Detail != nil {
		msg += ": " + e.Detail.Error()
	}
	return msg
}

// Unwrap returns the internal error.
func (e TransportError) Unwrap() error {
	return e.Detail
}

// Code returns CodeTransport.
func (e TransportError) Code() ErrorCode {
	return CodeTransport
}

// ProtocolError is used when the TSA answered with something that is not a
// valid time-stamp response for the request.
type ProtocolError struct {
	Msg string

	// HTTPStatus is the status code of the HTTP response, if the error was
	// caused by the HTTP exchange itself.
	HTTPStatus int

	Detail error
}

func (e ProtocolError) Error() string {
	msg := "timestamp: protocol error"
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.HTTPStatus != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.HTTPStatus)
	}
	if e.Detail != nil {
		msg += ": " + e.Detail.Error()
	}
	return msg
}

// Unwrap returns the internal error.
func (e ProtocolError) Unwrap() error {
	return e.Detail
}

// Code returns CodeProtocol.
func (e ProtocolError) Code() ErrorCode {
	return CodeProtocol
}

// RejectionError is used when the TSA refused to issue a token. The same
// TSA is not asked again for the current operation.
type RejectionError struct {
	// Status is the PKIStatus value of the response.
	Status int

	// StatusText holds the statusString values of the response.
	StatusText []string

	// FailureInfo holds the names of the failInfo bits that are set.
	FailureInfo []string
}

func (e RejectionError) Error() string {
	msg := fmt.Sprintf("timestamp: request rejected by TSA with status %d", e.Status)
	if len(e.StatusText) > 0 {
		msg += ": " + strings.Join(e.StatusText, "; ")
	}
	if len(e.FailureInfo) > 0 {
		msg += " (" + strings.Join(e.FailureInfo, ", ") + ")"
	}
	return msg
}

// Code returns CodeRejection.
func (e RejectionError) Code() ErrorCode {
	return CodeRejection
}

// TokenMissingError is used when the TSA granted the request but returned
// no token.
type TokenMissingError struct {
	Status int
}

func (e TokenMissingError) Error() string {
	return fmt.Sprintf("timestamp: response with status %d carries no time-stamp token", e.Status)
}

// Code returns CodeTokenMissing.
func (e TokenMissingError) Code() ErrorCode {
	return CodeTokenMissing
}

// InvalidTokenError is used when a stored token cannot be verified at all.
type InvalidTokenError struct {
	Msg string
}

func (e InvalidTokenError) Error() string {
	if e.Msg == "" {
		return "timestamp: invalid token"
	}
	return "timestamp: invalid token: " + e.Msg
}

// Code returns CodeInvalidToken.
func (e InvalidTokenError) Code() ErrorCode {
	return CodeInvalidToken
}

// IsRetryable reports whether the same TSA may be asked again after err.
func IsRetryable(err error) bool {
	var transportErr TransportError
	var protocolErr ProtocolError
	var missingErr TokenMissingError
	return errors.As(err, &transportErr) ||
		errors.As(err, &protocolErr) ||
		errors.As(err, &missingErr)
}

// CodeOf returns the error code of the first error in the chain of err that
// carries one. Context errors yield CodeCanceled and any other error
// CodeInternal. A nil error has no code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var coded interface{ Code() ErrorCode }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCanceled
	}
	return CodeInternal
}
