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

// Package stamp obtains RFC 3161 time-stamp tokens for approved payroll
// documents from the TSAs of the active environment.
//
// A Stamper retries transient failures against the same TSA, fails over to
// the configured fallback TSAs, and reports every attempt to an audit sink.
package stamp

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/payrollkit/stamp/audit"
	"github.com/payrollkit/stamp/config"
	"github.com/payrollkit/stamp/crypto/timestamp"
	"github.com/payrollkit/stamp/internal/metrics"
	"github.com/payrollkit/stamp/log"
)

// Options contains parameters for New.
type Options struct {
	// Sink receives the audit entries. Defaults to audit.Discard.
	Sink audit.Sink

	// RootCAs verifies the TLS certificates of the TSAs. The system pool is
	// used if nil.
	RootCAs *x509.CertPool

	// Transport overrides the HTTP transport of every endpoint.
	Transport http.RoundTripper

	// NewTimestamper builds the timestamper of an endpoint. Defaults to an
	// HTTP timestamper honoring the endpoint timeout and mTLS settings.
	NewTimestamper func(config.Endpoint) (timestamp.Timestamper, error)
}

// StampOptions contains parameters for Stamper.Stamp.
type StampOptions struct {
	// Subject identifies the document in audit entries.
	Subject audit.Subject
}

type endpoint struct {
	config.Endpoint
	timestamper timestamp.Timestamper
	requestOpts timestamp.RequestOptions
}

// Stamper obtains time-stamp tokens. It is safe for concurrent use.
type Stamper struct {
	env       config.Environment
	endpoints []endpoint
	sink      audit.Sink
}

// New validates env and returns a Stamper for it. Client certificates are
// loaded once here. No transport is built for a mock environment.
func New(env config.Environment, opts Options) (*Stamper, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	s := &Stamper{
		env:  env,
		sink: opts.Sink,
	}
	if s.sink == nil {
		s.sink = audit.Discard
	}
	if env.Mock {
		return s, nil
	}

	newTimestamper := opts.NewTimestamper
	if newTimestamper == nil {
		newTimestamper = func(ep config.Endpoint) (timestamp.Timestamper, error) {
			return newHTTPTimestamper(ep, opts)
		}
	}
	for _, ep := range env.Endpoints() {
		ts, err := newTimestamper(ep)
		if err != nil {
			return nil, err
		}
		s.endpoints = append(s.endpoints, endpoint{
			Endpoint:    ep,
			timestamper: ts,
			requestOpts: timestamp.RequestOptions{PolicyOID: ep.PolicyOID},
		})
	}
	return s, nil
}

func newHTTPTimestamper(ep config.Endpoint, opts Options) (*timestamp.HTTPTimestamper, error) {
	httpOpts := timestamp.HTTPOptions{
		Timeout:   ep.Timeout(),
		RootCAs:   opts.RootCAs,
		Transport: opts.Transport,
	}
	if m := ep.MutualTLS; m != nil && m.CertPath != "" {
		cert, err := timestamp.LoadClientCertificate(m.CertPath, m.Password)
		if err != nil {
			return nil, err
		}
		httpOpts.ClientCertificate = &cert
	}
	return timestamp.NewHTTPTimestamper(ep.URL, httpOpts)
}

// Environment returns the environment of the stamper.
func (s *Stamper) Environment() config.Environment {
	return s.env
}

// Stamp obtains a time-stamp token over the SHA-256 digest of content.
//
// A failure means the document is saved without a timestamp and stamping
// can be retried later. It is not a reason to abort the business
// transaction that produced the document. The returned error is an *Error
// that unwraps to the typed error of the last attempt.
func (s *Stamper) Stamp(ctx context.Context, content []byte, opts StampOptions) (*timestamp.Token, error) {
	return s.StampDigest(ctx, timestamp.ComputeDigest(content), opts)
}

// StampDigest obtains a time-stamp token over d. See Stamp.
func (s *Stamper) StampDigest(ctx context.Context, d timestamp.Digest, opts StampOptions) (*timestamp.Token, error) {
	if !s.env.Enabled {
		return nil, &Error{Err: timestamp.ConfigError{Msg: fmt.Sprintf("time-stamping is disabled in environment %q", s.env.Name)}}
	}
	if s.env.Mock {
		return s.stampMock(ctx, d, opts.Subject), nil
	}

	parent := ctx
	if total := s.env.TotalTimeout(); total > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, total)
		defer cancel()
	}

	logger := log.GetLogger(ctx)
	var attempts int
	var lastErr error
	for i, ep := range s.endpoints {
		if i > 0 {
			logger.Warnf("Failing over to TSA %s after: %v", ep.DisplayName(), lastErr)
		}
		token, n, err := s.stampEndpoint(ctx, ep, d, opts.Subject)
		attempts += n
		if err == nil {
			return token, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			if parent.Err() == nil {
				// the total timeout expired
				lastErr = timestamp.TransportError{
					Msg:    fmt.Sprintf("total timeout of %v exceeded", s.env.TotalTimeout()),
					Detail: err,
				}
			}
			break
		}
		var configErr timestamp.ConfigError
		if errors.As(err, &configErr) {
			break
		}
	}
	logger.Errorf("Time-stamping failed after %d attempt(s): %v", attempts, lastErr)
	return nil, &Error{Attempts: attempts, Err: lastErr}
}

// stampEndpoint runs the retry loop against one endpoint and returns the
// number of requests sent.
func (s *Stamper) stampEndpoint(ctx context.Context, ep endpoint, d timestamp.Digest, subject audit.Subject) (*timestamp.Token, int, error) {
	logger := log.GetLogger(ctx)
	var attempt int
	for {
		attempt++
		token, err := s.attempt(ctx, ep, d, subject, attempt-1)
		if err == nil {
			return token, attempt, nil
		}
		if !timestamp.IsRetryable(err) || ctx.Err() != nil {
			return nil, attempt, err
		}
		if attempt > ep.RetryCount {
			logger.Warnf("TSA %s exhausted after %d attempt(s)", ep.DisplayName(), attempt)
			return nil, attempt, err
		}

		delay := ep.RetryDelay() * time.Duration(attempt)
		logger.Infof("Retrying TSA %s in %v after attempt %d: %v", ep.DisplayName(), delay, attempt, err)
		entry := s.newEntry(audit.ActionRetry, ep, d, subject, attempt)
		entry.ErrorCode = string(timestamp.CodeOf(err))
		entry.ErrorMessage = err.Error()
		s.record(ctx, entry)
		if err := sleep(ctx, delay); err != nil {
			return nil, attempt, err
		}
	}
}

// attempt sends one request with a fresh nonce.
func (s *Stamper) attempt(ctx context.Context, ep endpoint, d timestamp.Digest, subject audit.Subject, retryCount int) (*timestamp.Token, error) {
	req, err := timestamp.NewRequest(d, ep.requestOpts)
	if err != nil {
		return nil, err
	}
	s.record(ctx, s.newEntry(audit.ActionRequest, ep, d, subject, retryCount))

	log.GetLogger(ctx).Debugf("Requesting time-stamp token from %s for digest %s", ep.URL, d)
	start := time.Now()
	token, err := ep.timestamper.Timestamp(ctx, req)
	duration := time.Since(start)
	metrics.ObserveAttempt(outcome(err), duration)

	if err != nil {
		entry := s.newEntry(audit.ActionFailure, ep, d, subject, retryCount)
		entry.ResponseStatusCode = responseStatusCode(err)
		entry.ErrorCode = string(timestamp.CodeOf(err))
		entry.ErrorMessage = err.Error()
		entry.DurationMs = duration.Milliseconds()
		s.record(ctx, entry)
		return nil, err
	}

	entry := s.newEntry(audit.ActionSuccess, ep, d, subject, retryCount)
	entry.ResponseStatusCode = http.StatusOK
	if token.TSAName != "" {
		entry.TSAName = token.TSAName
	}
	entry.SerialNumber = token.SerialNumber
	entry.GenTime = token.GenTime
	entry.DurationMs = duration.Milliseconds()
	s.record(ctx, entry)
	return token, nil
}

// Verify reports whether token was issued over content and records a
// verify audit entry. Verification only needs the token, so it works in
// disabled environments too.
func (s *Stamper) Verify(ctx context.Context, content []byte, token *timestamp.Token, subject audit.Subject) (bool, error) {
	return Verify(ctx, s.sink, content, token, subject)
}

// Verify reports whether token was issued over content and records a
// verify audit entry to sink. A nil sink discards the entry.
func Verify(ctx context.Context, sink audit.Sink, content []byte, token *timestamp.Token, subject audit.Subject) (bool, error) {
	start := time.Now()
	ok, err := timestamp.Verify(content, token)

	entry := audit.NewEntry(audit.ActionVerify)
	entry.RequestHashHex = timestamp.ComputeDigest(content).Hex()
	entry.DurationMs = time.Since(start).Milliseconds()
	entry.Subject = subject
	if token != nil {
		entry.TSAName = token.TSAName
		entry.SerialNumber = token.SerialNumber
		entry.GenTime = token.GenTime
	}
	switch {
	case err != nil:
		entry.ErrorCode = string(timestamp.CodeOf(err))
		entry.ErrorMessage = err.Error()
	case !ok:
		entry.ErrorMessage = "message imprint mismatch"
		metrics.ObserveVerification(false)
	default:
		metrics.ObserveVerification(true)
	}
	if sink != nil {
		record(ctx, sink, entry)
	}
	return ok, err
}

func (s *Stamper) newEntry(action audit.Action, ep endpoint, d timestamp.Digest, subject audit.Subject, retryCount int) audit.Entry {
	entry := audit.NewEntry(action)
	entry.TSAURL = ep.URL
	entry.TSAName = ep.Name
	entry.RequestHashHex = d.Hex()
	entry.RetryCount = retryCount
	entry.Subject = subject
	return entry
}

func (s *Stamper) record(ctx context.Context, entry audit.Entry) {
	record(ctx, s.sink, entry)
}

// record hands entry to sink. Sink failures never fail the operation.
func record(ctx context.Context, sink audit.Sink, entry audit.Entry) {
	if err := sink.Record(context.WithoutCancel(ctx), entry); err != nil {
		log.GetLogger(ctx).Warnf("Failed to record %s audit entry %s: %v", entry.Action, entry.ID, err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// responseStatusCode returns the HTTP status implied by err, or zero if no
// HTTP answer was received.
func responseStatusCode(err error) int {
	var protocolErr timestamp.ProtocolError
	if errors.As(err, &protocolErr) && protocolErr.HTTPStatus != 0 {
		return protocolErr.HTTPStatus
	}
	var rejectionErr timestamp.RejectionError
	var missingErr timestamp.TokenMissingError
	if errors.As(err, &rejectionErr) || errors.As(err, &missingErr) || errors.As(err, &protocolErr) {
		// a TimeStampResp is only parsed from a 200 answer
		return http.StatusOK
	}
	return 0
}

func outcome(err error) string {
	var configErr timestamp.ConfigError
	var rejectionErr timestamp.RejectionError
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		if timestamp.IsRetryable(err) {
			return metrics.OutcomeRetryable
		}
		return metrics.OutcomeCanceled
	case errors.As(err, &configErr):
		return metrics.OutcomeConfig
	case errors.As(err, &rejectionErr):
		return metrics.OutcomeRejected
	case timestamp.IsRetryable(err):
		return metrics.OutcomeRetryable
	default:
		return metrics.OutcomeInternal
	}
}
