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

// Package metrics exposes Prometheus metrics of TSA exchanges.
package metrics

import (
	"time"

	"github.com/docker/go-metrics"
)

// Attempt outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeRetryable = "retryable"
	OutcomeRejected  = "rejected"
	OutcomeConfig    = "config"
	OutcomeCanceled  = "canceled"
	OutcomeInternal  = "internal"
)

var (
	attempts        metrics.LabeledCounter
	attemptDuration metrics.LabeledTimer
	verifications   metrics.LabeledCounter
)

func init() {
	ns := metrics.NewNamespace("payroll_stamp", "tsa", nil)
	attempts = ns.NewLabeledCounter("attempts", "The number of time-stamp requests sent to a TSA by outcome", "outcome")
	attemptDuration = ns.NewLabeledTimer("attempt_duration", "The number of seconds a time-stamp request takes by outcome", "outcome")
	verifications = ns.NewLabeledCounter("verifications", "The number of token verifications by result", "result")
	for _, o := range []string{
		OutcomeSuccess,
		OutcomeRetryable,
		OutcomeRejected,
		OutcomeConfig,
		OutcomeCanceled,
		OutcomeInternal,
	} {
		// create the series so that every outcome is exported from the start
		attempts.WithValues(o)
		attemptDuration.WithValues(o)
	}
	metrics.Register(ns)
}

// ObserveAttempt records one request against a TSA.
func ObserveAttempt(outcome string, d time.Duration) {
	attempts.WithValues(outcome).Inc()
	attemptDuration.WithValues(outcome).Update(d)
}

// ObserveVerification records one token verification.
func ObserveVerification(matched bool) {
	result := "mismatch"
	if matched {
		result = "match"
	}
	verifications.WithValues(result).Inc()
}
