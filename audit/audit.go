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

// Package audit defines the audit trail of time-stamping operations. Every
// attempt against a TSA and every verification produces an Entry that is
// handed to a Sink.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Action is the kind of an audit entry.
type Action string

// Actions.
const (
	ActionRequest Action = "request"
	ActionSuccess Action = "success"
	ActionFailure Action = "failure"
	ActionRetry   Action = "retry"
	ActionVerify  Action = "verify"
)

// Subject names the business objects a document belongs to.
type Subject struct {
	DocumentID string `json:"documentId,omitempty"`
	EmployeeID string `json:"employeeId,omitempty"`
	CompanyID  string `json:"companyId,omitempty"`
}

// Entry is one audit record. Optional fields are left at their zero value.
type Entry struct {
	ID     string    `json:"id"`
	Time   time.Time `json:"time"`
	Action Action    `json:"action"`

	TSAURL         string `json:"tsaUrl,omitempty"`
	TSAName        string `json:"tsaName,omitempty"`
	RequestHashHex string `json:"requestHashHex,omitempty"`

	// ResponseStatusCode is the HTTP status of the TSA answer. Zero if no
	// answer was received.
	ResponseStatusCode int `json:"responseStatusCode,omitempty"`

	SerialNumber string    `json:"serialNumber,omitempty"`
	GenTime      time.Time `json:"genTime,omitempty"`
	ErrorCode    string    `json:"errorCode,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	DurationMs   int64     `json:"durationMs"`

	// RetryCount is the number of attempts against the same TSA that
	// preceded this one.
	RetryCount int `json:"retryCount"`

	Subject Subject `json:"subject"`
}

// NewEntry returns an entry with a fresh ID stamped with the current time.
func NewEntry(action Action) Entry {
	return Entry{
		ID:     uuid.NewString(),
		Time:   time.Now().UTC(),
		Action: action,
	}
}

// Sink stores audit entries. Implementations must be safe for concurrent
// use.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// Discard is a Sink that drops every entry.
var Discard Sink = discardSink{}

type discardSink struct{}

func (discardSink) Record(context.Context, Entry) error {
	return nil
}

// Memory is a Sink that keeps entries in memory.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

// Record appends entry.
func (m *Memory) Record(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

// Entries returns a copy of the recorded entries in recording order.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// Actions returns the action of every recorded entry in recording order.
func (m *Memory) Actions() []Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	actions := make([]Action, len(m.entries))
	for i, e := range m.entries {
		actions[i] = e.Action
	}
	return actions
}
