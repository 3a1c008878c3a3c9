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

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/payrollkit/stamp/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSink(t *testing.T) *Sink {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	s := openTestSink(t)

	base := time.Date(2026, 3, 31, 8, 0, 0, 0, time.UTC)
	subject := audit.Subject{DocumentID: "payslip-2026-03", EmployeeID: "E042", CompanyID: "C7"}

	request := audit.NewEntry(audit.ActionRequest)
	request.Time = base
	request.TSAURL = "https://tsa.example.com"
	request.RequestHashHex = "ab12"
	request.Subject = subject

	success := audit.NewEntry(audit.ActionSuccess)
	success.Time = base.Add(time.Second)
	success.TSAURL = request.TSAURL
	success.TSAName = "CN=Example TSA"
	success.RequestHashHex = request.RequestHashHex
	success.ResponseStatusCode = 200
	success.SerialNumber = "123456789012345678901234567890"
	success.GenTime = base.Add(900 * time.Millisecond)
	success.DurationMs = 734
	success.RetryCount = 1
	success.Subject = subject

	other := audit.NewEntry(audit.ActionFailure)
	other.Time = base.Add(2 * time.Second)
	other.ErrorCode = "transport_error"
	other.ErrorMessage = "timestamp: transport failure"
	other.Subject = audit.Subject{DocumentID: "payslip-2026-04"}

	for _, e := range []audit.Entry{request, success, other} {
		require.NoError(t, s.Record(ctx, e))
	}

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, request, all[0])
	assert.Equal(t, success, all[1])
	assert.Equal(t, other, all[2])

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "action", filter: Filter{Action: audit.ActionSuccess}, want: []string{success.ID}},
		{name: "document", filter: Filter{DocumentID: "payslip-2026-03"}, want: []string{request.ID, success.ID}},
		{name: "since", filter: Filter{Since: base.Add(time.Second)}, want: []string{success.ID, other.ID}},
		{name: "limit", filter: Filter{Limit: 1}, want: []string{request.ID}},
		{name: "no match", filter: Filter{Action: audit.ActionVerify}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := s.List(ctx, tt.filter)
			require.NoError(t, err)
			var ids []string
			for _, e := range entries {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestRecordDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := openTestSink(t)
	e := audit.NewEntry(audit.ActionVerify)
	require.NoError(t, s.Record(ctx, e))
	assert.Error(t, s.Record(ctx, e))
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit.db")
	s, err := Open(path)
	require.NoError(t, err)
	e := audit.NewEntry(audit.ActionRetry)
	require.NoError(t, s.Record(ctx, e))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	entries, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, e.ID, entries[0].ID)
}
