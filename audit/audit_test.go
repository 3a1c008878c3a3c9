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

package audit

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntry(t *testing.T) {
	a, b := NewEntry(ActionRequest), NewEntry(ActionRequest)
	_, err := uuid.Parse(a.ID)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, ActionRequest, a.Action)
	assert.False(t, a.Time.IsZero())
}

func TestEntryJSON(t *testing.T) {
	entry := NewEntry(ActionFailure)
	entry.TSAURL = "https://tsa.example.com"
	entry.ErrorCode = "transport_error"
	entry.Subject = Subject{DocumentID: "doc-1"}

	data, err := json.Marshal(entry)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "failure", fields["action"])
	assert.Equal(t, "transport_error", fields["errorCode"])
	assert.NotContains(t, fields, "serialNumber")
	assert.NotContains(t, fields, "responseStatusCode")
	assert.Equal(t, map[string]any{"documentId": "doc-1"}, fields["subject"])
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard.Record(context.Background(), NewEntry(ActionVerify)))
}

func TestMemoryConcurrent(t *testing.T) {
	var m Memory
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Record(context.Background(), NewEntry(ActionRequest))
		}()
	}
	wg.Wait()
	assert.Len(t, m.Entries(), 50)

	entries := m.Entries()
	entries[0].Action = ActionFailure
	assert.Equal(t, ActionRequest, m.Entries()[0].Action)
	assert.Len(t, m.Actions(), 50)
}
