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

// Package sqlite provides an audit.Sink backed by a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/payrollkit/stamp/audit"
)

const schema = `
CREATE TABLE IF NOT EXISTS timestamp_log (
    id                   TEXT PRIMARY KEY,
    time_ns              INTEGER NOT NULL,
    action               TEXT NOT NULL,
    tsa_url              TEXT NOT NULL DEFAULT '',
    tsa_name             TEXT NOT NULL DEFAULT '',
    request_hash_hex     TEXT NOT NULL DEFAULT '',
    response_status_code INTEGER NOT NULL DEFAULT 0,
    serial_number        TEXT NOT NULL DEFAULT '',
    gen_time_ns          INTEGER,
    error_code           TEXT NOT NULL DEFAULT '',
    error_message        TEXT NOT NULL DEFAULT '',
    duration_ms          INTEGER NOT NULL DEFAULT 0,
    retry_count          INTEGER NOT NULL DEFAULT 0,
    document_id          TEXT NOT NULL DEFAULT '',
    employee_id          TEXT NOT NULL DEFAULT '',
    company_id           TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_timestamp_log_time ON timestamp_log(time_ns);
CREATE INDEX IF NOT EXISTS idx_timestamp_log_document ON timestamp_log(document_id, time_ns);
`

const columns = `id, time_ns, action, tsa_url, tsa_name, request_hash_hex,
	response_status_code, serial_number, gen_time_ns, error_code, error_message,
	duration_ms, retry_count, document_id, employee_id, company_id`

var _ audit.Sink = (*Sink)(nil)

// Sink records audit entries into the timestamp_log table.
type Sink struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Sink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Sink{db: db}, nil
}

// Close closes the database.
func (s *Sink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record inserts entry.
func (s *Sink) Record(ctx context.Context, entry audit.Entry) error {
	var genTime sql.NullInt64
	if !entry.GenTime.IsZero() {
		genTime = sql.NullInt64{Int64: entry.GenTime.UnixNano(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO timestamp_log (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Time.UnixNano(), string(entry.Action), entry.TSAURL, entry.TSAName,
		entry.RequestHashHex, entry.ResponseStatusCode, entry.SerialNumber, genTime,
		entry.ErrorCode, entry.ErrorMessage, entry.DurationMs, entry.RetryCount,
		entry.Subject.DocumentID, entry.Subject.EmployeeID, entry.Subject.CompanyID,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Filter selects entries returned by List. Zero fields match everything.
type Filter struct {
	Action     audit.Action
	DocumentID string
	Since      time.Time

	// Limit caps the number of entries. Zero means no limit.
	Limit int
}

// List returns the entries matching filter, oldest first.
func (s *Sink) List(ctx context.Context, filter Filter) ([]audit.Entry, error) {
	var where []string
	var args []any
	if filter.Action != "" {
		where = append(where, "action = ?")
		args = append(args, string(filter.Action))
	}
	if filter.DocumentID != "" {
		where = append(where, "document_id = ?")
		args = append(args, filter.DocumentID)
	}
	if !filter.Since.IsZero() {
		where = append(where, "time_ns >= ?")
		args = append(args, filter.Since.UnixNano())
	}
	query := "SELECT " + columns + " FROM timestamp_log"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY time_ns, rowid"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var action string
		var timeNs int64
		var genTime sql.NullInt64
		if err := rows.Scan(&e.ID, &timeNs, &action, &e.TSAURL, &e.TSAName, &e.RequestHashHex,
			&e.ResponseStatusCode, &e.SerialNumber, &genTime, &e.ErrorCode, &e.ErrorMessage,
			&e.DurationMs, &e.RetryCount, &e.Subject.DocumentID, &e.Subject.EmployeeID, &e.Subject.CompanyID,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Action = audit.Action(action)
		e.Time = time.Unix(0, timeNs).UTC()
		if genTime.Valid {
			e.GenTime = time.Unix(0, genTime.Int64).UTC()
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}
