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
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/payrollkit/stamp/audit"
	"github.com/payrollkit/stamp/config"
	"github.com/payrollkit/stamp/crypto/timestamp"
	"github.com/payrollkit/stamp/crypto/timestamp/timestamptest"
)

const (
	primaryURL  = "https://primary.example.com/tsr"
	fallbackURL = "https://fallback.example.com/tsr"
)

var payslip = []byte("%PDF-1.7 payslip 2026-03 employee E042")

// flakyTimestamper fails the first failures calls with err and forwards
// the remaining calls to next.
type flakyTimestamper struct {
	next     timestamp.Timestamper
	failures int
	err      error

	mu    sync.Mutex
	calls int
}

func (f *flakyTimestamper) Timestamp(ctx context.Context, req *timestamp.Request) (*timestamp.Token, error) {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fail {
		return nil, f.err
	}
	return f.next.Timestamp(ctx, req)
}

func (f *flakyTimestamper) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestTSA(t *testing.T) *timestamptest.TSA {
	t.Helper()
	tsa, err := timestamptest.NewTSA()
	if err != nil {
		t.Fatalf("NewTSA() error = %v", err)
	}
	return tsa
}

func testEnvironment(retryCount int, fallbacks ...string) config.Environment {
	env := config.NewEnvironment(config.Test)
	env.TSA.Name = "primary"
	env.TSA.URL = primaryURL
	env.TSA.RetryCount = retryCount
	env.TSA.RetryDelayMs = 1
	for _, u := range fallbacks {
		fallback := env.TSA
		fallback.Name = "fallback"
		fallback.URL = u
		env.Fallbacks = append(env.Fallbacks, fallback)
	}
	return env
}

// timestampers returns a NewTimestamper function selecting by URL.
func timestampers(t *testing.T, byURL map[string]timestamp.Timestamper) func(config.Endpoint) (timestamp.Timestamper, error) {
	return func(ep config.Endpoint) (timestamp.Timestamper, error) {
		ts, ok := byURL[ep.URL]
		if !ok {
			t.Fatalf("unexpected endpoint %s", ep.URL)
		}
		return ts, nil
	}
}

func TestStampRetry(t *testing.T) {
	transient := timestamp.TransportError{Msg: "connection reset"}
	tests := []struct {
		name         string
		failures     int
		retryCount   int
		err          error
		wantSuccess  bool
		wantAttempts int
	}{
		{name: "first attempt", failures: 0, retryCount: 3, err: transient, wantSuccess: true, wantAttempts: 1},
		{name: "recovers within budget", failures: 2, retryCount: 3, err: transient, wantSuccess: true, wantAttempts: 3},
		{name: "recovers on last attempt", failures: 3, retryCount: 3, err: transient, wantSuccess: true, wantAttempts: 4},
		{name: "budget exhausted", failures: 4, retryCount: 3, err: transient, wantSuccess: false, wantAttempts: 4},
		{name: "no retries", failures: 1, retryCount: 0, err: transient, wantSuccess: false, wantAttempts: 1},
		{name: "protocol error retried", failures: 1, retryCount: 1, err: timestamp.ProtocolError{Msg: "bad gateway", HTTPStatus: 502}, wantSuccess: true, wantAttempts: 2},
		{name: "missing token retried", failures: 1, retryCount: 1, err: timestamp.TokenMissingError{}, wantSuccess: true, wantAttempts: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flaky := &flakyTimestamper{next: newTestTSA(t), failures: tt.failures, err: tt.err}
			stamper, err := New(testEnvironment(tt.retryCount), Options{
				NewTimestamper: timestampers(t, map[string]timestamp.Timestamper{primaryURL: flaky}),
			})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			token, err := stamper.Stamp(context.Background(), payslip, StampOptions{})
			if got := flaky.Calls(); got != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempts)
			}
			if !tt.wantSuccess {
				var stampErr *Error
				if !errors.As(err, &stampErr) {
					t.Fatalf("Stamp() error = %v, want *Error", err)
				}
				if stampErr.Attempts != tt.wantAttempts {
					t.Errorf("Error.Attempts = %d, want %d", stampErr.Attempts, tt.wantAttempts)
				}
				if !errors.Is(err, tt.err) {
					t.Errorf("Stamp() error = %v, want %v", err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Stamp() error = %v", err)
			}
			if ok, err := timestamp.Verify(payslip, token); err != nil || !ok {
				t.Errorf("Verify() = %v, %v, want true", ok, err)
			}
		})
	}
}

func TestStampAuditTrail(t *testing.T) {
	var sink audit.Memory
	flaky := &flakyTimestamper{
		next:     newTestTSA(t),
		failures: 1,
		err:      timestamp.ProtocolError{Msg: "unexpected HTTP status 503", HTTPStatus: http.StatusServiceUnavailable},
	}
	stamper, err := New(testEnvironment(1), Options{
		Sink:           &sink,
		NewTimestamper: timestampers(t, map[string]timestamp.Timestamper{primaryURL: flaky}),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	subject := audit.Subject{DocumentID: "payslip-2026-03", EmployeeID: "E042", CompanyID: "C7"}
	token, err := stamper.Stamp(context.Background(), payslip, StampOptions{Subject: subject})
	if err != nil {
		t.Fatalf("Stamp() error = %v", err)
	}

	wantActions := []audit.Action{
		audit.ActionRequest,
		audit.ActionFailure,
		audit.ActionRetry,
		audit.ActionRequest,
		audit.ActionSuccess,
	}
	if got := sink.Actions(); !reflect.DeepEqual(got, wantActions) {
		t.Fatalf("audit actions = %v, want %v", got, wantActions)
	}
	entries := sink.Entries()
	wantHash := timestamp.ComputeDigest(payslip).Hex()
	for i, e := range entries {
		if e.Subject != subject || e.TSAURL != primaryURL || e.RequestHashHex != wantHash {
			t.Errorf("entry %d = %+v, want subject, url and hash set", i, e)
		}
	}
	if failure := entries[1]; failure.ErrorCode != "protocol_error" || failure.ResponseStatusCode != http.StatusServiceUnavailable || failure.RetryCount != 0 {
		t.Errorf("failure entry = %+v", failure)
	}
	if retry := entries[2]; retry.RetryCount != 1 || retry.ErrorCode != "protocol_error" {
		t.Errorf("retry entry = %+v", retry)
	}
	success := entries[4]
	if success.RetryCount != 1 || success.ResponseStatusCode != http.StatusOK || success.ErrorCode != "" {
		t.Errorf("success entry = %+v", success)
	}
	if success.SerialNumber != token.SerialNumber || !success.GenTime.Equal(token.GenTime) {
		t.Errorf("success entry = %+v, want serial %s and time %v", success, token.SerialNumber, token.GenTime)
	}
}

func TestStampRejectionFailsOver(t *testing.T) {
	primary := newTestTSA(t)
	primary.Status = 2
	fallback := newTestTSA(t)
	var sink audit.Memory
	stamper, err := New(testEnvironment(3, fallbackURL), Options{
		Sink: &sink,
		NewTimestamper: timestampers(t, map[string]timestamp.Timestamper{
			primaryURL:  primary,
			fallbackURL: fallback,
		}),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	token, err := stamper.Stamp(context.Background(), payslip, StampOptions{})
	if err != nil {
		t.Fatalf("Stamp() error = %v", err)
	}
	if primary.Requests() != 1 {
		t.Errorf("primary requests = %d, want 1", primary.Requests())
	}
	if fallback.Requests() != 1 {
		t.Errorf("fallback requests = %d, want 1", fallback.Requests())
	}
	if token.MessageImprintHex != timestamp.ComputeDigest(payslip).Hex() {
		t.Errorf("MessageImprintHex = %s", token.MessageImprintHex)
	}
	entries := sink.Entries()
	if last := entries[len(entries)-1]; last.Action != audit.ActionSuccess || last.TSAURL != fallbackURL {
		t.Errorf("last entry = %+v, want success from fallback", last)
	}
	if entries[1].ErrorCode != "tsa_rejection" || entries[1].ResponseStatusCode != http.StatusOK {
		t.Errorf("rejection entry = %+v", entries[1])
	}
}

func TestStampFailsOverAfterExhaustion(t *testing.T) {
	primary := &flakyTimestamper{failures: 10, err: timestamp.TransportError{Msg: "timeout"}}
	fallback := newTestTSA(t)
	stamper, err := New(testEnvironment(2, fallbackURL), Options{
		NewTimestamper: timestampers(t, map[string]timestamp.Timestamper{
			primaryURL:  primary,
			fallbackURL: fallback,
		}),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := stamper.Stamp(context.Background(), payslip, StampOptions{}); err != nil {
		t.Fatalf("Stamp() error = %v", err)
	}
	if primary.Calls() != 3 {
		t.Errorf("primary attempts = %d, want 3", primary.Calls())
	}
}

func TestStampAllRejected(t *testing.T) {
	primary := newTestTSA(t)
	primary.Status = 2
	primary.StatusString = []string{"unsupported policy"}
	fallback := newTestTSA(t)
	fallback.Status = 2
	var sink audit.Memory
	stamper, err := New(testEnvironment(3, fallbackURL), Options{
		Sink: &sink,
		NewTimestamper: timestampers(t, map[string]timestamp.Timestamper{
			primaryURL:  primary,
			fallbackURL: fallback,
		}),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = stamper.Stamp(context.Background(), payslip, StampOptions{})
	var stampErr *Error
	if !errors.As(err, &stampErr) || stampErr.Attempts != 2 {
		t.Fatalf("Stamp() error = %v, want *Error after 2 attempts", err)
	}
	var rejection timestamp.RejectionError
	if !errors.As(err, &rejection) {
		t.Fatalf("Stamp() error = %v, want RejectionError", err)
	}
	if timestamp.CodeOf(err) != timestamp.CodeRejection {
		t.Errorf("CodeOf() = %v, want %v", timestamp.CodeOf(err), timestamp.CodeRejection)
	}
	if primary.Requests() != 1 || fallback.Requests() != 1 {
		t.Errorf("TSA requests = %d, %d, want 1, 1", primary.Requests(), fallback.Requests())
	}

	wantActions := []audit.Action{
		audit.ActionRequest,
		audit.ActionFailure,
		audit.ActionRequest,
		audit.ActionFailure,
	}
	if got := sink.Actions(); !reflect.DeepEqual(got, wantActions) {
		t.Fatalf("audit actions = %v, want %v", got, wantActions)
	}
	entries := sink.Entries()
	if failure := entries[1]; failure.TSAURL != primaryURL || failure.ErrorCode != string(timestamp.CodeRejection) || !strings.Contains(failure.ErrorMessage, "unsupported policy") {
		t.Errorf("primary failure entry = %+v, want a rejection with the status text", failure)
	}
	if failure := entries[3]; failure.TSAURL != fallbackURL || failure.ErrorCode != string(timestamp.CodeRejection) {
		t.Errorf("fallback failure entry = %+v, want a rejection", failure)
	}
}

func TestStampUncodedErrorFailsOver(t *testing.T) {
	var sink audit.Memory
	primary := &flakyTimestamper{failures: 10, err: errors.New("signer unavailable")}
	fallback := newTestTSA(t)
	stamper, err := New(testEnvironment(3, fallbackURL), Options{
		Sink: &sink,
		NewTimestamper: timestampers(t, map[string]timestamp.Timestamper{
			primaryURL:  primary,
			fallbackURL: fallback,
		}),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := stamper.Stamp(context.Background(), payslip, StampOptions{}); err != nil {
		t.Fatalf("Stamp() error = %v", err)
	}
	if primary.Calls() != 1 {
		t.Errorf("primary attempts = %d, want 1", primary.Calls())
	}
	entries := sink.Entries()
	if len(entries) != 4 {
		t.Fatalf("audit entries = %+v, want 4", entries)
	}
	if failure := entries[1]; failure.Action != audit.ActionFailure || failure.ErrorCode != string(timestamp.CodeInternal) {
		t.Errorf("primary failure entry = %+v, want %s", failure, timestamp.CodeInternal)
	}
}

func TestStampConfigErrorStops(t *testing.T) {
	primary := &flakyTimestamper{failures: 1, err: timestamp.ConfigError{Msg: "invalid TSA URL"}}
	fallback := newTestTSA(t)
	stamper, err := New(testEnvironment(3, fallbackURL), Options{
		NewTimestamper: timestampers(t, map[string]timestamp.Timestamper{
			primaryURL:  primary,
			fallbackURL: fallback,
		}),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = stamper.Stamp(context.Background(), payslip, StampOptions{})
	if timestamp.CodeOf(err) != timestamp.CodeConfig {
		t.Fatalf("Stamp() error = %v, want config error", err)
	}
	if primary.Calls() != 1 || fallback.Requests() != 0 {
		t.Errorf("calls = %d/%d, want 1/0", primary.Calls(), fallback.Requests())
	}
}

func TestStampCanceled(t *testing.T) {
	tsa := newTestTSA(t)
	stamper, err := New(testEnvironment(3), Options{
		NewTimestamper: timestampers(t, map[string]timestamp.Timestamper{primaryURL: tsa}),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = stamper.Stamp(ctx, payslip, StampOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Stamp() error = %v, want context.Canceled", err)
	}
	if tsa.Requests() != 0 {
		t.Errorf("requests = %d, want 0", tsa.Requests())
	}
}

func TestStampCanceledDuringDelay(t *testing.T) {
	flaky := &flakyTimestamper{failures: 10, err: timestamp.TransportError{Msg: "connection refused"}}
	env := testEnvironment(3)
	env.TSA.RetryDelayMs = int(time.Hour.Milliseconds())
	stamper, err := New(env, Options{
		NewTimestamper: timestampers(t, map[string]timestamp.Timestamper{primaryURL: flaky}),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	start := time.Now()
	_, err = stamper.Stamp(ctx, payslip, StampOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Stamp() error = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Stamp() returned after %v", elapsed)
	}
	if flaky.Calls() != 1 {
		t.Errorf("attempts = %d, want 1", flaky.Calls())
	}
}

func TestStampTotalTimeout(t *testing.T) {
	flaky := &flakyTimestamper{failures: 10, err: timestamp.TransportError{Msg: "connection refused"}}
	env := testEnvironment(3)
	env.TSA.RetryDelayMs = int(time.Hour.Milliseconds())
	env.TotalTimeoutMs = 50
	stamper, err := New(env, Options{
		NewTimestamper: timestampers(t, map[string]timestamp.Timestamper{primaryURL: flaky}),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = stamper.Stamp(context.Background(), payslip, StampOptions{})
	var transportErr timestamp.TransportError
	if !errors.As(err, &transportErr) || !strings.Contains(err.Error(), "total timeout") {
		t.Fatalf("Stamp() error = %v, want total timeout TransportError", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Stamp() error = %v, want context.DeadlineExceeded in chain", err)
	}
}

func TestStampDisabled(t *testing.T) {
	env := testEnvironment(3)
	env.Enabled = false
	tsa := newTestTSA(t)
	stamper, err := New(env, Options{
		NewTimestamper: timestampers(t, map[string]timestamp.Timestamper{primaryURL: tsa}),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = stamper.Stamp(context.Background(), payslip, StampOptions{})
	var stampErr *Error
	if !errors.As(err, &stampErr) || stampErr.Attempts != 0 || timestamp.CodeOf(err) != timestamp.CodeConfig {
		t.Fatalf("Stamp() error = %v, want config error without attempts", err)
	}
	if tsa.Requests() != 0 {
		t.Errorf("requests = %d, want 0", tsa.Requests())
	}
}

func TestNewInvalidEnvironment(t *testing.T) {
	env := testEnvironment(3)
	env.TSA.URL = "ftp://tsa.example.com"
	if _, err := New(env, Options{}); timestamp.CodeOf(err) != timestamp.CodeConfig {
		t.Fatalf("New() error = %v, want config error", err)
	}

	env = testEnvironment(3)
	env.TSA.MutualTLS = &config.MutualTLS{CertPath: "testdata/missing.p12", Password: "hunter2"}
	_, err := New(env, Options{})
	if timestamp.CodeOf(err) != timestamp.CodeConfig {
		t.Fatalf("New() error = %v, want config error", err)
	}
	if strings.Contains(err.Error(), "hunter2") {
		t.Errorf("New() error %q leaks the mTLS password", err)
	}
}

func TestStampHTTP(t *testing.T) {
	tsa := newTestTSA(t)
	tsa.HTTPFailures = 1
	tsa.Name = "Payroll Test TSA"
	server := httptest.NewServer(tsa)
	defer server.Close()

	env := testEnvironment(2)
	env.TSA.URL = server.URL
	var sink audit.Memory
	stamper, err := New(env, Options{Sink: &sink})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	token, err := stamper.Stamp(context.Background(), payslip, StampOptions{})
	if err != nil {
		t.Fatalf("Stamp() error = %v", err)
	}
	if tsa.Requests() != 2 {
		t.Errorf("requests = %d, want 2", tsa.Requests())
	}
	if token.TSAName != "CN=Payroll Test TSA" {
		t.Errorf("TSAName = %q", token.TSAName)
	}
	entries := sink.Entries()
	if len(entries) != 5 {
		t.Fatalf("audit entries = %v", sink.Actions())
	}
	if entries[1].ResponseStatusCode != http.StatusServiceUnavailable {
		t.Errorf("failure status = %d, want 503", entries[1].ResponseStatusCode)
	}
	if entries[4].TSAName != "CN=Payroll Test TSA" {
		t.Errorf("success TSAName = %q", entries[4].TSAName)
	}
}

type failingSink struct {
	calls int
	mu    sync.Mutex
}

func (s *failingSink) Record(context.Context, audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return errors.New("disk full")
}

func TestStampSinkFailureIgnored(t *testing.T) {
	sink := &failingSink{}
	stamper, err := New(testEnvironment(0), Options{
		Sink:           sink,
		NewTimestamper: timestampers(t, map[string]timestamp.Timestamper{primaryURL: newTestTSA(t)}),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := stamper.Stamp(context.Background(), payslip, StampOptions{}); err != nil {
		t.Fatalf("Stamp() error = %v", err)
	}
	if sink.calls != 2 {
		t.Errorf("sink calls = %d, want 2", sink.calls)
	}
}

func TestStampMock(t *testing.T) {
	env := config.NewEnvironment(config.Development)
	env.Mock = true
	var sink audit.Memory
	stamper, err := New(env, Options{
		Sink: &sink,
		NewTimestamper: func(config.Endpoint) (timestamp.Timestamper, error) {
			t.Fatal("mock environment built a timestamper")
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	token, err := stamper.Stamp(context.Background(), payslip, StampOptions{})
	if err != nil {
		t.Fatalf("Stamp() error = %v", err)
	}
	if token.SerialNumber != MockSerialNumber || token.TSAName != MockTSAName || token.PolicyOID != MockPolicyOID {
		t.Errorf("token = %+v, want synthetic values", token)
	}
	if string(token.Raw) != string(mockTokenRaw) {
		t.Errorf("Raw = %q", token.Raw)
	}

	subject := audit.Subject{DocumentID: "payslip-2026-03"}
	if ok, err := stamper.Verify(context.Background(), payslip, token, subject); err != nil || !ok {
		t.Errorf("Verify() = %v, %v, want true", ok, err)
	}
	tampered := append([]byte(nil), payslip...)
	tampered[len(tampered)-1] ^= 0x01
	if ok, err := stamper.Verify(context.Background(), tampered, token, subject); err != nil || ok {
		t.Errorf("Verify(tampered) = %v, %v, want false", ok, err)
	}

	wantActions := []audit.Action{audit.ActionRequest, audit.ActionSuccess, audit.ActionVerify, audit.ActionVerify}
	if got := sink.Actions(); !reflect.DeepEqual(got, wantActions) {
		t.Fatalf("audit actions = %v, want %v", got, wantActions)
	}
	entries := sink.Entries()
	if entries[0].TSAURL != MockTSAURL {
		t.Errorf("request TSAURL = %q, want %q", entries[0].TSAURL, MockTSAURL)
	}
	if entries[3].ErrorMessage == "" || entries[3].RequestHashHex == token.MessageImprintHex {
		t.Errorf("mismatch entry = %+v", entries[3])
	}
}

func TestVerifyNilToken(t *testing.T) {
	var sink audit.Memory
	env := config.NewEnvironment(config.Development)
	env.Mock = true
	stamper, err := New(env, Options{Sink: &sink})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := stamper.Verify(context.Background(), payslip, nil, audit.Subject{}); err == nil {
		t.Fatal("Verify(nil) error = nil, want error")
	}
	if entries := sink.Entries(); len(entries) != 1 || entries[0].ErrorMessage == "" || entries[0].ErrorCode != string(timestamp.CodeInvalidToken) {
		t.Errorf("audit entries = %+v", entries)
	}
}

func TestResponseStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "http status", err: timestamp.ProtocolError{HTTPStatus: 404}, want: 404},
		{name: "undecodable body", err: timestamp.ProtocolError{Msg: "malformed"}, want: 200},
		{name: "rejection", err: timestamp.RejectionError{Status: 2}, want: 200},
		{name: "token missing", err: timestamp.TokenMissingError{}, want: 200},
		{name: "transport", err: timestamp.TransportError{}, want: 0},
		{name: "canceled", err: context.Canceled, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := responseStatusCode(tt.err); got != tt.want {
				t.Errorf("responseStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
