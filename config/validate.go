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

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/payrollkit/stamp/crypto/timestamp"
	asn1util "github.com/payrollkit/stamp/internal/encoding/asn1"
)

// Validate checks the environment for settings the stamper cannot work
// with. Whether the environment is enabled is checked by the stamper.
func (e Environment) Validate() error {
	if e.TotalTimeoutMs < 0 {
		return configError("total_timeout_ms must not be negative, got %d", e.TotalTimeoutMs)
	}
	if e.Mock {
		if e.Name == Production {
			return configError("mock time-stamping is not allowed in the %s environment", Production)
		}
		return nil
	}
	if e.TSA.URL == "" {
		return configError("environment %q has no TSA URL", e.Name)
	}
	if err := e.TSA.validate("tsa"); err != nil {
		return err
	}
	for i, fallback := range e.Fallbacks {
		if err := fallback.validate(fmt.Sprintf("fallbacks[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

func (e Endpoint) validate(field string) error {
	u, err := url.Parse(e.URL)
	if err != nil {
		return timestamp.ConfigError{Msg: field + ": invalid url", Detail: err}
	}
	if !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return configError("%s: url %q must be an absolute http or https URL", field, e.URL)
	}
	if e.TimeoutMs <= 0 {
		return configError("%s: timeout_ms must be positive, got %d", field, e.TimeoutMs)
	}
	if e.RetryCount < 0 {
		return configError("%s: retry_count must not be negative, got %d", field, e.RetryCount)
	}
	if e.RetryDelayMs < 0 {
		return configError("%s: retry_delay_ms must not be negative, got %d", field, e.RetryDelayMs)
	}
	if !strings.EqualFold(e.HashAlgorithm, DefaultHashAlgorithm) {
		return configError("%s: unsupported hash_algorithm %q, only %s is supported", field, e.HashAlgorithm, DefaultHashAlgorithm)
	}
	if e.PolicyOID != "" {
		if _, err := asn1util.ParseOID(e.PolicyOID); err != nil {
			return timestamp.ConfigError{Msg: field + ": invalid policy_oid", Detail: err}
		}
	}
	if m := e.MutualTLS; m != nil && m.CertPath == "" && m.Password != "" {
		return configError("%s: mtls password set without cert_path", field)
	}
	return nil
}

func configError(format string, a ...any) error {
	return timestamp.ConfigError{Msg: fmt.Sprintf(format, a...)}
}
