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
	"strconv"

	"github.com/payrollkit/stamp/crypto/timestamp"
)

// Environment variables read by ApplyEnvOverrides.
const (
	EnvTSAURL       = "STAMP_TSA_URL"
	EnvMTLSCert     = "STAMP_MTLS_CERT"
	EnvMTLSPassword = "STAMP_MTLS_PASSWORD"
	EnvMock         = "STAMP_MOCK"
)

// ApplyEnvOverrides returns a copy of e with the primary TSA settings
// replaced by the process environment. lookup is usually os.LookupEnv.
// It is meant to be called once at start-up so that secrets stay out of
// configuration files.
func (e Environment) ApplyEnvOverrides(lookup func(string) (string, bool)) (Environment, error) {
	if v, ok := lookup(EnvTSAURL); ok && v != "" {
		e.TSA.URL = v
	}
	if v, ok := lookup(EnvMTLSCert); ok && v != "" {
		e.TSA.MutualTLS = e.TSA.mutualTLS()
		e.TSA.MutualTLS.CertPath = v
	}
	if v, ok := lookup(EnvMTLSPassword); ok && v != "" {
		e.TSA.MutualTLS = e.TSA.mutualTLS()
		e.TSA.MutualTLS.Password = v
	}
	if v, ok := lookup(EnvMock); ok && v != "" {
		mock, err := strconv.ParseBool(v)
		if err != nil {
			return Environment{}, timestamp.ConfigError{Msg: fmt.Sprintf("invalid %s value %q", EnvMock, v), Detail: err}
		}
		e.Mock = mock
	}
	return e, nil
}

// mutualTLS returns a copy of the mTLS settings so that overrides never
// modify a shared value.
func (e Endpoint) mutualTLS() *MutualTLS {
	if e.MutualTLS == nil {
		return &MutualTLS{}
	}
	m := *e.MutualTLS
	return &m
}
