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

// Package config loads the time-stamping configuration of the payroll
// stamp client. A configuration file names several environments; exactly
// one of them is active per process.
package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/payrollkit/stamp/internal/file"
	"gopkg.in/yaml.v3"
)

// Environment names.
const (
	Development = "development"
	Test        = "test"
	Production  = "production"
)

// Defaults applied to endpoints that leave a field unset.
const (
	DefaultTimeoutMs    = 30000
	DefaultRetryCount   = 3
	DefaultRetryDelayMs = 1000

	// DefaultHashAlgorithm is the only supported message imprint algorithm.
	DefaultHashAlgorithm = "SHA-256"
)

// MutualTLS holds the client certificate presented to a TSA.
type MutualTLS struct {
	// CertPath is a PKCS#12 bundle or a PEM file with certificate and key.
	CertPath string `toml:"cert_path" yaml:"cert_path" json:"cert_path"`

	// Password unlocks a PKCS#12 bundle.
	Password string `toml:"password" yaml:"password" json:"password"`
}

// Endpoint configures one TSA.
type Endpoint struct {
	Name          string
	URL           string
	TimeoutMs     int
	RetryCount    int
	RetryDelayMs  int
	MutualTLS     *MutualTLS
	PolicyOID     string
	HashAlgorithm string
}

// Timeout returns the per-request timeout.
func (e Endpoint) Timeout() time.Duration {
	return time.Duration(e.TimeoutMs) * time.Millisecond
}

// RetryDelay returns the base delay between attempts.
func (e Endpoint) RetryDelay() time.Duration {
	return time.Duration(e.RetryDelayMs) * time.Millisecond
}

// DisplayName returns the endpoint name, or its URL if unnamed.
func (e Endpoint) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.URL
}

// Environment is the time-stamping configuration of one deployment
// environment.
type Environment struct {
	Name    string
	Enabled bool
	Mock    bool

	// TotalTimeoutMs bounds a whole stamping operation including retries
	// and fallbacks. Zero means no bound.
	TotalTimeoutMs int

	TSA       Endpoint
	Fallbacks []Endpoint
}

// TotalTimeout returns the bound of a whole stamping operation.
func (e Environment) TotalTimeout() time.Duration {
	return time.Duration(e.TotalTimeoutMs) * time.Millisecond
}

// Endpoints returns the primary TSA followed by the fallbacks.
func (e Environment) Endpoints() []Endpoint {
	endpoints := make([]Endpoint, 0, 1+len(e.Fallbacks))
	endpoints = append(endpoints, e.TSA)
	return append(endpoints, e.Fallbacks...)
}

// File reflects a configuration file.
type File struct {
	// Path is the file the configuration was loaded from.
	Path string

	DefaultEnvironment string
	Environments       map[string]Environment
}

// Environment returns the named environment. The default environment is
// returned if name is empty.
func (f *File) Environment(name string) (Environment, error) {
	if name == "" {
		name = f.DefaultEnvironment
	}
	if name == "" {
		return Environment{}, ErrNoEnvironment
	}
	env, ok := f.Environments[name]
	if !ok {
		return Environment{}, EnvironmentNotFoundError{Name: name, Known: f.names()}
	}
	return env, nil
}

func (f *File) names() []string {
	names := make([]string, 0, len(f.Environments))
	for name := range f.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewEnvironment returns an enabled environment with default endpoint
// settings and no TSA URL.
func NewEnvironment(name string) Environment {
	env := Environment{
		Name:    name,
		Enabled: true,
	}
	env.TSA = fileEndpoint{}.endpoint(nil)
	return env
}

// Load reads the configuration from path. The format follows the file
// extension: .toml, .yaml, .yml or .json.
func Load(path string) (*File, error) {
	data, err := file.ReadRegular(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.Path = path
	return f, nil
}

// Parse decodes a configuration in the format named by ext.
func Parse(data []byte, ext string) (*File, error) {
	var raw fileConfig
	switch strings.ToLower(ext) {
	case ".toml":
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported configuration format %q", ext)
	}
	return raw.file(), nil
}

// fileConfig is the on-disk form of File. Pointer fields distinguish unset
// values from zero values.
type fileConfig struct {
	DefaultEnvironment string                     `toml:"default_environment" yaml:"default_environment" json:"default_environment"`
	Environments       map[string]fileEnvironment `toml:"environments" yaml:"environments" json:"environments"`
}

type fileEnvironment struct {
	Enabled        *bool          `toml:"enabled" yaml:"enabled" json:"enabled"`
	Mock           bool           `toml:"mock" yaml:"mock" json:"mock"`
	TotalTimeoutMs int            `toml:"total_timeout_ms" yaml:"total_timeout_ms" json:"total_timeout_ms"`
	TSA            fileEndpoint   `toml:"tsa" yaml:"tsa" json:"tsa"`
	Fallbacks      []fileEndpoint `toml:"fallbacks" yaml:"fallbacks" json:"fallbacks"`
}

type fileEndpoint struct {
	Name          string     `toml:"name" yaml:"name" json:"name"`
	URL           string     `toml:"url" yaml:"url" json:"url"`
	TimeoutMs     *int       `toml:"timeout_ms" yaml:"timeout_ms" json:"timeout_ms"`
	RetryCount    *int       `toml:"retry_count" yaml:"retry_count" json:"retry_count"`
	RetryDelayMs  *int       `toml:"retry_delay_ms" yaml:"retry_delay_ms" json:"retry_delay_ms"`
	MutualTLS     *MutualTLS `toml:"mtls" yaml:"mtls" json:"mtls"`
	PolicyOID     string     `toml:"policy_oid" yaml:"policy_oid" json:"policy_oid"`
	HashAlgorithm string     `toml:"hash_algorithm" yaml:"hash_algorithm" json:"hash_algorithm"`
}

func (c fileConfig) file() *File {
	f := &File{
		DefaultEnvironment: c.DefaultEnvironment,
		Environments:       make(map[string]Environment, len(c.Environments)),
	}
	for name, raw := range c.Environments {
		env := Environment{
			Name:           name,
			Enabled:        raw.Enabled == nil || *raw.Enabled,
			Mock:           raw.Mock,
			TotalTimeoutMs: raw.TotalTimeoutMs,
			TSA:            raw.TSA.endpoint(nil),
		}
		for _, fallback := range raw.Fallbacks {
			env.Fallbacks = append(env.Fallbacks, fallback.endpoint(&env.TSA))
		}
		f.Environments[name] = env
	}
	return f
}

// endpoint applies defaults. Unset timing fields of a fallback are
// inherited from the primary endpoint.
func (e fileEndpoint) endpoint(primary *Endpoint) Endpoint {
	ep := Endpoint{
		Name:          e.Name,
		URL:           e.URL,
		TimeoutMs:     DefaultTimeoutMs,
		RetryCount:    DefaultRetryCount,
		RetryDelayMs:  DefaultRetryDelayMs,
		MutualTLS:     e.MutualTLS,
		PolicyOID:     e.PolicyOID,
		HashAlgorithm: e.HashAlgorithm,
	}
	if primary != nil {
		ep.TimeoutMs = primary.TimeoutMs
		ep.RetryCount = primary.RetryCount
		ep.RetryDelayMs = primary.RetryDelayMs
	}
	if e.TimeoutMs != nil {
		ep.TimeoutMs = *e.TimeoutMs
	}
	if e.RetryCount != nil {
		ep.RetryCount = *e.RetryCount
	}
	if e.RetryDelayMs != nil {
		ep.RetryDelayMs = *e.RetryDelayMs
	}
	if ep.HashAlgorithm == "" {
		ep.HashAlgorithm = DefaultHashAlgorithm
	}
	return ep
}
