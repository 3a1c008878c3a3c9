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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	for _, name := range []string{"stamp.toml", "stamp.yaml", "stamp.json"} {
		t.Run(name, func(t *testing.T) {
			f, err := Load(filepath.Join("testdata", name))
			require.NoError(t, err)
			assert.Equal(t, filepath.Join("testdata", name), f.Path)
			assert.Equal(t, Production, f.DefaultEnvironment)
			require.Len(t, f.Environments, 3)

			prod, err := f.Environment("")
			require.NoError(t, err)
			assert.Equal(t, Production, prod.Name)
			assert.True(t, prod.Enabled)
			assert.False(t, prod.Mock)
			assert.Equal(t, 120000, prod.TotalTimeoutMs)
			assert.Equal(t, Endpoint{
				Name:          "digicert",
				URL:           "https://timestamp.digicert.com",
				TimeoutMs:     DefaultTimeoutMs,
				RetryCount:    DefaultRetryCount,
				RetryDelayMs:  DefaultRetryDelayMs,
				MutualTLS:     &MutualTLS{CertPath: "/etc/payroll-stamp/client.p12"},
				PolicyOID:     "2.16.840.1.114412.7.1",
				HashAlgorithm: DefaultHashAlgorithm,
			}, prod.TSA)
			require.Len(t, prod.Fallbacks, 2)
			assert.Equal(t, "sectigo", prod.Fallbacks[0].Name)
			assert.Equal(t, 0, prod.Fallbacks[0].RetryCount)
			assert.Equal(t, DefaultTimeoutMs, prod.Fallbacks[0].TimeoutMs)
			assert.Equal(t, DefaultRetryCount, prod.Fallbacks[1].RetryCount)
			assert.Nil(t, prod.Fallbacks[1].MutualTLS)
			require.NoError(t, prod.Validate())

			test, err := f.Environment(Test)
			require.NoError(t, err)
			assert.Equal(t, 5000, test.TSA.TimeoutMs)
			assert.Equal(t, 1, test.TSA.RetryCount)
			assert.Equal(t, 10, test.TSA.RetryDelayMs)
			assert.Empty(t, test.Fallbacks)

			dev, err := f.Environment(Development)
			require.NoError(t, err)
			assert.True(t, dev.Mock)
			require.NoError(t, dev.Validate())
		})
	}
}

func TestLoadDisabled(t *testing.T) {
	f, err := Load(filepath.Join("testdata", "disabled.toml"))
	require.NoError(t, err)
	env, err := f.Environment("")
	require.NoError(t, err)
	assert.False(t, env.Enabled)
}

func TestFallbackInheritsPrimaryTiming(t *testing.T) {
	data := []byte(`
[environments.test.tsa]
url = "https://a.example.com"
timeout_ms = 2000
retry_count = 5
retry_delay_ms = 50

[[environments.test.fallbacks]]
url = "https://b.example.com"
retry_delay_ms = 0
`)
	f, err := Parse(data, ".toml")
	require.NoError(t, err)
	env, err := f.Environment(Test)
	require.NoError(t, err)
	require.Len(t, env.Fallbacks, 1)
	fallback := env.Fallbacks[0]
	assert.Equal(t, 2000, fallback.TimeoutMs)
	assert.Equal(t, 5, fallback.RetryCount)
	assert.Equal(t, 0, fallback.RetryDelayMs)
	assert.Equal(t, "https://b.example.com", fallback.DisplayName())

	endpoints := env.Endpoints()
	require.Len(t, endpoints, 2)
	assert.Equal(t, "https://a.example.com", endpoints[0].URL)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))
		return path
	}

	t.Run("not exist", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "missing.toml"))
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})
	t.Run("directory", func(t *testing.T) {
		_, err := Load(dir)
		assert.Error(t, err)
	})
	t.Run("symlink", func(t *testing.T) {
		target := write("target.toml", "")
		link := filepath.Join(dir, "link.toml")
		if err := os.Symlink(target, link); err != nil {
			t.Skipf("symlinks not supported: %v", err)
		}
		_, err := Load(link)
		assert.ErrorContains(t, err, "symlinks are not supported")
	})
	t.Run("unknown extension", func(t *testing.T) {
		_, err := Load(write("stamp.ini", "a=b"))
		assert.ErrorContains(t, err, "unsupported configuration format")
	})
	for name, content := range map[string]string{
		"bad.toml": "default_environment = [",
		"bad.yaml": "environments: [",
		"bad.json": "{",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(write(name, content))
			assert.Error(t, err)
		})
	}
}

func TestEnvironmentNotFound(t *testing.T) {
	f, err := Load(filepath.Join("testdata", "stamp.toml"))
	require.NoError(t, err)

	_, err = f.Environment("staging")
	var notFound EnvironmentNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "staging", notFound.Name)
	assert.Equal(t, []string{"development", "production", "test"}, notFound.Known)
	assert.EqualError(t, err, `environment "staging" not found, known environments: development, production, test`)

	empty := &File{}
	_, err = empty.Environment("")
	assert.ErrorIs(t, err, ErrNoEnvironment)
}

func TestNewEnvironment(t *testing.T) {
	env := NewEnvironment(Test)
	assert.True(t, env.Enabled)
	assert.Equal(t, DefaultTimeoutMs, env.TSA.TimeoutMs)
	assert.Equal(t, DefaultHashAlgorithm, env.TSA.HashAlgorithm)
	assert.Equal(t, DefaultTimeoutMs, int(env.TSA.Timeout().Milliseconds()))
	assert.Equal(t, DefaultRetryDelayMs, int(env.TSA.RetryDelay().Milliseconds()))
}
