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
	"fmt"
	"strings"
)

// ErrNoEnvironment is used when no environment is selected and the file
// names no default environment.
var ErrNoEnvironment = errors.New("no environment selected and no default_environment configured")

// EnvironmentNotFoundError is used when the selected environment is not in
// the configuration file.
type EnvironmentNotFoundError struct {
	Name  string
	Known []string
}

// Error returns the error message.
func (e EnvironmentNotFoundError) Error() string {
	msg := fmt.Sprintf("environment %q not found", e.Name)
	if len(e.Known) > 0 {
		msg += ", known environments: " + strings.Join(e.Known, ", ")
	}
	return msg
}
