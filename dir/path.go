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

// Package dir implements the file layout of the payroll stamp client.
//
// The configuration is read from the user level directory first and the
// system level directory second:
//
//	$XDG_CONFIG_HOME/payroll-stamp/stamp.toml
//	/etc/payroll-stamp/stamp.toml
//
// The reference audit database lives in the user level directory.
package dir

import (
	"io/fs"
	"os"
	"path/filepath"
)

// The relative path to {USER_CONFIG_DIR | SYSTEM_CONFIG_DIR}
const (
	// PathConfigFile is the stamp client configuration file name.
	PathConfigFile = "stamp.toml"

	// PathAuditDB is the reference audit database file name.
	PathAuditDB = "audit.db"
)

// payrollStamp is the directory name for the client configurations.
const payrollStamp = "payroll-stamp"

var (
	// UserConfigDir is user level config directory.
	UserConfigDir string

	// SystemConfigDir is system level config directory.
	SystemConfigDir string
)

// for unit tests
var userConfigDir = os.UserConfigDir

func init() {
	loadUserPath()
}

// loadUserPath function defines UserConfigDir.
func loadUserPath() {
	// set user config
	userDir, err := userConfigDir()
	if err != nil {
		// fall back to the working directory
		userDir = ""
	}
	UserConfigDir = filepath.Join(userDir, payrollStamp)
}

// UserConfigDirPath returns the user level config directory path.
func UserConfigDirPath() string {
	if UserConfigDir == "" {
		loadUserPath()
	}
	return UserConfigDir
}

// ConfigFile returns the path of the configuration file. The user level
// file wins over the system level file. The user level path is returned if
// neither exists.
func ConfigFile() string {
	for _, fsys := range []SysFS{ConfigFS(), SystemConfigFS()} {
		if info, err := fs.Stat(fsys, PathConfigFile); err == nil && info.Mode().IsRegular() {
			path, _ := fsys.SysPath(PathConfigFile)
			return path
		}
	}
	path, _ := ConfigFS().SysPath(PathConfigFile)
	return path
}

// AuditDBPath returns the path of the reference audit database.
func AuditDBPath() string {
	path, _ := ConfigFS().SysPath(PathAuditDB)
	return path
}
