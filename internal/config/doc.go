// SPDX-License-Identifier: MPL-2.0

// Package config loads setpkg's settings with Viper, using CUE as the file
// format.
//
// The file is config.cue in the setpkg configuration directory
// ($XDG_CONFIG_HOME/setpkg on Linux, ~/Library/Application Support/setpkg on
// macOS, %APPDATA%\setpkg on Windows). It is validated against the embedded
// schema in config_schema.cue. Every key can be overridden from the
// environment with the SETPKG_ prefix, dots replaced by underscores
// (session.backend becomes SETPKG_SESSION_BACKEND).
package config
