// SPDX-License-Identifier: MPL-2.0

// Package pkgfile parses setpkg package definition files.
//
// A definition is a text file named <name>.pkg. It opens with an ini header
// enclosed in triple quotes and continues with a shell body:
//
//	#!/bin/sh
//	'''
//	[main]
//	executable-path = /usr/local/nuke/$VERSION/Nuke
//	version-regex = (\d+)\.(\d+)v(\d+)
//	default-version = 6.0
//
//	[versions]
//	6.0v6
//	6.0v1
//
//	[aliases]
//	6.0 = 6.0v6
//
//	[requires]
//	* = python-2.7
//	'''
//	env_prepend PATH "/usr/local/nuke/$VERSION"
//
// Only blank lines and comment lines may precede the header. Parse validates
// everything it can without executing the body and returns a strongly typed
// Definition; no string-keyed lookups are needed afterwards.
package pkgfile
