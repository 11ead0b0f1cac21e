// SPDX-License-Identifier: MPL-2.0

// Package testutil holds helpers shared by setpkg's package tests.
//
// The Must* helpers fail the test on error so call sites stay flat. WriteTree
// lays out search-path directories of package definitions, and FakeClock pins
// timestamps written to session records.
package testutil
