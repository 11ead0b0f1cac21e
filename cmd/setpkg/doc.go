// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the setpkg CLI.
//
// set and unset print shell code on stdout for the calling shell to
// evaluate, and status lines on stderr. The wrappers printed by `setpkg
// init` do the evaluation.
package cmd
