// SPDX-License-Identifier: MPL-2.0

// Package shell turns environment deltas into code for the user's shell and
// writes the wrapper functions that evaluate it.
package shell
