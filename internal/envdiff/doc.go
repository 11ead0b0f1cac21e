// SPDX-License-Identifier: MPL-2.0

// Package envdiff records package bodies' environment mutations as reversible
// operations.
//
// An Environment holds the variables of one shell session. Packages mutate it
// through a Recorder, which appends an EnvOp for every change. Replaying a
// package's ops in reverse with Revert undoes exactly what that package did,
// provided every package activated later that touched the same variables was
// reverted first. ReplayAll puts those packages back afterwards.
//
// Path-list variables are reference counted per (variable, value): when two
// active packages prepend the same entry, the list keeps one physical
// occurrence that is removed only after both packages are unloaded.
//
// Bodies are shell scripts executed by ShellExecutor on the mvdan.cc/sh
// interpreter. The interpreter only sees the session's variables plus NAME,
// VERSION, VERSION_PARTS and the PLATFORM_* namespace. External programs,
// file writes and reads outside the definition directory are refused unless
// explicitly allowed.
package envdiff
