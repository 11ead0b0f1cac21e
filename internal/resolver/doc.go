// SPDX-License-Identifier: MPL-2.0

// Package resolver plans and applies package activation and deactivation on
// a session.
//
// Set resolves each requested package, loads its requirements first, runs
// its body and then loads its sub-packages. A package that is already
// active is kept when nothing changed, and unloaded together with everything
// that depends on it when its version or definition changed; the dependents
// are loaded again afterwards. Unset removes a package, its dependents and
// the sub-packages nothing else refers to, always in reverse activation
// order. Every command is atomic: on error the session and environment are
// restored to their state before the call.
package resolver
