// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors for the CLI boundary and a
// catalog of markdown help pages, one per error kind, rendered with glamour.
package issue
