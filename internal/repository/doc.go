// SPDX-License-Identifier: MPL-2.0

// Package repository indexes package definitions by name and caches parsed
// definitions by path and content fingerprint.
//
// The repository never touches the filesystem itself: definitions come from a
// Source, which lists (name, path, fingerprint) entries and reads their text.
// internal/discovery provides the search-path Source used by the CLI;
// MemorySource serves tests and embedded callers.
package repository
