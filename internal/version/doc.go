// SPDX-License-Identifier: MPL-2.0

// Package version resolves requested package versions against a definition:
// explicit request, then the caller-supplied override, then default-version,
// with alias chains followed to a literal version. It also selects the
// requires/subs rows whose version glob matches a resolved version.
package version
