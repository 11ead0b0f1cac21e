// SPDX-License-Identifier: MPL-2.0

package discovery

const (
	// SeverityWarning indicates a recoverable discovery warning.
	SeverityWarning Severity = "warning"
	// SeverityError indicates a non-fatal discovery error.
	SeverityError Severity = "error"

	// CodeSearchPathMissing is reported for search-path entries that do not exist.
	CodeSearchPathMissing = "search_path_missing"
	// CodeShadowed is reported when a definition is hidden by an earlier one.
	CodeShadowed = "definition_shadowed"
	// CodeUnreadable is reported for definition files that cannot be read.
	CodeUnreadable = "definition_unreadable"
	// CodeReservedName is reported for package names Windows cannot store.
	CodeReservedName = "reserved_name"
)

type (
	// Severity represents discovery diagnostic severity.
	Severity string

	// Diagnostic is a structured, non-fatal discovery finding returned to the
	// caller instead of being written to stderr.
	Diagnostic struct {
		Severity Severity
		// Code is a machine-readable identifier such as "definition_shadowed".
		Code    string
		Message string
		Path    string
		Cause   error
	}
)
