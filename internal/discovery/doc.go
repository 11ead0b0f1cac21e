// SPDX-License-Identifier: MPL-2.0

// Package discovery locates package definition files on the search path.
//
// Search-path directories are scanned in order; the first definition of a
// name wins and later ones are reported as shadowed. Discovery implements
// repository.Source, so the resolver never touches the filesystem directly.
package discovery
