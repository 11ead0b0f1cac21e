// SPDX-License-Identifier: MPL-2.0

// Package platform describes the host setpkg runs on.
//
// Info is the platform namespace injected into package bodies as PLATFORM_*
// variables. The package also detects Flatpak/Snap sandboxes, which need a
// spawn prefix to launch host executables for "setpkg run", and flags
// package names that cannot exist as files on Windows.
package platform
