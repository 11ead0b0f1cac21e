// SPDX-License-Identifier: MPL-2.0

package platform

import "os"

const (
	// SandboxNone indicates no sandbox was detected.
	SandboxNone SandboxType = ""
	// SandboxFlatpak indicates a Flatpak sandbox.
	SandboxFlatpak SandboxType = "flatpak"
	// SandboxSnap indicates a Snap sandbox.
	SandboxSnap SandboxType = "snap"
)

// SandboxType identifies the application sandbox setpkg runs in, if any.
type SandboxType string

// SpawnPrefix returns the command words that must precede a host executable
// when launching it from inside the sandbox. It is nil outside sandboxes.
func (st SandboxType) SpawnPrefix() []string {
	switch st {
	case SandboxFlatpak:
		return []string{"flatpak-spawn", "--host"}
	case SandboxSnap:
		return []string{"snap", "run", "--shell"}
	default:
		return nil
	}
}

// detectSandboxFrom checks for /.flatpak-info first, then SNAP_NAME.
func detectSandboxFrom(lookupEnv func(string) string, stat func(string) error) SandboxType {
	if err := stat("/.flatpak-info"); err == nil {
		return SandboxFlatpak
	}
	if lookupEnv("SNAP_NAME") != "" {
		return SandboxSnap
	}
	return SandboxNone
}

func statFile(path string) error {
	_, err := os.Stat(path)
	return err
}
