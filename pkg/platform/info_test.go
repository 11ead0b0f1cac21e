// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"context"
	"errors"
	"os"
	"runtime"
	"slices"
	"testing"

	"github.com/shirou/gopsutil/v4/host"
)

func noEnv(string) string      { return "" }
func missingFile(string) error { return os.ErrNotExist }

func TestInfoFrom(t *testing.T) {
	t.Parallel()

	hostInfo := func(context.Context) (*host.InfoStat, error) {
		return &host.InfoStat{
			Hostname:        "render01",
			Platform:        "Ubuntu",
			PlatformFamily:  "Debian",
			PlatformVersion: "24.04",
			KernelVersion:   "6.8.0",
		}, nil
	}

	info := infoFrom(context.Background(), hostInfo, noEnv, missingFile)
	if info.System != runtime.GOOS || info.Arch != runtime.GOARCH {
		t.Errorf("System/Arch = %s/%s", info.System, info.Arch)
	}
	if info.Distribution != "ubuntu" || info.Family != "debian" {
		t.Errorf("Distribution/Family = %s/%s, want lowercased", info.Distribution, info.Family)
	}

	vars := info.Vars()
	if vars["PLATFORM_HOSTNAME"] != "render01" || vars["PLATFORM_RELEASE"] != "24.04" {
		t.Errorf("Vars() = %v", vars)
	}
	if vars["PLATFORM_KERNEL"] != "6.8.0" {
		t.Errorf("PLATFORM_KERNEL = %q", vars["PLATFORM_KERNEL"])
	}
}

func TestInfoFrom_HostInfoFailure(t *testing.T) {
	t.Parallel()

	failing := func(context.Context) (*host.InfoStat, error) {
		return nil, errors.New("no /proc")
	}
	info := infoFrom(context.Background(), failing, noEnv, missingFile)
	if info.System != runtime.GOOS {
		t.Errorf("System = %q", info.System)
	}
	if info.Kernel != "" {
		t.Errorf("Kernel = %q, want empty", info.Kernel)
	}
}

func TestDetectSandboxFrom(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		env    map[string]string
		files  []string
		want   SandboxType
		prefix []string
	}{
		{name: "none", want: SandboxNone},
		{name: "flatpak", files: []string{"/.flatpak-info"}, want: SandboxFlatpak, prefix: []string{"flatpak-spawn", "--host"}},
		{name: "snap", env: map[string]string{"SNAP_NAME": "setpkg"}, want: SandboxSnap, prefix: []string{"snap", "run", "--shell"}},
		{
			name:   "flatpak wins",
			env:    map[string]string{"SNAP_NAME": "setpkg"},
			files:  []string{"/.flatpak-info"},
			want:   SandboxFlatpak,
			prefix: []string{"flatpak-spawn", "--host"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			lookup := func(k string) string { return tt.env[k] }
			stat := func(p string) error {
				if slices.Contains(tt.files, p) {
					return nil
				}
				return os.ErrNotExist
			}
			got := detectSandboxFrom(lookup, stat)
			if got != tt.want {
				t.Errorf("detectSandboxFrom() = %q, want %q", got, tt.want)
			}
			if !slices.Equal(got.SpawnPrefix(), tt.prefix) {
				t.Errorf("SpawnPrefix() = %v, want %v", got.SpawnPrefix(), tt.prefix)
			}
		})
	}
}

func TestIsWindowsReservedName(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"con":      true,
		"NUL.pkg":  true,
		"com9":     true,
		"lpt1.txt": true,
		"com10":    false,
		"nuke":     false,
		"confile":  false,
		"":         false,
	}
	for in, want := range tests {
		if got := IsWindowsReservedName(in); got != want {
			t.Errorf("IsWindowsReservedName(%q) = %v, want %v", in, got, want)
		}
	}
}
