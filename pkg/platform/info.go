// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v4/host"
)

// Info is the platform namespace visible to package bodies.
type Info struct {
	// System is runtime.GOOS ("linux", "darwin", "windows", ...).
	System string `json:"system" toml:"system"`
	// Arch is runtime.GOARCH.
	Arch string `json:"arch" toml:"arch"`
	// Family is the OS family reported by the host ("debian", "rhel", ...).
	Family string `json:"family,omitempty" toml:"family,omitempty"`
	// Distribution is the OS or distribution name ("ubuntu", "darwin", ...).
	Distribution string `json:"distribution,omitempty" toml:"distribution,omitempty"`
	// Release is the distribution version.
	Release string `json:"release,omitempty" toml:"release,omitempty"`
	// Kernel is the kernel version.
	Kernel   string      `json:"kernel,omitempty" toml:"kernel,omitempty"`
	Hostname string      `json:"hostname,omitempty" toml:"hostname,omitempty"`
	Sandbox  SandboxType `json:"sandbox,omitempty" toml:"sandbox,omitempty"`
}

// Host information does not change while the process runs.
var detectInfo = sync.OnceValue(func() Info {
	return infoFrom(context.Background(), host.InfoWithContext, os.Getenv, statFile)
})

// Detect returns the cached description of the current host.
func Detect() Info {
	return detectInfo()
}

// Vars renders i as the PLATFORM_* variables given to package bodies.
func (i Info) Vars() map[string]string {
	return map[string]string{
		"PLATFORM_SYSTEM":       i.System,
		"PLATFORM_ARCH":         i.Arch,
		"PLATFORM_FAMILY":       i.Family,
		"PLATFORM_DISTRIBUTION": i.Distribution,
		"PLATFORM_RELEASE":      i.Release,
		"PLATFORM_KERNEL":       i.Kernel,
		"PLATFORM_HOSTNAME":     i.Hostname,
	}
}

// IsWindows reports whether the host is Windows.
func (i Info) IsWindows() bool { return i.System == Windows }

// IsDarwin reports whether the host is macOS.
func (i Info) IsDarwin() bool { return i.System == Darwin }

// IsLinux reports whether the host is Linux.
func (i Info) IsLinux() bool { return i.System == Linux }

func infoFrom(
	ctx context.Context,
	hostInfo func(context.Context) (*host.InfoStat, error),
	lookupEnv func(string) string,
	stat func(string) error,
) Info {
	info := Info{
		System:  runtime.GOOS,
		Arch:    runtime.GOARCH,
		Sandbox: detectSandboxFrom(lookupEnv, stat),
	}
	hi, err := hostInfo(ctx)
	if err != nil {
		slog.Debug("host info unavailable", "error", err)
		if h, err := os.Hostname(); err == nil {
			info.Hostname = h
		}
		return info
	}
	info.Family = strings.ToLower(hi.PlatformFamily)
	info.Distribution = strings.ToLower(hi.Platform)
	info.Release = hi.PlatformVersion
	info.Kernel = hi.KernelVersion
	info.Hostname = hi.Hostname
	return info
}
