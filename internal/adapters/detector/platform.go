// Package detector reports host facts used to build the invocation snapshot.
package detector

import (
	"runtime"
	"strconv"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sys/unix"
)

var _ ports.PlatformDetector = (*Host)(nil)

// Host detects the running platform with uname(2).
type Host struct {
	goos  string
	uname func(*unix.Utsname) error
}

// NewHost creates a detector for the running host.
func NewHost() *Host {
	return &Host{goos: runtime.GOOS, uname: unix.Uname}
}

// Detect returns the operating system, its product version and the word size.
// On darwin the kernel release is translated to the macOS version, so a
// Darwin 12 kernel reports 10.8.
func (h *Host) Detect() (domain.Platform, error) {
	var u unix.Utsname
	if err := h.uname(&u); err != nil {
		return domain.Platform{}, zerr.Wrap(err, "failed to read uname")
	}

	release := unix.ByteSliceToString(u.Release[:])
	machine := unix.ByteSliceToString(u.Machine[:])

	version := releaseVersion(release)
	if h.goos == "darwin" {
		version = darwinToMacOS(version)
	}

	return domain.Platform{
		OS:      h.goos,
		Version: version,
		Bits:    machineBits(machine),
	}, nil
}

// releaseVersion keeps the leading dotted numeric part of a kernel release.
func releaseVersion(release string) string {
	end := 0
	for end < len(release) && (release[end] == '.' || (release[end] >= '0' && release[end] <= '9')) {
		end++
	}
	return strings.Trim(release[:end], ".")
}

// darwinToMacOS maps a Darwin kernel version to the macOS product version.
// Darwin 9 through 19 are 10.5 through 10.15; Darwin 20 onwards is macOS 11 onwards.
func darwinToMacOS(kernel string) string {
	majorStr, rest, _ := strings.Cut(kernel, ".")
	major, err := strconv.Atoi(majorStr)
	if err != nil {
		return kernel
	}
	minor, _, _ := strings.Cut(rest, ".")

	if major < 20 {
		v := "10." + strconv.Itoa(major-4)
		if minor != "" && minor != "0" {
			v += "." + minor
		}
		return v
	}
	v := strconv.Itoa(major - 9)
	if minor != "" && minor != "0" {
		v += "." + minor
	}
	return v
}

func machineBits(machine string) int {
	switch machine {
	case "i386", "i486", "i586", "i686", "armv6l", "armv7l", "arm", "ppc", "mips":
		return 32
	case "":
		return strconv.IntSize
	default:
		return 64
	}
}
