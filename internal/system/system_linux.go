// Package system checks properties of the system that the enclave runs on.
package system

import (
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

const wantRNG = "nsm-hwrng"

// The RNG is exposed under either path, depending on the kernel.
var pathsToRNG = []string{
	"/sys/class/misc/hw_random/rng_current",
	"/sys/devices/virtual/misc/hw_random/rng_current",
}

// HasSecureRNG checks if the enclave is configured to use the Nitro hardware
// RNG. This was suggested in:
// https://blog.trailofbits.com/2024/09/24/notes-on-aws-nitro-enclaves-attack-surface/
func HasSecureRNG() bool {
	return hasSecureRNG(pathsToRNG)
}

func hasSecureRNG(paths []string) bool {
	for _, path := range paths {
		haveRNG, err := os.ReadFile(path)
		if err != nil {
			log.Debug().Str("path", path).Err(err).Msg("Failed to read RNG.")
			continue
		}
		rng := strings.TrimSpace(string(haveRNG))
		log.Info().Str("path", path).Str("rng", rng).Msg("Found RNG.")
		if rng == wantRNG {
			return true
		}
	}
	return false
}

// HasSecureKernelVersion checks if the system is running a kernel version that
// includes important security updates. This was suggested in:
// https://blog.trailofbits.com/2024/09/24/notes-on-aws-nitro-enclaves-attack-surface/
func HasSecureKernelVersion() bool {
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		log.Error().Err(err).Msg("Error calling uname system call.")
		return false
	}
	return hasSecureKernelVersion(unix.ByteSliceToString(uname.Release[:]))
}

func hasSecureKernelVersion(release string) bool {
	// Store major, minor, and patch version in an array.
	var version [3]int
	var digit, offset int
	// Parse the kernel version, which is of the form "5.17.12-foo".  The
	// sentinel at the end flushes the last number.
	for _, char := range release + "\x00" {
		if '0' <= char && char <= '9' {
			digit = digit*10 + int(char-'0')
			continue
		}
		version[offset] = digit
		digit = 0
		offset++
		if offset >= len(version) {
			break
		}
	}
	log.Info().Msgf("Have kernel version: %d.%d.%d", version[0], version[1], version[2])

	// We are looking for kernel version 5.17.12 or later.
	minVersion := [3]int{5, 17, 12}
	for i := range version {
		if version[i] < minVersion[i] {
			return false
		}
		if version[i] > minVersion[i] {
			return true
		}
	}
	return true
}
