package simd

import (
	"os"
	"runtime"
	"strings"
)

// ISA represents a SIMD instruction set architecture.
type ISA uint8

const (
	// Generic represents a host without any of the detected extensions.
	Generic ISA = iota
	// NEON represents ARM64 NEON (ASIMD).
	NEON
	// SVE2 represents ARM64 SVE2.
	SVE2
	// AVX2 represents x86-64 AVX2 with FMA.
	AVX2
	// AVX512 represents x86-64 AVX-512 Foundation.
	AVX512
)

// String returns the string representation of an ISA.
func (i ISA) String() string {
	switch i {
	case Generic:
		return "generic"
	case NEON:
		return "neon"
	case SVE2:
		return "sve2"
	case AVX2:
		return "avx2"
	case AVX512:
		return "avx512"
	default:
		return "unknown"
	}
}

// ParseISA parses a string into an ISA value.
func ParseISA(s string) (ISA, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "generic":
		return Generic, true
	case "neon":
		return NEON, true
	case "sve2":
		return SVE2, true
	case "avx2":
		return AVX2, true
	case "avx512":
		return AVX512, true
	default:
		return Generic, false
	}
}

// Set once from init; never written afterwards.
var (
	activeISA   ISA
	hasOverride bool

	hasASIMD   bool
	hasSVE2    bool
	hasAVX2    bool
	hasAVX512F bool
)

// initCapabilities is called from the platform-specific init functions
// after CPU features are detected.
//
// PQCODEC_SIMD replaces the reported ISA, for example to pin the value that
// shows up in logs and stats. It only changes what ActiveISA and GetInfo
// report: every kernel runs the same portable code on every ISA.
func initCapabilities() {
	if v, ok := os.LookupEnv("PQCODEC_SIMD"); ok {
		if isa, ok := ParseISA(v); ok {
			activeISA = isa
			hasOverride = true
			return
		}
	}

	switch {
	case hasAVX512F:
		activeISA = AVX512
	case hasAVX2:
		activeISA = AVX2
	case hasSVE2:
		activeISA = SVE2
	case hasASIMD:
		activeISA = NEON
	default:
		activeISA = Generic
	}
}

// ActiveISA returns the instruction set reported for this host. Kernel
// selection does not depend on it.
func ActiveISA() ISA {
	return activeISA
}

// Info describes the detected CPU capabilities.
type Info struct {
	Arch       string
	ISA        ISA
	Overridden bool
	Features   []string
}

// GetInfo returns the detected CPU capabilities.
func GetInfo() Info {
	var features []string
	if hasASIMD {
		features = append(features, "asimd")
	}
	if hasSVE2 {
		features = append(features, "sve2")
	}
	if hasAVX2 {
		features = append(features, "avx2", "fma")
	}
	if hasAVX512F {
		features = append(features, "avx512f")
	}
	return Info{
		Arch:       runtime.GOARCH,
		ISA:        activeISA,
		Overridden: hasOverride,
		Features:   features,
	}
}
