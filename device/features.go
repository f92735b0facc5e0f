package device

import (
	"strings"

	"golang.org/x/sys/cpu"
)

// HostFeatures lists the SIMD extensions of the host, e.g. "avx2,fma".
// It returns "generic" when none of the tracked extensions is present.
func HostFeatures() string {
	var f []string
	switch {
	case cpu.X86.HasAVX512F:
		f = append(f, "avx512f")
	case cpu.X86.HasAVX2:
		f = append(f, "avx2")
	case cpu.X86.HasAVX:
		f = append(f, "avx")
	case cpu.X86.HasSSE42:
		f = append(f, "sse4.2")
	}
	if cpu.X86.HasFMA {
		f = append(f, "fma")
	}
	if cpu.ARM64.HasASIMD {
		f = append(f, "asimd")
	}
	if cpu.ARM64.HasSVE {
		f = append(f, "sve")
	}
	if len(f) == 0 {
		return "generic"
	}
	return strings.Join(f, ",")
}
