package dispatch

import (
	"fmt"
	"strings"
)

// Target selects how a Dispatcher executes kernels.
type Target uint8

const (
	HostTask Target = iota
	HostNest
	HostBatch
	Devices
)

var targetNames = [...]string{"HostTask", "HostNest", "HostBatch", "Devices"}

func (t Target) String() string {
	if int(t) < len(targetNames) {
		return targetNames[t]
	}
	return fmt.Sprintf("Target(%d)", t)
}

// Valid reports whether t is one of the four targets.
func (t Target) Valid() bool { return t <= Devices }

// ParseTarget accepts the target names case-insensitively, with or without
// the "Host" prefix: "HostTask", "task", "nest", "batch", "devices".
//
// Errors:
//   - ErrInvalidTarget.
func ParseTarget(s string) (Target, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.TrimPrefix(key, "host")
	switch key {
	case "task":
		return HostTask, nil
	case "nest":
		return HostNest, nil
	case "batch":
		return HostBatch, nil
	case "devices", "device":
		return Devices, nil
	}
	return 0, fmt.Errorf("ParseTarget(%q): %w", s, ErrInvalidTarget)
}
