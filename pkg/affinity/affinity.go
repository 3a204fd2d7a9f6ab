// Package affinity pins the calling goroutine to one OS thread and that
// thread to one logical CPU. Measurement quality improves when the
// harness doesn't migrate mid-run, so callers pin before driving any
// probes. The runtime.LockOSThread + unix.SchedSetaffinity pairing
// follows the same shape used elsewhere for thread-to-resource pinning.
package affinity

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Pin locks the calling goroutine to its current OS thread and restricts
// that thread to cpuID. It returns an unpin func that restores the
// thread's affinity to all online CPUs and releases the OS-thread lock;
// callers should defer it immediately.
//
// cpuID < 0 skips affinity entirely and only locks the OS thread, useful
// when the caller wants thread stability (stable TSC, stable TLS) without
// committing to one particular core.
func Pin(cpuID int) (unpin func(), err error) {
	runtime.LockOSThread()

	if cpuID < 0 {
		return runtime.UnlockOSThread, nil
	}

	var mask unix.CPUSet
	mask.Set(cpuID)
	if err := unix.SchedSetaffinity(0, &mask); err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("affinity: set CPU %d: %w", cpuID, err)
	}

	return func() {
		var all unix.CPUSet
		n := runtime.NumCPU()
		for i := 0; i < n; i++ {
			all.Set(i)
		}
		_ = unix.SchedSetaffinity(0, &all)
		runtime.UnlockOSThread()
	}, nil
}

// Available reports whether cpuID names an online logical CPU, so
// callers can validate a --cpu flag before committing to Pin.
func Available(cpuID int) bool {
	return cpuID >= 0 && cpuID < runtime.NumCPU()
}
