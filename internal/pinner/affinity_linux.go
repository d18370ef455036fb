//go:build linux

package pinner

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// cpuSetSize is CPU_SETSIZE, the number of CPUs a unix.CPUSet can hold.
const cpuSetSize = 1024

// SetAffinity restricts pid (0 for the calling thread) to cpus.
func SetAffinity(pid int, cpus []int) error {
	if len(cpus) == 0 {
		return ErrEmptyPinning
	}
	var set unix.CPUSet
	set.Zero()
	for _, cpu := range cpus {
		if cpu < 0 || cpu >= cpuSetSize {
			return fmt.Errorf("CPU %d out of range", cpu)
		}
		set.Set(cpu)
	}
	return unix.SchedSetaffinity(pid, &set)
}

// GetAffinity returns the CPUs pid may run on, ascending.
func GetAffinity(pid int) ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(pid, &set); err != nil {
		return nil, err
	}
	var cpus []int
	for cpu := 0; cpu < cpuSetSize; cpu++ {
		if set.IsSet(cpu) {
			cpus = append(cpus, cpu)
		}
	}
	return cpus, nil
}

// PinCurrentThread locks the calling goroutine to its OS thread and binds
// that thread to cpu. The returned func restores the previous affinity and
// unlocks the thread.
func PinCurrentThread(cpu int) (func(), error) {
	runtime.LockOSThread()

	previous, err := GetAffinity(0)
	if err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}
	if err := SetAffinity(0, []int{cpu}); err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}

	return func() {
		_ = SetAffinity(0, previous)
		runtime.UnlockOSThread()
	}, nil
}
