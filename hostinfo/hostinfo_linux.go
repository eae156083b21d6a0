//go:build linux

package hostinfo

import (
	"runtime"

	proc "github.com/c9s/goprocinfo/linux"
)

// cpuCount parses /proc/cpuinfo the way src/minimega/proc.go reads process
// accounting from /proc — via goprocinfo rather than hand-rolled parsing.
// Falls back to runtime.NumCPU() if the file can't be read (containers and
// restricted sandboxes sometimes hide it).
func cpuCount() int {
	info, err := proc.ReadCPUInfo("/proc/cpuinfo")
	if err != nil {
		return runtime.NumCPU()
	}
	n := info.NumCPU()
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}
