// Package hostinfo answers the one question the VM container needs about
// the machine it runs on: how many worker cores to start.
package hostinfo

import "runtime"

// MinCoreNum is the floor on worker pool size: a VM always runs at least
// this many shards, regardless of what the host reports.
const MinCoreNum = 2

// CPUCount returns the usable logical CPU count, never less than
// MinCoreNum. The Linux build reads /proc/cpuinfo directly (see
// hostinfo_linux.go); other platforms and any read failure fall back to
// runtime.NumCPU().
func CPUCount() int {
	n := cpuCount()
	if n < MinCoreNum {
		return MinCoreNum
	}
	return n
}
