//go:build !linux

package hostinfo

import "runtime"

func cpuCount() int { return runtime.NumCPU() }
