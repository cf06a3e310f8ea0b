//go:build !linux

package system

import "runtime"

func processStats() ProcessStats {
	return ProcessStats{Error: "process statistics are not available on " + runtime.GOOS}
}

func diskStats(path string) DiskStats {
	return DiskStats{Path: path, Error: "disk statistics are not available on " + runtime.GOOS}
}
