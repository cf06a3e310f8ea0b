//go:build linux

package system

import (
	"syscall"

	"github.com/prometheus/procfs"
	"go.uber.org/multierr"
)

func processStats() ProcessStats {
	var (
		out  ProcessStats
		errs error
	)

	proc, err := procfs.Self()
	if err != nil {
		return ProcessStats{Error: err.Error()}
	}

	if st, err := proc.Stat(); err == nil {
		out.CPUSeconds = st.CPUTime()
		out.RSSBytes = int64(st.ResidentMemory())
		out.VMSBytes = uint64(st.VirtualMemory())
	} else {
		errs = multierr.Append(errs, err)
	}

	// IO counters need ptrace access in some containers
	if io, err := proc.IO(); err == nil {
		out.ReadBytes = io.ReadBytes
		out.WriteBytes = io.WriteBytes
	}

	fs, err := procfs.NewDefaultFS()
	if err != nil {
		errs = multierr.Append(errs, err)
	} else {
		if mem, err := fs.Meminfo(); err == nil && mem.MemTotal != nil {
			out.MemoryTotal = *mem.MemTotal * 1024
		} else if err != nil {
			errs = multierr.Append(errs, err)
		}
		if load, err := fs.LoadAvg(); err == nil {
			out.Load1 = load.Load1
		}
	}

	if errs != nil {
		out.Error = errs.Error()
	}
	return out
}

func diskStats(path string) DiskStats {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return DiskStats{Path: path, Error: err.Error()}
	}
	bsize := uint64(st.Bsize)
	total := st.Blocks * bsize
	free := st.Bavail * bsize
	return DiskStats{Path: path, Total: total, Free: free, Used: total - st.Bfree*bsize}
}
