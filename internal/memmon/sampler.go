package memmon

import (
	"fmt"
	"os"

	"github.com/prometheus/procfs"
)

// Sample is one memory reading of a process, in pages.
type Sample struct {
	VMPages  int
	RSSPages int
	Step     int
}

type MemorySource interface {
	Sample(pid int) (Sample, error)
}

// ProcSampler reads /proc/<pid>/stat through procfs.
type ProcSampler struct {
	fs       procfs.FS
	pageSize int
}

func NewProcSampler(mountPoint string) (*ProcSampler, error) {
	if mountPoint == "" {
		mountPoint = procfs.DefaultMountPoint
	}
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, err
	}
	return &ProcSampler{fs: fs, pageSize: os.Getpagesize()}, nil
}

func (s *ProcSampler) Sample(pid int) (Sample, error) {
	proc, err := s.fs.Proc(pid)
	if err != nil {
		return Sample{}, err
	}
	stat, err := proc.Stat()
	if err != nil {
		return Sample{}, fmt.Errorf("reading stat of pid %d: %w", pid, err)
	}
	return Sample{
		VMPages:  int(stat.VSize) / s.pageSize,
		RSSPages: stat.RSS,
	}, nil
}
