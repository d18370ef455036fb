package memmon

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"numapin/internal/pinner"
)

var csvHeader = []string{"VM", "RSS", "Step"}

type Monitor struct {
	Config Config
	Source MemorySource
	Logger *slog.Logger

	// Stdout receives the child's standard output; nil discards it.
	Stdout io.Writer
}

type Result struct {
	Samples     []Sample
	ExitCode    int
	Terminated  bool
	Interrupted bool
}

func New(cfg Config, source MemorySource, logger *slog.Logger) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{Config: cfg, Source: source, Logger: logger}, nil
}

// Run starts command and samples it every interval until it exits, MaxRows
// samples are taken, or ctx is cancelled. The child is always reaped before
// Run returns.
func (m *Monitor) Run(ctx context.Context, command []string) (*Result, error) {
	var cpus []int
	if m.Config.PinningFile != "" {
		p, err := pinner.Load(m.Config.PinningFile)
		if err != nil {
			return nil, err
		}
		cpus = p.CPUs()
	}

	out, err := os.Create(m.Config.Output)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	m.Logger.Info("starting memory monitoring",
		"command", strings.Join(command, " "),
		"output", m.Config.Output,
		"interval", m.Config.Interval,
		"max_rows", m.Config.MaxRows)

	c, err := startChild(command, m.Stdout)
	if err != nil {
		return nil, fmt.Errorf("starting process: %w", err)
	}
	m.Logger.Info("started process", "pid", c.pid())

	if len(cpus) > 0 {
		if err := pinner.SetAffinity(c.pid(), cpus); err != nil {
			c.terminate(terminateGrace)
			return nil, fmt.Errorf("pinning pid %d: %w", c.pid(), err)
		}
		m.Logger.Debug("pinned process", "pid", c.pid(), "cpus", len(cpus))
	}

	result, sampleErr := m.sample(ctx, c, csv.NewWriter(out))
	if !c.exited {
		c.terminate(terminateGrace)
	}
	if sampleErr != nil {
		return nil, sampleErr
	}

	result.ExitCode = c.exitCode()
	if result.ExitCode != 0 && !result.Terminated && !result.Interrupted {
		m.Logger.Warn("process exited with non-zero status",
			"code", result.ExitCode, "stderr", strings.TrimSpace(c.stderr.String()))
	}
	m.Logger.Info("monitoring completed", "samples", len(result.Samples))

	if err := out.Close(); err != nil {
		return nil, err
	}
	return result, nil
}

func (m *Monitor) sample(ctx context.Context, c *child, w *csv.Writer) (*Result, error) {
	result := &Result{}
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}

	ticker := time.NewTicker(m.Config.Interval)
	defer ticker.Stop()

	batch := make([]Sample, 0, m.Config.BatchSize)
	flush := func() error {
		for _, s := range batch {
			if err := w.Write(s.record()); err != nil {
				return err
			}
		}
		batch = batch[:0]
		w.Flush()
		return w.Error()
	}

	pid := c.pid()
loop:
	for step := 0; step < m.Config.MaxRows; step++ {
		if c.poll() {
			m.Logger.Info("process has terminated")
			break
		}

		s, err := m.Source.Sample(pid)
		if err != nil {
			m.Logger.Warn("could not read memory info, process may have ended", "pid", pid, "error", err)
			break
		}
		s.Step = step
		batch = append(batch, s)
		result.Samples = append(result.Samples, s)

		if len(batch) >= m.Config.BatchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}

		if step+1 >= m.Config.MaxRows {
			m.Logger.Info("reached maximum rows, terminating process", "max_rows", m.Config.MaxRows)
			result.Terminated = true
			break
		}

		select {
		case <-ctx.Done():
			m.Logger.Info("monitoring interrupted, terminating process")
			result.Interrupted = true
			break loop
		case err := <-c.done:
			c.reap(err)
			m.Logger.Info("process has terminated")
			break loop
		case <-ticker.C:
		}
	}

	if err := flush(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s Sample) record() []string {
	return []string{strconv.Itoa(s.VMPages), strconv.Itoa(s.RSSPages), strconv.Itoa(s.Step)}
}
