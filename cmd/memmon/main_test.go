package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"numapin/internal/config"
	"numapin/internal/memmon"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-o", "out.csv", "--max-rows", "5", "--", "stress", "--vm", "1"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "out.csv", opts.output)
	assert.Equal(t, 5, opts.maxRows)
	assert.Equal(t, []string{"stress", "--vm", "1"}, opts.command)
	assert.True(t, opts.set["max-rows"])
	assert.False(t, opts.set["interval"])

	// Flags after the command belong to the command.
	opts, err = parseFlags([]string{"sleep", "-v"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, []string{"sleep", "-v"}, opts.command)
	assert.False(t, opts.verbose)
}

func TestParseFlagsErrors(t *testing.T) {
	_, err := parseFlags(nil, &bytes.Buffer{})
	assert.ErrorIs(t, err, errUsage)

	_, err = parseFlags([]string{"--interval", "soon", "--", "true"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, errUsage)

	var usage bytes.Buffer
	_, err = parseFlags([]string{"-h"}, &usage)
	assert.ErrorIs(t, err, pflag.ErrHelp)
	assert.Contains(t, usage.String(), "--max-rows")
}

func TestMonitorConfig(t *testing.T) {
	dir := t.TempDir()
	file := config.Default().Memmon
	file.Interval = 2 * time.Second
	file.MaxRows = 50
	file.Unit = "KB"

	opts, err := parseFlags([]string{"-o", filepath.Join(dir, "m.csv"), "--batch-size", "7", "--", "true"}, &bytes.Buffer{})
	require.NoError(t, err)

	mc, err := opts.monitorConfig(file)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, mc.Interval)
	assert.Equal(t, 50, mc.MaxRows)
	assert.Equal(t, 7, mc.BatchSize)
	assert.Equal(t, 10, mc.UnitShift)
	assert.True(t, mc.Convert)

	opts, err = parseFlags([]string{"-o", filepath.Join(dir, "m.csv"), "--unit", "pages", "--", "true"}, &bytes.Buffer{})
	require.NoError(t, err)
	mc, err = opts.monitorConfig(file)
	require.NoError(t, err)
	assert.False(t, mc.Convert)

	opts, err = parseFlags([]string{"-o", filepath.Join(dir, "m.csv"), "--no-convert", "--", "true"}, &bytes.Buffer{})
	require.NoError(t, err)
	mc, err = opts.monitorConfig(file)
	require.NoError(t, err)
	assert.False(t, mc.Convert)
}

func TestMonitorConfigInvalid(t *testing.T) {
	file := config.Default().Memmon

	opts, err := parseFlags([]string{"--unit", "TB", "--", "true"}, &bytes.Buffer{})
	require.NoError(t, err)
	_, err = opts.monitorConfig(file)
	assert.ErrorIs(t, err, memmon.ErrInvalidConfig)

	opts, err = parseFlags([]string{"-o", filepath.Join(t.TempDir(), "missing", "m.csv"), "--", "true"}, &bytes.Buffer{})
	require.NoError(t, err)
	_, err = opts.monitorConfig(file)
	assert.ErrorIs(t, err, memmon.ErrInvalidConfig)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	opts, err := parseFlags([]string{"--max-rows", "0", "--", "true"}, &bytes.Buffer{})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err = run(context.Background(), opts, config.Default(), logger, io.Discard)
	assert.ErrorIs(t, err, memmon.ErrInvalidConfig)
}

func TestPrintSummary(t *testing.T) {
	summary := &memmon.Summary{Samples: 3, Unit: "MB", PeakVM: 12.5, PeakRSS: 4, MeanRSS: 3, P95RSS: 4}

	var text bytes.Buffer
	require.NoError(t, printSummary(&text, summary, false))
	assert.Equal(t, "samples=3 unit=MB peak_vm=12.50 peak_rss=4.00 mean_rss=3.00 p95_rss=4.00\n", text.String())

	var out bytes.Buffer
	require.NoError(t, printSummary(&out, summary, true))
	var decoded memmon.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, *summary, decoded)
}
