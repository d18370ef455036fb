package memmon

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vimStat = "26231 (vim) R 5392 7446 5392 34835 7446 4218880 32533 309516 26 82 1677 44 158 99 20 0 1 0 82375 56274944 1981 18446744073709551615 4194304 6294284 140736914091744 140736914087944 139965136429984 0 0 12288 1870679807 0 0 0 17 0 0 0 31 0 0 8391624 8481048 16420864 140736914093252 140736914093279 140736914093279 140736914096107 0\n"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSource returns a growing footprint and counts calls.
type fakeSource struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeSource) Sample(pid int) (Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return Sample{VMPages: 1000 + f.calls, RSSPages: 100 + f.calls}, nil
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	return rows
}

func testConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.Output = filepath.Join(t.TempDir(), "memory.csv")
	cfg.Interval = 5 * time.Millisecond
	return cfg
}

func requireCommand(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cfg.Validate())

	bad := Config{Output: filepath.Join(t.TempDir(), "missing", "out.csv"), UnitShift: 15}
	err := bad.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	for _, msg := range []string{"interval", "max rows", "batch size", "unit shift", "output directory"} {
		assert.ErrorContains(t, err, msg)
	}
}

func TestParseUnit(t *testing.T) {
	tests := []struct {
		name    string
		shift   int
		convert bool
	}{
		{"pages", 0, false},
		{"bytes", 0, true},
		{"kb", 10, true},
		{"MB", 20, true},
		{"GB", 30, true},
	}
	for _, tt := range tests {
		shift, convert, err := ParseUnit(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.shift, shift, tt.name)
		assert.Equal(t, tt.convert, convert, tt.name)
	}

	_, _, err := ParseUnit("TB")
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, "2^40 bytes", UnitName(40))
}

func TestProcSampler(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "26231"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "26231", "stat"), []byte(vimStat), 0o644))

	sampler, err := NewProcSampler(root)
	require.NoError(t, err)

	s, err := sampler.Sample(26231)
	require.NoError(t, err)
	assert.Equal(t, 56274944/os.Getpagesize(), s.VMPages)
	assert.Equal(t, 1981, s.RSSPages)

	_, err = sampler.Sample(1)
	assert.Error(t, err)
}

func TestConvertUnits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.csv")
	content := "VM,RSS,Step\n100,50,0\nx,1,1\n7\n256,3,2\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	require.NoError(t, ConvertUnits(path, 4096, 10, 1, quietLogger()))

	assert.Equal(t, [][]string{
		{"VM", "RSS", "Step"},
		{"400.00", "200.00", "0"},
		{"1024.00", "12.00", "2"},
	}, readCSV(t, path))

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestConvertUnitsRounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.csv")
	require.NoError(t, os.WriteFile(path, []byte("VM,RSS,Step\n1,3,0\n"), 0o644))

	require.NoError(t, ConvertUnits(path, 4096, 20, 1000, quietLogger()))
	assert.Equal(t, []string{"0.00", "0.01", "0"}, readCSV(t, path)[1])
}

func TestConvertUnitsKeepsFileMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.csv")
	require.NoError(t, os.WriteFile(path, []byte("VM,RSS,Step\n1,3,0\n"), 0o644))
	require.NoError(t, os.Chmod(path, 0o640))

	require.NoError(t, ConvertUnits(path, 4096, 10, 1000, quietLogger()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestConvertUnitsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memory.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	err := ConvertUnits(path, 4096, 20, 10, quietLogger())
	assert.ErrorIs(t, err, ErrEmptyCSV)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file is removed")
}

func TestSummarize(t *testing.T) {
	samples := make([]Sample, 20)
	for i := range samples {
		samples[i] = Sample{VMPages: 100, RSSPages: i + 1, Step: i}
	}

	summary, err := Summarize(samples, 1024, 10)
	require.NoError(t, err)
	assert.Equal(t, 20, summary.Samples)
	assert.Equal(t, "KB", summary.Unit)
	assert.Equal(t, 100.0, summary.PeakVM)
	assert.Equal(t, 20.0, summary.PeakRSS)
	assert.InDelta(t, 10.5, summary.MeanRSS, 1e-9)
	assert.Equal(t, 19.0, summary.P95RSS)

	_, err = Summarize(nil, 4096, 20)
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestMonitorStopsAtMaxRows(t *testing.T) {
	requireCommand(t, "sleep")
	cfg := testConfig(t)
	cfg.MaxRows = 3
	cfg.BatchSize = 2

	source := &fakeSource{}
	m, err := New(cfg, source, quietLogger())
	require.NoError(t, err)

	result, err := m.Run(context.Background(), []string{"sleep", "30"})
	require.NoError(t, err)
	assert.True(t, result.Terminated)
	require.Len(t, result.Samples, 3)

	assert.Equal(t, [][]string{
		{"VM", "RSS", "Step"},
		{"1001", "101", "0"},
		{"1002", "102", "1"},
		{"1003", "103", "2"},
	}, readCSV(t, cfg.Output))
}

func TestMonitorInterrupted(t *testing.T) {
	requireCommand(t, "sleep")
	cfg := testConfig(t)
	cfg.Interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m, err := New(cfg, &fakeSource{}, quietLogger())
	require.NoError(t, err)

	result, err := m.Run(ctx, []string{"sleep", "30"})
	require.NoError(t, err)
	assert.True(t, result.Interrupted)
	assert.Len(t, result.Samples, 1)
	assert.Len(t, readCSV(t, cfg.Output), 2)
}

func TestMonitorChildExits(t *testing.T) {
	requireCommand(t, "true")
	cfg := testConfig(t)
	cfg.MaxRows = 1000

	m, err := New(cfg, &fakeSource{}, quietLogger())
	require.NoError(t, err)

	result, err := m.Run(context.Background(), []string{"true"})
	require.NoError(t, err)
	assert.Zero(t, result.ExitCode)
	assert.False(t, result.Terminated)
	assert.Less(t, len(result.Samples), cfg.MaxRows)
}

func TestMonitorStartFailure(t *testing.T) {
	m, err := New(testConfig(t), &fakeSource{}, quietLogger())
	require.NoError(t, err)

	_, err = m.Run(context.Background(), []string{filepath.Join(t.TempDir(), "no-such-binary")})
	assert.Error(t, err)

	_, err = m.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
