package ui

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"numapin/internal/affinity"
	"numapin/internal/topology"
)

func testSession() Session {
	node := func(id int, memory bool, cores ...topology.Core) *topology.Node {
		return &topology.Node{ID: id, Memory: memory, Cores: cores}
	}
	clusters := []topology.Cluster{
		{node(0, true, topology.Core{0, 4}), node(2, false, topology.Core{2, 6})},
		{node(1, true, topology.Core{1, 5}), node(3, false, topology.Core{3, 7})},
	}
	var cpus []topology.CPU
	for id := 0; id < 8; id++ {
		cpus = append(cpus, topology.CPU{ID: id, Siblings: []int{id % 4, id%4 + 4}})
	}
	return Session{
		Topology:      &topology.Topology{CPUs: topology.ScanResult[topology.CPU]{Items: cpus}},
		Clusters:      clusters,
		CacheLevel:    3,
		NodesPerRound: 1,
	}
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, key := range keys {
		var next tea.Model
		next, cmd = m.Update(key)
		m = next.(Model)
	}
	return m, cmd
}

func typeText(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	down  = tea.KeyMsg{Type: tea.KeyDown}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
	bs    = tea.KeyMsg{Type: tea.KeyBackspace}
)

func TestWizardClusterFirst(t *testing.T) {
	m, _ := press(t, NewModel(testSession()), enter)
	require.Equal(t, stepAction, m.step)
	assert.Equal(t, affinity.StrategyClusterFirst, m.option.Strategy)
	assert.Equal(t, []int{0, 2, 1, 3, 4, 6, 5, 7}, m.option.CPUs)
	assert.Contains(t, m.View(), "Pinning generated")
}

func TestWizardPingPongWritesFiles(t *testing.T) {
	dir := t.TempDir()
	session := testSession()
	session.ClusterFile = filepath.Join(dir, "clusters.txt")
	out := filepath.Join(dir, "pinning.txt")

	m, _ := press(t, NewModel(session), down, enter)
	require.Equal(t, stepNodesPerRound, m.step)

	// Out of range values are ignored.
	m, _ = press(t, m, bs, typeText("9"), enter)
	require.Equal(t, stepNodesPerRound, m.step)

	m, _ = press(t, m, bs, typeText("1"), enter)
	require.Equal(t, stepAction, m.step)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, m.option.CPUs)

	m, _ = press(t, m, enter)
	require.Equal(t, stepOutputPath, m.step)

	m, cmd := press(t, m, typeText(out), enter)
	require.Equal(t, stepWriting, m.step)
	require.NotNil(t, cmd)

	next, _ := m.Update(cmd())
	m = next.(Model)
	require.Equal(t, stepDone, m.step, "error: %v", m.err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "0\n1\n2\n3\n4\n5\n6\n7\n", string(data))

	clusters, err := os.ReadFile(session.ClusterFile)
	require.NoError(t, err)
	assert.Contains(t, string(clusters), "core[1][1][0]=3,7")
	assert.Contains(t, m.View(), "Saved")
}

func TestWizardWriteError(t *testing.T) {
	m, _ := press(t, NewModel(testSession()), enter, enter)
	bad := filepath.Join(t.TempDir(), "missing", "pinning.txt")
	m, cmd := press(t, m, typeText(bad), enter)

	next, _ := m.Update(cmd())
	m = next.(Model)
	assert.Equal(t, stepError, m.step)
	assert.Error(t, m.err)
	assert.Contains(t, m.View(), "Error")
}

func TestWizardPrintAndExit(t *testing.T) {
	m, cmd := press(t, NewModel(testSession()), enter, down, enter)
	assert.True(t, m.printOnExit)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestWizardBack(t *testing.T) {
	m, _ := press(t, NewModel(testSession()), down, enter, enter)
	require.Equal(t, stepAction, m.step)

	m, _ = press(t, m, esc)
	assert.Equal(t, stepNodesPerRound, m.step)

	m, _ = press(t, m, esc)
	assert.Equal(t, stepStrategy, m.step)
	assert.Equal(t, 1, m.selected)
}

func TestWizardTypingQDoesNotQuit(t *testing.T) {
	m, _ := press(t, NewModel(testSession()), enter, enter)
	require.Equal(t, stepOutputPath, m.step)

	m, _ = press(t, m, typeText("q"))
	assert.Equal(t, stepOutputPath, m.step)
	assert.Equal(t, "q", m.textInput.Value())
}

func TestPrintClusters(t *testing.T) {
	var buf bytes.Buffer
	PrintClusters(&buf, testSession().Clusters, -1)

	out := buf.String()
	assert.Contains(t, out, "NUMA Clusters")
	assert.Contains(t, out, "off")
	assert.Contains(t, out, "Node 3")
	assert.Contains(t, out, "(Compute)")
	assert.True(t, strings.Contains(out, "memory node 1"))
}

func TestPrintCPUs(t *testing.T) {
	var buf bytes.Buffer
	PrintCPUs(&buf, testSession().Topology)
	assert.Contains(t, buf.String(), "CPU Layout")
	assert.Contains(t, buf.String(), "0,4")

	buf.Reset()
	PrintCPUs(&buf, nil)
	assert.Contains(t, buf.String(), "unavailable")
}

func TestPreviewOrder(t *testing.T) {
	assert.Equal(t, "3,1,2", previewOrder([]int{3, 1, 2}, 5))
	assert.Contains(t, previewOrder([]int{3, 1, 2}, 2), "3,1")
	assert.Contains(t, previewOrder([]int{3, 1, 2}, 2), "(+1)")
	assert.Contains(t, previewOrder(nil, 2), "empty")
}
