package ui

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"numapin/internal/affinity"
	"numapin/internal/layout"
	"numapin/internal/topology"
)

type step int

const (
	stepStrategy step = iota
	stepNodesPerRound
	stepAction
	stepOutputPath
	stepWriting
	stepDone
	stepError
)

const (
	actionSave = iota
	actionPrint
)

const defaultOutputPath = "pinning.txt"

// Session is what the wizard works on: a detected topology and its clusters.
type Session struct {
	Topology      *topology.Topology
	Clusters      []topology.Cluster
	CacheLevel    int
	NodesPerRound int
	// ClusterFile also receives the cluster description when set.
	ClusterFile string
}

type Model struct {
	session       Session
	step          step
	selected      int
	nodesPerRound int
	option        *affinity.Option
	outputPath    string
	printOnExit   bool
	textInput     textinput.Model
	err           error
	width         int
	height        int
}

func NewModel(session Session) Model {
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 40
	ti.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#c0caf5"))
	ti.PromptStyle = lipgloss.NewStyle().Foreground(secondaryColor)
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(primaryColor)

	nodesPerRound := session.NodesPerRound
	if nodesPerRound <= 0 {
		nodesPerRound = 1
	}

	return Model{
		session:       session,
		step:          stepStrategy,
		nodesPerRound: nodesPerRound,
		textInput:     ti,
		width:         80,
		height:        24,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) editing() bool {
	return m.step == stepNodesPerRound || m.step == stepOutputPath
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case writeResultMsg:
		if msg.err != nil {
			m.err = msg.err
			m.step = stepError
		} else {
			m.step = stepDone
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			return m.handleEnter()
		case "esc":
			return m.back()
		}

		if !m.editing() {
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "up", "k":
				m = m.moveCursor(-1)
			case "down", "j":
				m = m.moveCursor(1)
			}
			return m, nil
		}
	}

	if m.editing() {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) moveCursor(delta int) Model {
	var count int
	switch m.step {
	case stepStrategy:
		count = len(affinity.Strategies)
	case stepAction:
		count = 2
	default:
		return m
	}
	m.selected = (m.selected + delta + count) % count
	return m
}

func (m Model) back() (tea.Model, tea.Cmd) {
	switch m.step {
	case stepNodesPerRound:
		m.step = stepStrategy
		m.selected = strategyIndex(affinity.StrategyPingPong)
		m.textInput.Blur()
	case stepAction:
		m.selected = actionSave
		if m.option.Strategy == affinity.StrategyPingPong {
			return m.editNodesPerRound()
		}
		m.step = stepStrategy
		m.selected = strategyIndex(m.option.Strategy)
	case stepOutputPath:
		m.textInput.Blur()
		m.step = stepAction
		m.selected = actionSave
	}
	return m, nil
}

func strategyIndex(strategy affinity.Strategy) int {
	for i, s := range affinity.Strategies {
		if s == strategy {
			return i
		}
	}
	return 0
}

func (m Model) editNodesPerRound() (tea.Model, tea.Cmd) {
	m.step = stepNodesPerRound
	m.textInput.Placeholder = "Enter number..."
	m.textInput.SetValue(strconv.Itoa(m.nodesPerRound))
	m.textInput.CursorEnd()
	return m, m.textInput.Focus()
}

func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	switch m.step {
	case stepStrategy:
		strategy := affinity.Strategies[m.selected]
		if strategy == affinity.StrategyPingPong {
			return m.editNodesPerRound()
		}
		return m.generate(strategy)

	case stepNodesPerRound:
		val, err := strconv.Atoi(strings.TrimSpace(m.textInput.Value()))
		if err != nil || val < 1 || val > m.maxNodesPerRound() {
			return m, nil
		}
		m.nodesPerRound = val
		m.textInput.Blur()
		return m.generate(affinity.StrategyPingPong)

	case stepAction:
		if m.selected == actionPrint {
			m.printOnExit = true
			return m, tea.Quit
		}
		m.step = stepOutputPath
		m.textInput.Placeholder = defaultOutputPath
		m.textInput.SetValue("")
		return m, m.textInput.Focus()

	case stepOutputPath:
		path := strings.TrimSpace(m.textInput.Value())
		if path == "" {
			path = defaultOutputPath
		}
		m.outputPath = path
		m.textInput.Blur()
		m.step = stepWriting
		return m, m.writeFiles()

	case stepDone, stepError:
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) generate(strategy affinity.Strategy) (tea.Model, tea.Cmd) {
	option, err := affinity.Generate(&affinity.Request{
		Strategy:      strategy,
		NodesPerRound: m.nodesPerRound,
		Clusters:      m.session.Clusters,
	})
	if err != nil {
		m.err = err
		m.step = stepError
		return m, nil
	}
	m.option = option
	m.selected = actionSave
	m.step = stepAction
	return m, nil
}

// maxNodesPerRound is the node count of the largest cluster; wider rounds
// behave the same.
func (m Model) maxNodesPerRound() int {
	widest := 1
	for _, cluster := range m.session.Clusters {
		widest = max(widest, len(cluster))
	}
	return widest
}

type writeResultMsg struct {
	err error
}

func (m Model) writeFiles() tea.Cmd {
	path := m.outputPath
	cpus := m.option.CPUs
	session := m.session
	return func() tea.Msg {
		if err := layout.SavePinning(path, cpus); err != nil {
			return writeResultMsg{err: err}
		}
		if session.ClusterFile != "" {
			header := layout.Header{CacheLevel: session.CacheLevel}
			if err := layout.SaveClusters(session.ClusterFile, session.Clusters, header); err != nil {
				return writeResultMsg{err: err}
			}
		}
		return writeResultMsg{}
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderTopology())
	b.WriteString("\n\n")

	switch m.step {
	case stepStrategy:
		b.WriteString(m.renderStrategySelection())
	case stepNodesPerRound:
		b.WriteString(m.renderNodesPerRoundInput())
	case stepAction:
		b.WriteString(m.renderActionSelection())
	case stepOutputPath:
		b.WriteString(m.renderOutputPathInput())
	case stepWriting:
		b.WriteString("  Writing pinning list...")
	case stepDone:
		b.WriteString(m.renderSuccess())
	case stepError:
		b.WriteString(m.renderError())
	}

	b.WriteString("\n\n")
	b.WriteString(m.renderHelp())

	return b.String()
}

func (m Model) renderHelp() string {
	var parts []string
	if m.editing() {
		parts = append(parts, keyStyle.Render("enter")+dimStyle.Render(" confirm"))
		parts = append(parts, keyStyle.Render("esc")+dimStyle.Render(" back"))
		parts = append(parts, keyStyle.Render("ctrl+c")+dimStyle.Render(" quit"))
	} else {
		parts = append(parts, keyStyle.Render("↑/↓")+dimStyle.Render(" navigate"))
		parts = append(parts, keyStyle.Render("enter")+dimStyle.Render(" select"))
		parts = append(parts, keyStyle.Render("esc")+dimStyle.Render(" back"))
		parts = append(parts, keyStyle.Render("q")+dimStyle.Render(" quit"))
	}

	return strings.Join(parts, dimStyle.Render(" • "))
}

func (m Model) renderTopology() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(" NUMA Cluster Pinning "))
	b.WriteString("\n\n")

	level := fmt.Sprintf("L%d", m.session.CacheLevel)
	if m.session.CacheLevel < 0 {
		level = "off"
	}
	topo := m.session.Topology
	b.WriteString(fmt.Sprintf("  %s %d    %s %d    %s %s    %s %s\n",
		clusterStyle.Render("Cores:"), topo.TotalCores(),
		vcpuStyle.Render("CPUs:"), topo.TotalCPUs(),
		dimStyle.Render("SMT:"), formatBool(topo.HasSMT()),
		dimStyle.Render("Cache:"), highlightStyle.Render(level)))
	b.WriteString("\n")

	for c, cluster := range m.session.Clusters {
		b.WriteString(fmt.Sprintf("  %s %d  %s\n",
			clusterStyle.Render("Cluster"), c,
			dimStyle.Render(fmt.Sprintf("(memory node %d)", cluster.Anchor().ID))))

		for i, node := range cluster {
			prefix := "├─"
			if i == len(cluster)-1 {
				prefix = "└─"
			}
			b.WriteString(fmt.Sprintf("     %s %s %d %s  ", prefix, nodeStyle.Render("Node"), node.ID,
				kindStyle(node).Render(strings.ToLower(node.Kind()))))
			b.WriteString(coreStyle.Render(affinity.FormatCPUs(primaryThreads(node))))
			b.WriteString(dimStyle.Render(" / "))
			b.WriteString(vcpuStyle.Render(affinity.FormatCPUs(node.CPUs())))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (m Model) renderStrategySelection() string {
	var b strings.Builder
	b.WriteString(subtitleStyle.Render("? Select pinning strategy"))
	b.WriteString("\n\n")

	for i, strategy := range affinity.Strategies {
		if i == m.selected {
			b.WriteString(cursorStyle.Render("  ▸ "))
			b.WriteString(selectedStyle.Render(strategy.Name()))
		} else {
			b.WriteString("    ")
			b.WriteString(strategy.Name())
		}
		b.WriteString("\n")
		b.WriteString("      " + dimStyle.Render(strategy.Description()))
		b.WriteString("\n\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderNodesPerRoundInput() string {
	var b strings.Builder
	b.WriteString(subtitleStyle.Render("? How many nodes per cluster in each round?"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  Range: %s\n\n", highlightStyle.Render(fmt.Sprintf("1 - %d", m.maxNodesPerRound()))))
	b.WriteString("  > ")
	b.WriteString(m.textInput.View())
	return b.String()
}

func (m Model) renderActionSelection() string {
	var b strings.Builder

	b.WriteString(coreStyle.Render("✓ Pinning generated"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  %s  %s\n", highlightStyle.Render(m.option.Name), dimStyle.Render(fmt.Sprintf("%d CPUs", len(m.option.CPUs)))))
	b.WriteString(fmt.Sprintf("  %s %s\n", dimStyle.Render("Order:"), previewOrder(m.option.CPUs, 24)))
	b.WriteString("\n")

	b.WriteString(subtitleStyle.Render("? What next?"))
	b.WriteString("\n\n")

	labels := []string{"Save to file", "Print list and exit"}
	for i, label := range labels {
		if i == m.selected {
			b.WriteString(cursorStyle.Render("  ▸ "))
			b.WriteString(selectedStyle.Render(label))
		} else {
			b.WriteString("    ")
			b.WriteString(label)
		}
		if i < len(labels)-1 {
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (m Model) renderOutputPathInput() string {
	var b strings.Builder
	b.WriteString(subtitleStyle.Render("? Output file"))
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("  Leave empty for %s", defaultOutputPath)))
	b.WriteString("\n\n")
	b.WriteString("  > ")
	b.WriteString(m.textInput.View())
	return b.String()
}

func (m Model) renderSuccess() string {
	var b strings.Builder
	b.WriteString(coreStyle.Render("✓ Saved"))
	b.WriteString(fmt.Sprintf(" %s pinning to %s\n\n", m.option.Name, m.outputPath))
	b.WriteString("  Set: ")
	b.WriteString(vcpuStyle.Render(m.option.AffinityStr))
	if m.session.ClusterFile != "" {
		b.WriteString("\n  Clusters: ")
		b.WriteString(m.session.ClusterFile)
	}
	return b.String()
}

func (m Model) renderError() string {
	return lipgloss.NewStyle().Foreground(errorColor).Render(fmt.Sprintf("✗ Error: %v", m.err))
}

func formatBool(b bool) string {
	if b {
		return coreStyle.Render("Yes")
	}
	return lipgloss.NewStyle().Foreground(errorColor).Render("No")
}

func Run(session Session) error {
	model := NewModel(session)
	p := tea.NewProgram(model, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	m, ok := finalModel.(Model)
	if !ok {
		return nil
	}
	if m.err != nil {
		return m.err
	}
	if m.printOnExit && m.option != nil {
		return layout.WritePinning(os.Stdout, m.option.CPUs)
	}
	return nil
}
