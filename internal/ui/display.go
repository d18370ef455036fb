package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/lo"

	"numapin/internal/affinity"
	"numapin/internal/topology"
)

func PrintCPUs(w io.Writer, topo *topology.Topology) {
	if topo == nil {
		fmt.Fprintln(w, errorBoxStyle.Render("CPU topology unavailable"))
		return
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("CPU Layout"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  %s %d    %s %d    %s %s\n\n",
		clusterStyle.Render("Cores:"), topo.TotalCores(),
		vcpuStyle.Render("CPUs:"), topo.TotalCPUs(),
		dimStyle.Render("SMT:"), formatBoolDisplay(topo.HasSMT())))

	for _, cpu := range topo.CPUs.Items {
		node := dimStyle.Render("-")
		if cpu.Node != nil {
			node = nodeStyle.Render(fmt.Sprintf("%d", *cpu.Node))
		}
		b.WriteString(fmt.Sprintf("  %s %-4d %s %-4d %s %-4d %s %s  %s %-9s %s %s\n",
			highlightStyle.Render("CPU"), cpu.ID,
			dimStyle.Render("core"), cpu.CoreID,
			dimStyle.Render("pkg"), cpu.PackageID,
			dimStyle.Render("node"), node,
			dimStyle.Render("siblings"), joinInts(cpu.Siblings),
			dimStyle.Render("caches"), vcpuStyle.Render(joinInts(cpu.CacheIDs))))
	}

	fmt.Fprintln(w, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
}

func PrintClusters(w io.Writer, clusters []topology.Cluster, cacheLevel int) {
	var b strings.Builder
	b.WriteString(titleStyle.Render("NUMA Clusters"))
	b.WriteString("\n\n")

	level := fmt.Sprintf("L%d", cacheLevel)
	if cacheLevel < 0 {
		level = "off"
	}
	b.WriteString(fmt.Sprintf("  %s %d    %s %s\n",
		clusterStyle.Render("Clusters:"), len(clusters),
		dimStyle.Render("Cache optimization:"), highlightStyle.Render(level)))

	for c, cluster := range clusters {
		cores := lo.SumBy(cluster, func(node *topology.Node) int {
			return len(node.Cores)
		})
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("  %s %d  %s\n",
			clusterStyle.Render("Cluster"), c,
			dimStyle.Render(fmt.Sprintf("(memory node %d, %d nodes, %d cores)", cluster.Anchor().ID, len(cluster), cores))))

		for i, node := range cluster {
			prefix := "├─"
			if i == len(cluster)-1 {
				prefix = "└─"
			}
			b.WriteString(fmt.Sprintf("     %s %s %s  ", prefix,
				nodeStyle.Render(fmt.Sprintf("Node %d", node.ID)),
				kindStyle(node).Render("("+node.Kind()+")")))
			b.WriteString(coreStyle.Render(affinity.FormatCPUs(primaryThreads(node))))
			b.WriteString(dimStyle.Render(" / "))
			b.WriteString(vcpuStyle.Render(affinity.FormatCPUs(node.CPUs())))
			b.WriteString("\n")

			for k, core := range node.Cores {
				b.WriteString(fmt.Sprintf("        %s %s\n",
					dimStyle.Render(fmt.Sprintf("core %d:", k)), joinInts(core)))
			}
		}
	}

	fmt.Fprintln(w, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
}

func PrintPinning(w io.Writer, option *affinity.Option) {
	fmt.Fprintln(w, subtitleStyle.Render(option.Name))
	fmt.Fprintf(w, "  %s\n", dimStyle.Render(option.Description))
	if option.Strategy == affinity.StrategyPingPong {
		fmt.Fprintf(w, "  %s %d\n", dimStyle.Render("Nodes per round:"), option.NodesPerRound)
	}
	fmt.Fprintf(w, "  %s %d    %s %s\n",
		dimStyle.Render("CPUs:"), len(option.CPUs),
		dimStyle.Render("Set:"), vcpuStyle.Render(option.AffinityStr))
	fmt.Fprintf(w, "  %s %s\n", dimStyle.Render("Order:"), previewOrder(option.CPUs, 32))
}

func PrintSuccess(w io.Writer, option *affinity.Option, path, clusterFile string) {
	content := fmt.Sprintf("✓ %s pinning saved to %s\n\n  CPUs: %d\n  Set: %s",
		option.Name, path, len(option.CPUs), option.AffinityStr)
	if clusterFile != "" {
		content += fmt.Sprintf("\n  Clusters: %s", clusterFile)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, successBoxStyle.Render(content))
	fmt.Fprintln(w)
}

func PrintError(err error) {
	content := fmt.Sprintf("✗ Error: %v", err)
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, errorBoxStyle.Render(content))
	fmt.Fprintln(os.Stderr)
}

func primaryThreads(node *topology.Node) []int {
	return lo.FilterMap(node.Cores, func(core topology.Core, _ int) (int, bool) {
		if len(core) == 0 {
			return 0, false
		}
		return core[0], true
	})
}

// previewOrder lists the first limit ids in pinning order.
func previewOrder(cpus []int, limit int) string {
	if len(cpus) == 0 {
		return dimStyle.Render("empty")
	}
	shown := joinInts(cpus[:min(limit, len(cpus))])
	if len(cpus) > limit {
		shown += dimStyle.Render(fmt.Sprintf(" … (+%d)", len(cpus)-limit))
	}
	return shown
}

func joinInts(values []int) string {
	return strings.Join(lo.Map(values, func(v int, _ int) string {
		return fmt.Sprintf("%d", v)
	}), ",")
}

func formatBoolDisplay(b bool) string {
	if b {
		return coreStyle.Render("Yes")
	}
	return dimStyle.Render("No")
}
