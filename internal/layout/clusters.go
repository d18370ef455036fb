package layout

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"numapin/internal/topology"
)

type Header struct {
	// Host defaults to the local hostname.
	Host       string
	CacheLevel int
}

func WriteClusters(w io.Writer, clusters []topology.Cluster, header Header) error {
	host := header.Host
	if host == "" {
		host, _ = os.Hostname()
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# CPU Pinning Configuration")
	fmt.Fprintf(bw, "# Generated on %s\n", host)
	fmt.Fprintln(bw, "# Format: core[cluster_id][node_id][core_id]=smt_list")
	fmt.Fprintf(bw, "# Cache optimization level: %d\n\n", header.CacheLevel)

	for c, cluster := range clusters {
		if anchor := cluster.Anchor(); anchor != nil && anchor.Memory {
			fmt.Fprintf(bw, "# Cluster %d (Memory Node: %d)\n", c, anchor.ID)
		} else {
			fmt.Fprintf(bw, "# Cluster %d (no memory node)\n", c)
		}
		for n, node := range cluster {
			fmt.Fprintf(bw, "# Node %d (%s)\n", node.ID, node.Kind())
			for k, core := range node.Cores {
				if len(core) == 0 {
					continue
				}
				fmt.Fprintf(bw, "core[%d][%d][%d]=%s\n", c, n, k, joinIDs(core))
			}
		}
	}
	return bw.Flush()
}

func SaveClusters(path string, clusters []topology.Cluster, header Header) error {
	return saveFile(path, func(w io.Writer) error {
		return WriteClusters(w, clusters, header)
	})
}

var (
	clusterLine = regexp.MustCompile(`^# Cluster (\d+) \((?:Memory Node: \d+|no memory node)\)$`)
	nodeLine    = regexp.MustCompile(`^# Node (\d+) \((Memory|Compute)\)$`)
	coreLine    = regexp.MustCompile(`^core\[(\d+)\]\[(\d+)\]\[(\d+)\]=([0-9,]+)$`)
)

// ParseClusters rebuilds the cluster/node/core nesting of a description file.
// Cluster and node comment lines open new entries so nodes without cores
// survive; core lines are placed by their indices.
func ParseClusters(r io.Reader) ([][][]topology.Core, error) {
	var clusters [][][]topology.Core

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if m := clusterLine.FindStringSubmatch(line); m != nil {
			c, err := denseIndex(m[1], len(clusters))
			if err != nil {
				return nil, fmt.Errorf("line %d: cluster %w", lineNo, err)
			}
			clusters = growTo(clusters, c+1)
			continue
		}
		if nodeLine.MatchString(line) {
			if len(clusters) == 0 {
				return nil, fmt.Errorf("line %d: node outside of a cluster", lineNo)
			}
			last := len(clusters) - 1
			clusters[last] = append(clusters[last], nil)
			continue
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		m := coreLine.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("line %d: malformed core assignment %q", lineNo, line)
		}
		core, err := splitIDs(m[4])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		c, err := denseIndex(m[1], len(clusters))
		if err != nil {
			return nil, fmt.Errorf("line %d: cluster %w", lineNo, err)
		}
		clusters = growTo(clusters, c+1)
		n, err := denseIndex(m[2], len(clusters[c]))
		if err != nil {
			return nil, fmt.Errorf("line %d: node %w", lineNo, err)
		}
		clusters[c] = growTo(clusters[c], n+1)
		k, err := denseIndex(m[3], len(clusters[c][n]))
		if err != nil {
			return nil, fmt.Errorf("line %d: core %w", lineNo, err)
		}
		clusters[c][n] = growTo(clusters[c][n], k+1)
		clusters[c][n][k] = core
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return clusters, nil
}

// Structure projects clusters onto the nesting ParseClusters returns.
func Structure(clusters []topology.Cluster) [][][]topology.Core {
	out := make([][][]topology.Core, len(clusters))
	for c, cluster := range clusters {
		out[c] = make([][]topology.Core, len(cluster))
		for n, node := range cluster {
			for _, core := range node.Cores {
				out[c][n] = append(out[c][n], append(topology.Core(nil), core...))
			}
		}
	}
	return out
}

// denseIndex parses an index that may address an existing entry or the one
// right after it. Written files number their entries without gaps.
func denseIndex(s string, length int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("index %q is not a number", s)
	}
	if i > length {
		return 0, fmt.Errorf("index %d skips past %d entries", i, length)
	}
	return i, nil
}

func growTo[T any](s []T, n int) []T {
	for len(s) < n {
		var zero T
		s = append(s, zero)
	}
	return s
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func splitIDs(s string) (topology.Core, error) {
	parts := strings.Split(s, ",")
	core := make(topology.Core, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid CPU id %q", part)
		}
		core = append(core, id)
	}
	return core, nil
}
