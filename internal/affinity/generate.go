package affinity

import (
	"errors"
	"fmt"

	"k8s.io/utils/cpuset"

	"numapin/internal/topology"
)

var (
	ErrInvalidNodesPerRound = errors.New("nodes per round must be a positive integer")
	ErrUnknownStrategy      = errors.New("unknown pinning strategy")
)

func Generate(req *Request) (*Option, error) {
	if req == nil {
		return nil, errors.New("request is required")
	}

	option := &Option{
		Strategy:    req.Strategy,
		Name:        req.Strategy.Name(),
		Description: req.Strategy.Description(),
	}

	switch req.Strategy {
	case StrategyClusterFirst:
		option.CPUs = ClusterFirst(req.Clusters)
	case StrategyPingPong:
		cpus, err := PingPong(req.Clusters, req.NodesPerRound)
		if err != nil {
			return nil, err
		}
		option.CPUs = cpus
		option.NodesPerRound = req.NodesPerRound
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, req.Strategy)
	}

	option.AffinityStr = FormatCPUs(option.CPUs)
	return option, nil
}

// MaxSMT returns the widest core across all clusters, 0 when there is none.
func MaxSMT(clusters []topology.Cluster) int {
	width := 0
	for _, cluster := range clusters {
		for _, node := range cluster {
			for _, core := range node.Cores {
				width = max(width, len(core))
			}
		}
	}
	return width
}

// ClusterFirst fills the primary thread of every core, walking clusters, their
// nodes and their cores in order, before moving on to the next SMT position.
func ClusterFirst(clusters []topology.Cluster) []int {
	width := MaxSMT(clusters)
	cpus := []int{}
	for pos := 0; pos < width; pos++ {
		for _, cluster := range clusters {
			for _, node := range cluster {
				cpus = appendPosition(cpus, node, pos)
			}
		}
	}
	return cpus
}

// PingPong interleaves clusters at node granularity: each round takes up to
// nodesPerRound nodes from every cluster in turn, once per SMT position.
func PingPong(clusters []topology.Cluster, nodesPerRound int) ([]int, error) {
	if nodesPerRound <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidNodesPerRound, nodesPerRound)
	}

	width := MaxSMT(clusters)
	cpus := []int{}
	for pos := 0; pos < width; pos++ {
		cursors := make([]int, len(clusters))
		for {
			progress := false
			for i, cluster := range clusters {
				end := min(cursors[i]+nodesPerRound, len(cluster))
				for _, node := range cluster[cursors[i]:end] {
					cpus = appendPosition(cpus, node, pos)
					progress = true
				}
				cursors[i] = end
			}
			if !progress {
				break
			}
		}
	}
	return cpus, nil
}

func appendPosition(cpus []int, node *topology.Node, pos int) []int {
	for _, core := range node.Cores {
		if pos < len(core) {
			cpus = append(cpus, core[pos])
		}
	}
	return cpus
}

// FormatCPUs renders ids as a sorted, compact range list such as "0-3,8".
func FormatCPUs(cpus []int) string {
	return cpuset.New(cpus...).String()
}
