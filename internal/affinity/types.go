package affinity

import "numapin/internal/topology"

type Strategy string

const (
	StrategyClusterFirst Strategy = "cluster-first"
	StrategyPingPong     Strategy = "ping-pong"
)

// Strategies lists the pinning strategies in the order they are offered.
var Strategies = []Strategy{StrategyClusterFirst, StrategyPingPong}

func (s Strategy) Name() string {
	switch s {
	case StrategyClusterFirst:
		return "Cluster First"
	case StrategyPingPong:
		return "Ping-Pong"
	default:
		return string(s)
	}
}

func (s Strategy) Description() string {
	switch s {
	case StrategyClusterFirst:
		return "Fill every primary thread cluster by cluster, then the SMT siblings"
	case StrategyPingPong:
		return "Alternate between clusters a few NUMA nodes at a time"
	default:
		return ""
	}
}

type Option struct {
	Strategy      Strategy `json:"strategy"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	NodesPerRound int      `json:"nodes_per_round,omitempty"`
	CPUs          []int    `json:"cpus"`
	AffinityStr   string   `json:"affinity"`
}

type Request struct {
	Strategy      Strategy
	NodesPerRound int
	Clusters      []topology.Cluster
}
