package topology

import (
	"log/slog"
	"sort"

	"github.com/samber/lo"
)

type ClusterOptions struct {
	// CacheLevel is the cache index cores are grouped by; negative disables it.
	CacheLevel int
	Lookup     CacheLookup
	Logger     *slog.Logger
}

// BuildClusters groups nodes around their memory-bearing anchors. Each
// compute node joins the anchor with the smallest distance; on ties the
// anchor seen first wins. Clusters come back in anchor discovery order.
func BuildClusters(nodes []*Node, opts ClusterOptions) []Cluster {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(nodes) == 0 {
		return nil
	}

	anchors := lo.Filter(nodes, func(node *Node, _ int) bool {
		return node.Memory
	})
	if len(anchors) == 0 {
		logger.Warn("no memory nodes found, using a single cluster", "nodes", len(nodes))
		cluster := make(Cluster, len(nodes))
		copy(cluster, nodes)
		return []Cluster{cluster}
	}

	clusters := make([]Cluster, len(anchors))
	for i, anchor := range anchors {
		clusters[i] = Cluster{anchor}
	}

	for _, node := range nodes {
		if node.Memory {
			continue
		}
		closest := nearestAnchor(node, anchors)
		if closest < 0 {
			logger.Warn("node has no distance to any memory node, dropping it", "node", node.ID)
			continue
		}
		clusters[closest] = append(clusters[closest], node)
	}

	for _, cluster := range clusters {
		anchorID := cluster[0].ID
		members := cluster[1:]
		sort.SliceStable(members, func(i, j int) bool {
			return closer(members[i], members[j], anchorID)
		})
	}

	if opts.CacheLevel >= 0 {
		for _, cluster := range clusters {
			for i := range cluster {
				cluster[i] = OptimizeCache(cluster[i], opts.CacheLevel, opts.Lookup)
			}
		}
	}

	return clusters
}

func nearestAnchor(node *Node, anchors []*Node) int {
	closest := -1
	minDistance := 0
	for i, anchor := range anchors {
		distance, ok := node.DistanceTo(anchor.ID)
		if !ok {
			continue
		}
		if closest < 0 || distance < minDistance {
			closest = i
			minDistance = distance
		}
	}
	return closest
}

// closer orders a before b by distance to anchorID; missing distances last.
func closer(a, b *Node, anchorID int) bool {
	da, okA := a.DistanceTo(anchorID)
	db, okB := b.DistanceTo(anchorID)
	switch {
	case okA && okB:
		return da < db
	case okA:
		return true
	default:
		return false
	}
}
