package topology

import (
	"errors"
	"io/fs"
	"log/slog"
)

// Detect takes a fresh snapshot of CPUs and NUMA nodes from src. Missing
// roots give an empty snapshot; only a permission failure is an error.
func Detect(src *Source) (*Topology, error) {
	for _, root := range []string{src.CPURoot, src.NodeRoot} {
		if _, err := fs.Stat(src.FS, root); errors.Is(err, fs.ErrPermission) {
			return nil, err
		}
	}

	topo := &Topology{
		CPUs:   src.ListCPUs(),
		Nodes:  src.ListNodes(),
		source: src,
	}
	if len(topo.CPUs.Items) == 0 && len(topo.Nodes.Items) == 0 {
		src.log().Error("no CPUs or NUMA nodes found", "cpu_root", src.CPURoot, "node_root", src.NodeRoot)
	}
	return topo, nil
}

// Clusters groups copies of the snapshot's nodes. Cache ids come from the
// snapshot, and from the tree for CPUs the snapshot skipped. The snapshot
// itself is left untouched.
func (t *Topology) Clusters(cacheLevel int, logger *slog.Logger) []Cluster {
	nodes := make([]*Node, len(t.Nodes.Items))
	for i, node := range t.Nodes.Items {
		nodes[i] = node.Clone()
	}

	var fallback CacheLookup
	if t.source != nil {
		fallback = t.source.CacheLookup()
	}
	return BuildClusters(nodes, ClusterOptions{
		CacheLevel: cacheLevel,
		Lookup:     CacheIndexWithFallback(t.CPUs.Items, fallback),
		Logger:     logger,
	})
}
