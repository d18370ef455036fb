package topology

import "sort"

// CacheLookup returns the cache ids of a logical CPU, lowest cache index first.
type CacheLookup func(cpuID int) []int

// CacheIndex builds a CacheLookup over an already read CPU snapshot.
func CacheIndex(cpus []CPU) CacheLookup {
	return CacheIndexWithFallback(cpus, nil)
}

// CacheIndexWithFallback is CacheIndex, asking fallback for CPUs that are
// not in the snapshot. A nil fallback reports no cache ids for them.
func CacheIndexWithFallback(cpus []CPU, fallback CacheLookup) CacheLookup {
	index := make(map[int][]int, len(cpus))
	for _, cpu := range cpus {
		index[cpu.ID] = cpu.CacheIDs
	}
	return func(cpuID int) []int {
		if ids, ok := index[cpuID]; ok || fallback == nil {
			return ids
		}
		return fallback(cpuID)
	}
}

// CacheLookup reads cache ids straight from the tree on every call.
func (s *Source) CacheLookup() CacheLookup {
	return s.CacheIDs
}

// OptimizeCache reorders the cores of node so that cores sharing a cache block
// at level are adjacent, ordered by (cache id, first logical id). Cores whose
// primary thread has no cache id at level are dropped. A negative level
// leaves the node untouched.
func OptimizeCache(node *Node, level int, lookup CacheLookup) *Node {
	if node == nil || level < 0 || lookup == nil {
		return node
	}

	type cachedCore struct {
		core    Core
		cacheID int
	}

	cached := make([]cachedCore, 0, len(node.Cores))
	for _, core := range node.Cores {
		if len(core) == 0 {
			continue
		}
		ids := lookup(core[0])
		if level >= len(ids) {
			continue
		}
		cached = append(cached, cachedCore{core: core, cacheID: ids[level]})
	}

	sort.SliceStable(cached, func(i, j int) bool {
		if cached[i].cacheID != cached[j].cacheID {
			return cached[i].cacheID < cached[j].cacheID
		}
		return cached[i].core[0] < cached[j].core[0]
	})

	cores := make([]Core, len(cached))
	for i, c := range cached {
		cores[i] = c.core
	}
	node.Cores = cores
	return node
}
