package topology

import (
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"

	"k8s.io/utils/cpuset"
)

// ListNodes reads every node<N> entry under the node root. Nodes missing a
// readable cpulist or distance vector are skipped with a warning.
func (s *Source) ListNodes() ScanResult[*Node] {
	var result ScanResult[*Node]

	memory := s.memoryNodes()

	entries, err := s.listEntries(s.NodeRoot, "node")
	if err != nil {
		s.log().Error("cannot access NUMA topology", "path", s.NodeRoot, "error", err)
		return result
	}

	for _, e := range entries {
		node, skipped, err := s.readNode(e, memory)
		if err != nil {
			result.Skipped = append(result.Skipped, s.skip("node", e.Name, err))
			continue
		}
		result.Skipped = append(result.Skipped, skipped...)
		result.Items = append(result.Items, node)
	}
	return result
}

// memoryNodes reads the set of nodes that carry memory. Failure leaves every
// node classified as compute.
func (s *Source) memoryNodes() cpuset.CPUSet {
	name := path.Join(s.NodeRoot, "has_memory")
	data, err := fs.ReadFile(s.FS, name)
	if err != nil {
		s.log().Warn("could not read memory node information", "path", name, "error", err)
		return cpuset.New()
	}
	nodes, err := cpuset.Parse(strings.TrimSpace(string(data)))
	if err != nil {
		s.log().Warn("could not parse memory node information", "path", name, "error", err)
		return cpuset.New()
	}
	return nodes
}

func (s *Source) readNode(e entry, memory cpuset.CPUSet) (*Node, []Skipped, error) {
	dir := path.Join(s.NodeRoot, e.Name)

	cpus, err := s.ReadList(path.Join(dir, "cpulist"))
	if err != nil {
		return nil, nil, err
	}
	distance, err := s.ReadFields(path.Join(dir, "distance"))
	if err != nil {
		return nil, nil, err
	}

	var skipped []Skipped
	cores := newCoreSet()
	for _, id := range cpus {
		siblings, err := s.Siblings(id)
		if err != nil {
			name := fmt.Sprintf("%s/%s", e.Name, cpuName(id))
			skipped = append(skipped, s.skip("core", name, err))
			continue
		}
		cores.add(siblings)
	}

	return &Node{
		ID:       e.ID,
		Memory:   memory.Contains(e.ID),
		Cores:    cores.list(),
		Distance: distance,
	}, skipped, nil
}

// coreSet is an insertion-ordered set of cores.
type coreSet struct {
	seen  map[string]struct{}
	cores []Core
}

func newCoreSet() *coreSet {
	return &coreSet{seen: make(map[string]struct{})}
}

func (c *coreSet) add(core Core) bool {
	key := coreKey(core)
	if _, ok := c.seen[key]; ok {
		return false
	}
	c.seen[key] = struct{}{}
	c.cores = append(c.cores, core)
	return true
}

func (c *coreSet) list() []Core {
	return c.cores
}

func coreKey(core Core) string {
	parts := make([]string, len(core))
	for i, id := range core {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
