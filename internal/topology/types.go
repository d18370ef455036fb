package topology

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

type CPU struct {
	ID        int   `json:"logical_id"`
	CoreID    int   `json:"core_id"`
	Siblings  []int `json:"siblings"`
	Node      *int  `json:"numa_node"`
	CacheIDs  []int `json:"cache_ids"`
	PackageID int   `json:"package_id"`
}

// Core is one physical core: its SMT sibling logical ids, primary thread first.
type Core []int

type Node struct {
	ID       int    `json:"id"`
	Memory   bool   `json:"memory"`
	Cores    []Core `json:"cores_list"`
	Distance []int  `json:"distance"`
}

// DistanceTo reports the distance from n to node id. A missing entry is
// infinite and reported as false.
func (n *Node) DistanceTo(id int) (int, bool) {
	if id < 0 || id >= len(n.Distance) {
		return 0, false
	}
	return n.Distance[id], true
}

func (n *Node) Clone() *Node {
	clone := &Node{
		ID:       n.ID,
		Memory:   n.Memory,
		Cores:    make([]Core, len(n.Cores)),
		Distance: append([]int(nil), n.Distance...),
	}
	for i, core := range n.Cores {
		clone.Cores[i] = append(Core(nil), core...)
	}
	return clone
}

func (n *Node) Kind() string {
	if n.Memory {
		return "Memory"
	}
	return "Compute"
}

func (n *Node) CPUs() []int {
	var cpus []int
	for _, core := range n.Cores {
		cpus = append(cpus, core...)
	}
	return cpus
}

// Cluster is a memory node (index 0) followed by its nearest compute nodes.
type Cluster []*Node

func (c Cluster) Anchor() *Node {
	if len(c) == 0 {
		return nil
	}
	return c[0]
}

// Skipped records an entity left out of a scan and the reason why.
type Skipped struct {
	Kind string
	Name string
	Err  error
}

func (s Skipped) Error() string {
	return fmt.Sprintf("%s %s: %v", s.Kind, s.Name, s.Err)
}

func (s Skipped) Unwrap() error {
	return s.Err
}

type ScanResult[T any] struct {
	Items   []T
	Skipped []Skipped
}

// Err folds every skip reason into one error, nil when nothing was skipped.
func (r ScanResult[T]) Err() error {
	var result *multierror.Error
	for _, s := range r.Skipped {
		result = multierror.Append(result, s)
	}
	return result.ErrorOrNil()
}

type Topology struct {
	CPUs  ScanResult[CPU]
	Nodes ScanResult[*Node]

	// source is the tree the snapshot was read from, nil for hand-built
	// snapshots.
	source *Source
}

func (t *Topology) TotalCPUs() int {
	return len(t.CPUs.Items)
}

func (t *Topology) TotalCores() int {
	count := 0
	for _, cpu := range t.CPUs.Items {
		if len(cpu.Siblings) == 0 || cpu.Siblings[0] == cpu.ID {
			count++
		}
	}
	return count
}

func (t *Topology) HasSMT() bool {
	return t.TotalCPUs() > t.TotalCores()
}
