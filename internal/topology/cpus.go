package topology

import (
	"errors"
	"io/fs"
	"path"
)

var errNoSiblings = errors.New("empty thread sibling list")

// ListCPUs reads every cpu<N> entry under the CPU root. A CPU whose siblings,
// core id or package id cannot be read is skipped with a warning.
func (s *Source) ListCPUs() ScanResult[CPU] {
	var result ScanResult[CPU]

	entries, err := s.listEntries(s.CPURoot, "cpu")
	if err != nil {
		s.log().Error("cannot access CPU topology", "path", s.CPURoot, "error", err)
		return result
	}

	for _, e := range entries {
		cpu, err := s.readCPU(e)
		if err != nil {
			result.Skipped = append(result.Skipped, s.skip("cpu", e.Name, err))
			continue
		}
		result.Items = append(result.Items, *cpu)
	}
	return result
}

func (s *Source) readCPU(e entry) (*CPU, error) {
	dir := path.Join(s.CPURoot, e.Name)

	siblings, err := s.Siblings(e.ID)
	if err != nil {
		return nil, err
	}
	coreID, err := s.ReadInt(path.Join(dir, "topology", "core_id"))
	if err != nil {
		return nil, err
	}
	packageID, err := s.ReadInt(path.Join(dir, "topology", "physical_package_id"))
	if err != nil {
		return nil, err
	}

	return &CPU{
		ID:        e.ID,
		CoreID:    coreID,
		PackageID: packageID,
		Siblings:  siblings,
		Node:      s.nodeOfCPU(dir),
		CacheIDs:  s.CacheIDs(e.ID),
	}, nil
}

// Siblings returns the SMT thread ids sharing a core with the given CPU.
func (s *Source) Siblings(cpuID int) ([]int, error) {
	siblings, err := s.ReadList(path.Join(s.CPURoot, cpuName(cpuID), "topology", "thread_siblings_list"))
	if err != nil {
		return nil, err
	}
	if len(siblings) == 0 {
		return nil, errNoSiblings
	}
	return siblings, nil
}

// CacheIDs returns the cache ids of a CPU ordered by cache index. Reading
// stops at the first index without a readable id.
func (s *Source) CacheIDs(cpuID int) []int {
	cacheDir := path.Join(s.CPURoot, cpuName(cpuID), "cache")
	entries, err := s.listEntries(cacheDir, "index")
	if err != nil {
		return nil
	}

	var ids []int
	for _, e := range entries {
		id, err := s.ReadInt(path.Join(cacheDir, e.Name, "id"))
		if err != nil {
			break
		}
		ids = append(ids, id)
	}
	return ids
}

// nodeOfCPU finds the node<M> marker inside a CPU directory.
func (s *Source) nodeOfCPU(dir string) *int {
	entries, err := s.listEntries(dir, "node")
	if err != nil || len(entries) == 0 {
		return nil
	}
	if len(entries) > 1 {
		s.log().Debug("cpu has several node markers, using the lowest", "path", dir)
	}
	id := entries[0].ID
	return &id
}

func (s *Source) skip(kind, name string, err error) Skipped {
	if errors.Is(err, fs.ErrNotExist) {
		s.log().Warn("incomplete "+kind+" information, skipping", kind, name, "error", err)
	} else {
		s.log().Warn("cannot read "+kind+" information, skipping", kind, name, "error", err)
	}
	return Skipped{Kind: kind, Name: name, Err: err}
}
