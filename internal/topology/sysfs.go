package topology

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
)

const (
	SysfsBasePath = "/sys"

	cpuSubdir  = "devices/system/cpu"
	nodeSubdir = "devices/system/node"
)

var ErrEmptyAttribute = errors.New("empty attribute")

// Source reads topology attributes out of a sysfs-shaped tree. Paths are
// slash-separated and relative to FS.
type Source struct {
	FS       fs.FS
	CPURoot  string
	NodeRoot string
	Logger   *slog.Logger
}

// NewSource returns a Source for the sysfs tree mounted at root.
func NewSource(root string, logger *slog.Logger) *Source {
	if root == "" {
		root = SysfsBasePath
	}
	return NewSourceFS(os.DirFS(root), logger)
}

// NewSourceFS returns a Source over an arbitrary tree laid out like /sys.
func NewSourceFS(fsys fs.FS, logger *slog.Logger) *Source {
	return &Source{
		FS:       fsys,
		CPURoot:  cpuSubdir,
		NodeRoot: nodeSubdir,
		Logger:   logger,
	}
}

func (s *Source) log() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Source) ReadInt(name string) (int, error) {
	data, err := fs.ReadFile(s.FS, name)
	if err != nil {
		return 0, err
	}
	value, err := parseInt(string(data))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return value, nil
}

// ReadList reads a comma-separated list where each token is an id or an
// inclusive "a-b" range. File order is kept; empty content is an empty list.
func (s *Source) ReadList(name string) ([]int, error) {
	data, err := fs.ReadFile(s.FS, name)
	if err != nil {
		return nil, err
	}
	values, err := parseList(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return values, nil
}

// ReadFields reads a whitespace-separated list of integers.
func (s *Source) ReadFields(name string) ([]int, error) {
	data, err := fs.ReadFile(s.FS, name)
	if err != nil {
		return nil, err
	}
	values, err := parseFields(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return values, nil
}

type entry struct {
	ID   int
	Name string
}

// listEntries returns the <prefix><N> entries of dir sorted by N.
func (s *Source) listEntries(dir, prefix string) ([]entry, error) {
	dirEntries, err := fs.ReadDir(s.FS, dir)
	if err != nil {
		return nil, err
	}

	entries := make([]entry, 0, len(dirEntries))
	for _, dirEntry := range dirEntries {
		id, ok := enumeratedID(dirEntry.Name(), prefix)
		if !ok {
			continue
		}
		entries = append(entries, entry{ID: id, Name: dirEntry.Name()})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

func enumeratedID(name, prefix string) (int, bool) {
	if !strings.HasPrefix(name, prefix) {
		return 0, false
	}
	suffix := strings.TrimPrefix(name, prefix)
	if suffix == "" {
		return 0, false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, false
	}
	return id, true
}

func cpuName(id int) string {
	return "cpu" + strconv.Itoa(id)
}

func parseInt(data string) (int, error) {
	value := strings.TrimSpace(data)
	if value == "" {
		return 0, ErrEmptyAttribute
	}
	return strconv.Atoi(value)
}

func parseList(data string) ([]int, error) {
	raw := strings.TrimSpace(data)
	if raw == "" {
		return []int{}, nil
	}

	parts := strings.Split(raw, ",")
	values := make([]int, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		if strings.Contains(item, "-") {
			bounds := strings.SplitN(item, "-", 2)
			start, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
			if err != nil {
				return nil, err
			}
			end, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
			if err != nil {
				return nil, err
			}
			if end < start {
				return nil, fmt.Errorf("invalid range %q", item)
			}
			for i := start; i <= end; i++ {
				values = append(values, i)
			}
			continue
		}
		parsed, err := strconv.Atoi(item)
		if err != nil {
			return nil, err
		}
		values = append(values, parsed)
	}
	return values, nil
}

func parseFields(data string) ([]int, error) {
	fields := strings.Fields(data)
	values := make([]int, 0, len(fields))
	for _, field := range fields {
		parsed, err := strconv.Atoi(field)
		if err != nil {
			return nil, err
		}
		values = append(values, parsed)
	}
	return values, nil
}
