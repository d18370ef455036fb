package pinner

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignWrapsAround(t *testing.T) {
	p, err := New([]int{4, 0, 5})
	require.NoError(t, err)

	assert.Equal(t, []int{4, 0, 5, 4, 0}, p.Assign(5))
	assert.Equal(t, []int{4}, p.Assign(1))
	assert.Nil(t, p.Assign(0))
}

func TestAssignGroups(t *testing.T) {
	p, err := New([]int{0, 1, 2, 3, 4, 5})
	require.NoError(t, err)

	tests := []struct {
		name  string
		a, b  int
		wantA []int
		wantB []int
	}{
		{name: "smaller first", a: 2, b: 4, wantA: []int{0, 3}, wantB: []int{1, 2, 4, 5}},
		{name: "argument order kept", a: 4, b: 2, wantA: []int{1, 2, 4, 5}, wantB: []int{0, 3}},
		{name: "equal groups alternate", a: 3, b: 3, wantA: []int{0, 2, 4}, wantB: []int{1, 3, 5}},
		{name: "coprime sizes", a: 2, b: 3, wantA: []int{0, 1}, wantB: []int{2, 3, 4}},
		{name: "empty first group", a: 0, b: 2, wantA: nil, wantB: []int{0, 1}},
		{name: "empty second group", a: 7, b: 0, wantA: []int{0, 1, 2, 3, 4, 5, 0}, wantB: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := p.AssignGroups(tt.a, tt.b)
			assert.Equal(t, tt.wantA, a)
			assert.Equal(t, tt.wantB, b)
		})
	}
}

func TestAssignGroupsWrapsAround(t *testing.T) {
	p, err := New([]int{7, 8})
	require.NoError(t, err)

	a, b := p.AssignGroups(1, 2)
	assert.Equal(t, []int{7}, a)
	assert.Equal(t, []int{8, 7}, b)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pinning.txt")
	require.NoError(t, os.WriteFile(path, []byte("2\n0\n"), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, p.CPUs())

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = Load(empty)
	assert.ErrorIs(t, err, ErrEmptyPinning)

	_, err = New(nil)
	assert.ErrorIs(t, err, ErrEmptyPinning)
}

func TestPinWorkers(t *testing.T) {
	allowed, err := GetAffinity(0)
	if err != nil {
		t.Skipf("affinity unavailable: %v", err)
	}
	require.NotEmpty(t, allowed)

	p, err := New(allowed)
	require.NoError(t, err)

	var mu sync.Mutex
	seen := map[int]int{}
	err = p.PinWorkers(3, func(worker, cpu int) {
		current, err := GetAffinity(0)
		assert.NoError(t, err)
		assert.Equal(t, []int{cpu}, current)
		mu.Lock()
		seen[worker] = cpu
		mu.Unlock()
	})
	require.NoError(t, err)
	assert.Equal(t, map[int]int{0: p.Assign(3)[0], 1: p.Assign(3)[1], 2: p.Assign(3)[2]}, seen)
}
