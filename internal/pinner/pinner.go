// Package pinner hands out CPUs from a pinning list to workers and binds
// threads or processes to them.
package pinner

import (
	"errors"
	"fmt"

	"numapin/internal/layout"
)

var (
	ErrEmptyPinning = errors.New("pinning list is empty")
	ErrUnsupported  = errors.New("CPU affinity is not supported on this platform")
)

// Pinner assigns CPUs in pinning-list order, wrapping around when workers
// outnumber CPUs.
type Pinner struct {
	cpus []int
}

func New(cpus []int) (*Pinner, error) {
	if len(cpus) == 0 {
		return nil, ErrEmptyPinning
	}
	return &Pinner{cpus: append([]int(nil), cpus...)}, nil
}

// Load reads a pinning list written by numapin.
func Load(path string) (*Pinner, error) {
	cpus, err := layout.LoadPinning(path)
	if err != nil {
		return nil, err
	}
	p, err := New(cpus)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func (p *Pinner) CPUs() []int {
	return append([]int(nil), p.cpus...)
}

// Assign returns the CPU for each of n workers: worker i gets cpus[i % len].
func (p *Pinner) Assign(n int) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, n)
	for i := range out {
		out[i] = p.cpus[i%len(p.cpus)]
	}
	return out
}

// AssignGroups splits the list between two worker groups in proportion to
// their sizes. The smaller group takes the first batch; batches of
// size/gcd(a, b) alternate, each consuming the next CPUs of the list. The
// returned slices follow the argument order.
func (p *Pinner) AssignGroups(a, b int) ([]int, []int) {
	a, b = max(a, 0), max(b, 0)
	switch {
	case a == 0:
		return nil, p.Assign(b)
	case b == 0:
		return p.Assign(a), nil
	}

	swapped := a > b
	small, large := a, b
	if swapped {
		small, large = b, a
	}

	d := gcd(small, large)
	smallBatch, largeBatch := small/d, large/d

	gs := make([]int, 0, small)
	gl := make([]int, 0, large)
	next := 0
	take := func() int {
		cpu := p.cpus[next%len(p.cpus)]
		next++
		return cpu
	}
	for len(gs) < small || len(gl) < large {
		for i := 0; i < smallBatch && len(gs) < small; i++ {
			gs = append(gs, take())
		}
		for i := 0; i < largeBatch && len(gl) < large; i++ {
			gl = append(gl, take())
		}
	}

	if swapped {
		return gl, gs
	}
	return gs, gl
}

// PinWorkers locks each OS thread running fn to its assigned CPU. fn runs on
// its own goroutine per worker and receives the worker index and CPU.
func (p *Pinner) PinWorkers(n int, fn func(worker, cpu int)) error {
	cpus := p.Assign(n)
	errs := make(chan error, n)
	for i, cpu := range cpus {
		go func(worker, cpu int) {
			unlock, err := PinCurrentThread(cpu)
			if err != nil {
				errs <- fmt.Errorf("worker %d on CPU %d: %w", worker, cpu, err)
				return
			}
			defer unlock()
			fn(worker, cpu)
			errs <- nil
		}(i, cpu)
	}

	var result error
	for range cpus {
		if err := <-errs; err != nil {
			result = errors.Join(result, err)
		}
	}
	return result
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
