//go:build !linux

package pinner

func SetAffinity(pid int, cpus []int) error {
	return ErrUnsupported
}

func GetAffinity(pid int) ([]int, error) {
	return nil, ErrUnsupported
}

func PinCurrentThread(cpu int) (func(), error) {
	return nil, ErrUnsupported
}
