// Package memmon samples the memory footprint of a child process into a CSV
// file with one VM,RSS,Step row per interval.
package memmon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrInvalidConfig    = errors.New("invalid monitor configuration")
	ErrPermissionDenied = errors.New("permission denied")
)

type Config struct {
	Interval  time.Duration
	MaxRows   int
	BatchSize int
	Output    string

	// UnitShift selects the unit of the converted file: 0 bytes, 10 KB,
	// 20 MB, 30 GB. Ignored unless Convert is set.
	UnitShift int
	Convert   bool

	// PinningFile, when set, restricts the child to the CPUs it lists.
	PinningFile string
}

func DefaultConfig() Config {
	return Config{
		Interval:  time.Second,
		MaxRows:   1000,
		BatchSize: 1000,
		UnitShift: 20,
		Convert:   true,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %s", c.Interval))
	}
	if c.MaxRows <= 0 {
		errs = append(errs, fmt.Errorf("max rows must be positive, got %d", c.MaxRows))
	}
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch size must be positive, got %d", c.BatchSize))
	}
	if _, ok := unitNames[c.UnitShift]; !ok {
		errs = append(errs, fmt.Errorf("unit shift must be 0, 10, 20 or 30, got %d", c.UnitShift))
	}
	if c.Output == "" {
		errs = append(errs, errors.New("output file is required"))
	} else if info, err := os.Stat(filepath.Dir(c.Output)); err != nil || !info.IsDir() {
		errs = append(errs, fmt.Errorf("output directory does not exist: %s", filepath.Dir(c.Output)))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

var unitNames = map[int]string{0: "bytes", 10: "KB", 20: "MB", 30: "GB"}

func UnitName(shift int) string {
	if name, ok := unitNames[shift]; ok {
		return name
	}
	return fmt.Sprintf("2^%d bytes", shift)
}

// ParseUnit maps a unit name to its shift. "pages" means no conversion.
func ParseUnit(name string) (shift int, convert bool, err error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "PAGES":
		return 0, false, nil
	case "BYTES", "B":
		return 0, true, nil
	case "KB":
		return 10, true, nil
	case "MB":
		return 20, true, nil
	case "GB":
		return 30, true, nil
	default:
		return 0, false, fmt.Errorf("%w: unknown unit %q", ErrInvalidConfig, name)
	}
}
