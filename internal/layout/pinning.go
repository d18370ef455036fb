// Package layout writes and reads the flat text files produced by numapin: the
// pinning list (one logical CPU id per line) and the cluster description.
package layout

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

func WritePinning(w io.Writer, cpus []int) error {
	bw := bufio.NewWriter(w)
	for _, id := range cpus {
		if _, err := fmt.Fprintf(bw, "%d\n", id); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func SavePinning(path string, cpus []int) error {
	return saveFile(path, func(w io.Writer) error {
		return WritePinning(w, cpus)
	})
}

// ReadPinning parses a pinning list. Blank lines and '#' comments are ignored.
func ReadPinning(r io.Reader) ([]int, error) {
	var cpus []int
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid CPU id %q", lineNo, line)
		}
		if id < 0 {
			return nil, fmt.Errorf("line %d: negative CPU id %d", lineNo, id)
		}
		cpus = append(cpus, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cpus, nil
}

func LoadPinning(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadPinning(f)
}

func saveFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
