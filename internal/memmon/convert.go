package memmon

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

var ErrEmptyCSV = errors.New("input CSV file is empty")

// ConvertUnits rewrites the VM and RSS columns of a sample file from pages
// to 2^shift byte units, rounded to two decimals. Malformed rows are dropped
// with a warning. The file is replaced atomically.
func ConvertUnits(path string, pageSize, shift, batchSize int, logger *slog.Logger) (err error) {
	if shift < 0 {
		return fmt.Errorf("%w: unit shift must be non-negative", ErrInvalidConfig)
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("converting memory units", "unit", UnitName(shift), "path", path)

	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := convert(in, tmp, pageSize, shift, batchSize, logger); err != nil {
		return fmt.Errorf("converting units: %w", err)
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	logger.Info("unit conversion completed")
	return nil
}

func convert(r io.Reader, w io.Writer, pageSize, shift, batchSize int, logger *slog.Logger) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	writer := csv.NewWriter(w)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return ErrEmptyCSV
	}
	if err != nil {
		return err
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	divisor := math.Exp2(float64(shift))
	pending := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if len(row) < 2 {
			logger.Warn("skipping malformed row", "row", row)
			continue
		}

		vm, vmErr := strconv.Atoi(row[0])
		rss, rssErr := strconv.Atoi(row[1])
		if err := errors.Join(vmErr, rssErr); err != nil {
			logger.Warn("skipping invalid row", "row", row, "error", err)
			continue
		}
		row[0] = formatUnits(vm, pageSize, divisor)
		row[1] = formatUnits(rss, pageSize, divisor)

		if err := writer.Write(row); err != nil {
			return err
		}
		pending++
		if pending >= batchSize {
			writer.Flush()
			pending = 0
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatUnits(pages, pageSize int, divisor float64) string {
	return strconv.FormatFloat(toUnits(pages, pageSize, divisor), 'f', 2, 64)
}

func toUnits(pages, pageSize int, divisor float64) float64 {
	return math.Round(float64(pages)*float64(pageSize)/divisor*100) / 100
}
