package memmon

import (
	"errors"
	"math"

	"github.com/montanaflynn/stats"
)

var ErrNoSamples = errors.New("no samples collected")

type Summary struct {
	Samples int     `json:"samples"`
	Unit    string  `json:"unit"`
	PeakVM  float64 `json:"peak_vm"`
	PeakRSS float64 `json:"peak_rss"`
	MeanRSS float64 `json:"mean_rss"`
	P95RSS  float64 `json:"p95_rss"`
}

// Summarize reports peak, mean and 95th percentile memory use of samples in
// 2^shift byte units.
func Summarize(samples []Sample, pageSize, shift int) (*Summary, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	divisor := math.Exp2(float64(shift))
	vm := make(stats.Float64Data, len(samples))
	rss := make(stats.Float64Data, len(samples))
	for i, s := range samples {
		vm[i] = toUnits(s.VMPages, pageSize, divisor)
		rss[i] = toUnits(s.RSSPages, pageSize, divisor)
	}

	summary := &Summary{Samples: len(samples), Unit: UnitName(shift)}
	var err error
	if summary.PeakVM, err = vm.Max(); err != nil {
		return nil, err
	}
	if summary.PeakRSS, err = rss.Max(); err != nil {
		return nil, err
	}
	if summary.MeanRSS, err = rss.Mean(); err != nil {
		return nil, err
	}
	if summary.P95RSS, err = rss.Percentile(95); err != nil {
		return nil, err
	}
	return summary, nil
}
