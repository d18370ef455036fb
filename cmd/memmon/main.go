package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"numapin/internal/config"
	"numapin/internal/memmon"
	"numapin/internal/ui"
)

var errUsage = errors.New("invalid arguments")

type options struct {
	output     string
	interval   time.Duration
	maxRows    int
	batchSize  int
	unit       string
	noConvert  bool
	pin        string
	configPath string
	procRoot   string
	summary    bool
	json       bool
	verbose    bool
	command    []string

	set map[string]bool
}

func parseFlags(args []string, output io.Writer) (*options, error) {
	opts := &options{set: map[string]bool{}}
	fs := pflag.NewFlagSet("memmon", pflag.ContinueOnError)
	fs.SetOutput(output)
	fs.SetInterspersed(false)
	fs.Usage = func() {
		fmt.Fprintln(output, "Usage: memmon [flags] -- COMMAND [ARGS...]")
		fmt.Fprintln(output)
		fmt.Fprint(output, fs.FlagUsages())
	}

	fs.StringVarP(&opts.output, "output", "o", "memory.csv", "CSV `FILE` receiving VM,RSS,Step rows")
	fs.DurationVarP(&opts.interval, "interval", "i", time.Second, "Sampling interval")
	fs.IntVar(&opts.maxRows, "max-rows", 1000, "Stop after this many samples")
	fs.IntVar(&opts.batchSize, "batch-size", 1000, "Rows buffered before each flush")
	fs.StringVarP(&opts.unit, "unit", "u", "MB", "Unit of the converted file: pages, bytes, KB, MB, GB")
	fs.BoolVar(&opts.noConvert, "no-convert", false, "Keep raw page counts")
	fs.StringVar(&opts.pin, "pin", "", "Restrict the command to the CPUs of a pinning `FILE`")
	fs.StringVar(&opts.configPath, "config", "", "Path to a YAML config `FILE` (default $"+config.EnvConfig+")")
	fs.StringVar(&opts.procRoot, "proc", "/proc", "procfs mount point")
	fs.BoolVar(&opts.summary, "summary", false, "Print peak, mean and p95 memory use when done")
	fs.BoolVar(&opts.json, "json", false, "Print the summary as JSON")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	opts.command = fs.Args()
	if len(opts.command) == 0 {
		return nil, fmt.Errorf("%w: a command to monitor is required", errUsage)
	}
	fs.Visit(func(f *pflag.Flag) { opts.set[f.Name] = true })
	return opts, nil
}

// monitorConfig merges config file defaults with the flags that were set.
func (o *options) monitorConfig(cfg config.MemmonConfig) (memmon.Config, error) {
	mc := memmon.DefaultConfig()
	mc.Output = o.output
	mc.PinningFile = o.pin
	mc.Interval = cfg.Interval
	mc.MaxRows = cfg.MaxRows
	mc.BatchSize = cfg.BatchSize
	unit := cfg.Unit

	if o.set["interval"] {
		mc.Interval = o.interval
	}
	if o.set["max-rows"] {
		mc.MaxRows = o.maxRows
	}
	if o.set["batch-size"] {
		mc.BatchSize = o.batchSize
	}
	if o.set["unit"] {
		unit = o.unit
	}

	shift, convert, err := memmon.ParseUnit(unit)
	if err != nil {
		return mc, err
	}
	mc.UnitShift = shift
	mc.Convert = convert && !o.noConvert
	return mc, mc.Validate()
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		exitWithError(err)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		exitWithError(fmt.Errorf("%w: %v", errUsage, err))
	}
	logger := cfg.NewLogger(os.Stderr, opts.verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, cfg, logger, os.Stdout); err != nil {
		stop()
		exitWithError(err)
	}
}

func run(ctx context.Context, opts *options, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	mc, err := opts.monitorConfig(cfg.Memmon)
	if err != nil {
		return err
	}

	source, err := memmon.NewProcSampler(opts.procRoot)
	if err != nil {
		return fmt.Errorf("opening procfs: %w", err)
	}
	monitor, err := memmon.New(mc, source, logger)
	if err != nil {
		return err
	}
	monitor.Stdout = stdout

	result, err := monitor.Run(ctx, opts.command)
	if err != nil {
		return err
	}

	pageSize := os.Getpagesize()
	if mc.Convert {
		if err := memmon.ConvertUnits(mc.Output, pageSize, mc.UnitShift, mc.BatchSize, logger); err != nil {
			return fmt.Errorf("converting %s: %w", mc.Output, err)
		}
		logger.Info("converted samples", "unit", memmon.UnitName(mc.UnitShift))
	}

	if opts.summary || opts.json {
		summary, err := memmon.Summarize(result.Samples, pageSize, mc.UnitShift)
		if err != nil {
			return err
		}
		return printSummary(stdout, summary, opts.json)
	}
	return nil
}

func printSummary(w io.Writer, s *memmon.Summary, asJSON bool) error {
	if asJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(s)
	}
	_, err := fmt.Fprintf(w, "samples=%d unit=%s peak_vm=%.2f peak_rss=%.2f mean_rss=%.2f p95_rss=%.2f\n",
		s.Samples, s.Unit, s.PeakVM, s.PeakRSS, s.MeanRSS, s.P95RSS)
	return err
}

func exitWithError(err error) {
	ui.PrintError(err)
	switch {
	case errors.Is(err, errUsage), errors.Is(err, memmon.ErrInvalidConfig):
		os.Exit(2)
	case errors.Is(err, memmon.ErrPermissionDenied):
		os.Exit(5)
	default:
		os.Exit(1)
	}
}
