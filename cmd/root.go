package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"numapin/internal/config"
)

type Mode int

const (
	ModeInteractive Mode = iota
	ModeCPU
	ModeCluster
	ModePinCluster
	ModePinPingPong
)

type Options struct {
	CPU         bool
	Cluster     bool
	PinCluster  string
	PinPingPong string

	NodesPerRound int
	CacheLevel    int
	JSON          bool
	ClusterFile   string
	ConfigPath    string
	Verbose       bool

	nodesPerRoundSet bool
	cacheLevelSet    bool
}

var ErrInvalidArguments = errors.New("invalid arguments")

const usageExamples = `
Examples:
  numapin --cpu                                   Print CPU layout
  numapin --cluster --cache 2                     Print clusters with L2 cache optimization
  numapin --pin-cluster out.txt                   Write a cluster-first pinning list
  numapin --pin-ping-pong out.txt --nodes-per-round 2
                                                  Write a ping-pong pinning list
  numapin                                         Interactive mode
`

// ParseFlags parses args (without the program name). pflag.ErrHelp is
// returned as is after usage has been printed to output.
func ParseFlags(args []string, output io.Writer) (*Options, error) {
	opts := &Options{}
	fs := pflag.NewFlagSet("numapin", pflag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintln(output, "Usage: numapin [flags]")
		fmt.Fprintln(output)
		fmt.Fprint(output, fs.FlagUsages())
		fmt.Fprint(output, usageExamples)
	}

	fs.BoolVar(&opts.CPU, "cpu", false, "Print CPU layout information")
	fs.BoolVar(&opts.Cluster, "cluster", false, "Print cluster information")
	fs.StringVar(&opts.PinCluster, "pin-cluster", "", "Write a cluster-first pinning list to `FILE`")
	fs.StringVar(&opts.PinPingPong, "pin-ping-pong", "", "Write a ping-pong pinning list to `FILE`")
	fs.IntVarP(&opts.NodesPerRound, "nodes-per-round", "x", 1, "Nodes taken from each cluster per ping-pong round")
	fs.IntVar(&opts.CacheLevel, "cache", 3, "Cache `LEVEL` to group cores by (negative disables)")
	fs.BoolVar(&opts.JSON, "json", false, "Output in JSON format (with --cpu or --cluster)")
	fs.StringVar(&opts.ClusterFile, "cluster-file", "", "Also write the cluster description to `FILE`")
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to a YAML config `FILE` (default $"+config.EnvConfig+")")
	fs.BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable debug logging")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected argument %q", ErrInvalidArguments, fs.Arg(0))
	}

	opts.nodesPerRoundSet = fs.Changed("nodes-per-round")
	opts.cacheLevelSet = fs.Changed("cache")
	return opts, nil
}

func (o *Options) Mode() Mode {
	switch {
	case o.CPU:
		return ModeCPU
	case o.Cluster:
		return ModeCluster
	case o.PinCluster != "":
		return ModePinCluster
	case o.PinPingPong != "":
		return ModePinPingPong
	default:
		return ModeInteractive
	}
}

// OutputPath is the pinning file of the pin modes.
func (o *Options) OutputPath() string {
	if o.PinCluster != "" {
		return o.PinCluster
	}
	return o.PinPingPong
}

// Validate checks flag combinations. It runs before any file is read.
func Validate(opts *Options) error {
	if opts == nil {
		return fmt.Errorf("%w: options are required", ErrInvalidArguments)
	}

	var selected []string
	if opts.CPU {
		selected = append(selected, "--cpu")
	}
	if opts.Cluster {
		selected = append(selected, "--cluster")
	}
	if opts.PinCluster != "" {
		selected = append(selected, "--pin-cluster")
	}
	if opts.PinPingPong != "" {
		selected = append(selected, "--pin-ping-pong")
	}
	if len(selected) > 1 {
		return fmt.Errorf("%w: %s are mutually exclusive", ErrInvalidArguments, strings.Join(selected, ", "))
	}

	mode := opts.Mode()
	if opts.JSON && mode != ModeCPU && mode != ModeCluster {
		return fmt.Errorf("%w: --json requires --cpu or --cluster", ErrInvalidArguments)
	}
	if opts.ClusterFile != "" && mode != ModePinCluster && mode != ModePinPingPong {
		return fmt.Errorf("%w: --cluster-file requires --pin-cluster or --pin-ping-pong", ErrInvalidArguments)
	}
	if opts.nodesPerRoundSet {
		if mode != ModePinPingPong && mode != ModeInteractive {
			return fmt.Errorf("%w: --nodes-per-round requires --pin-ping-pong", ErrInvalidArguments)
		}
		if opts.NodesPerRound <= 0 {
			return fmt.Errorf("%w: --nodes-per-round must be a positive integer, got %d",
				ErrInvalidArguments, opts.NodesPerRound)
		}
	}
	return nil
}

// ApplyConfig fills in values the command line left unset.
func (o *Options) ApplyConfig(cfg *config.Config) {
	if !o.nodesPerRoundSet {
		o.NodesPerRound = cfg.NodesPerRound
	}
	if !o.cacheLevelSet {
		o.CacheLevel = cfg.CacheLevel
	}
	if o.ClusterFile == "" && (o.Mode() == ModePinCluster || o.Mode() == ModePinPingPong) {
		o.ClusterFile = cfg.ClusterFile
	}
}
