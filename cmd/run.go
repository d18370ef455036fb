package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"numapin/internal/affinity"
	"numapin/internal/layout"
	"numapin/internal/topology"
	"numapin/internal/ui"
)

var ErrNoClusters = errors.New("no clusters found")

type Env struct {
	Stdout io.Writer
	Logger *slog.Logger
	// Host is written into cluster description headers; empty means the
	// local hostname.
	Host string
}

// Run executes the non-interactive modes against an already detected
// topology.
func Run(opts *Options, topo *topology.Topology, env Env) error {
	if env.Logger == nil {
		env.Logger = slog.Default()
	}

	switch opts.Mode() {
	case ModeCPU:
		if opts.JSON {
			cpus := topo.CPUs.Items
			if cpus == nil {
				cpus = []topology.CPU{}
			}
			return writeJSON(env.Stdout, cpus)
		}
		ui.PrintCPUs(env.Stdout, topo)
		return nil

	case ModeCluster:
		clusters := topo.Clusters(opts.CacheLevel, env.Logger)
		if len(clusters) == 0 {
			return ErrNoClusters
		}
		if opts.JSON {
			return writeJSON(env.Stdout, clusters)
		}
		ui.PrintClusters(env.Stdout, clusters, opts.CacheLevel)
		return nil

	case ModePinCluster:
		return WritePinning(opts, topo, affinity.StrategyClusterFirst, env)

	case ModePinPingPong:
		return WritePinning(opts, topo, affinity.StrategyPingPong, env)

	default:
		return fmt.Errorf("%w: no operation selected", ErrInvalidArguments)
	}
}

// WritePinning generates a pinning list with strategy and writes it to the
// selected output file, plus the cluster description when one is configured.
func WritePinning(opts *Options, topo *topology.Topology, strategy affinity.Strategy, env Env) error {
	clusters := topo.Clusters(opts.CacheLevel, env.Logger)
	if len(clusters) == 0 {
		return ErrNoClusters
	}

	option, err := affinity.Generate(&affinity.Request{
		Strategy:      strategy,
		NodesPerRound: opts.NodesPerRound,
		Clusters:      clusters,
	})
	if err != nil {
		if errors.Is(err, affinity.ErrInvalidNodesPerRound) {
			return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
		return err
	}
	if len(option.CPUs) == 0 {
		env.Logger.Warn("pinning list is empty, no cores found in any cluster")
	}

	path := opts.OutputPath()
	if err := layout.SavePinning(path, option.CPUs); err != nil {
		return fmt.Errorf("writing pinning file: %w", err)
	}
	env.Logger.Debug("wrote pinning list", "path", path, "cpus", len(option.CPUs))

	if opts.ClusterFile != "" {
		header := layout.Header{Host: env.Host, CacheLevel: opts.CacheLevel}
		if err := layout.SaveClusters(opts.ClusterFile, clusters, header); err != nil {
			return fmt.Errorf("writing cluster file: %w", err)
		}
	}

	ui.PrintSuccess(env.Stdout, option, path, opts.ClusterFile)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
