package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/pflag"

	"numapin/cmd"
	"numapin/internal/config"
	"numapin/internal/topology"
	"numapin/internal/ui"
)

func main() {
	opts, err := cmd.ParseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		exitWithError(err)
	}
	if err := cmd.Validate(opts); err != nil {
		exitWithError(err)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		exitWithError(fmt.Errorf("%w: %v", cmd.ErrInvalidArguments, err))
	}
	opts.ApplyConfig(cfg)
	logger := cfg.NewLogger(os.Stderr, opts.Verbose)

	topo, err := topology.Detect(topology.NewSource(cfg.SysfsRoot, logger))
	if err != nil {
		exitWithError(err)
	}

	if opts.Mode() == cmd.ModeInteractive {
		clusters := topo.Clusters(opts.CacheLevel, logger)
		if len(clusters) == 0 {
			exitWithError(cmd.ErrNoClusters)
		}
		if err := ui.Run(ui.Session{
			Topology:      topo,
			Clusters:      clusters,
			CacheLevel:    opts.CacheLevel,
			NodesPerRound: opts.NodesPerRound,
			ClusterFile:   cfg.ClusterFile,
		}); err != nil {
			exitWithError(err)
		}
		return
	}

	if err := cmd.Run(opts, topo, cmd.Env{Stdout: os.Stdout, Logger: logger}); err != nil {
		exitWithError(err)
	}
}

func exitWithError(err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, cmd.ErrInvalidArguments):
		ui.PrintError(err)
		os.Exit(2)
	case errors.Is(err, fs.ErrPermission):
		ui.PrintError(errors.New("Permission denied. Try running with sudo."))
		os.Exit(5)
	case errors.Is(err, cmd.ErrNoClusters):
		ui.PrintError(errors.New("No clusters found. The system reports no usable NUMA nodes."))
		os.Exit(3)
	default:
		ui.PrintError(err)
		os.Exit(1)
	}
}
