package main

import (
	"context"
	"flag"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/brettbedarf/termfs/adapters"
	"github.com/brettbedarf/termfs/config"
	"github.com/brettbedarf/termfs/filesystem"
	"github.com/brettbedarf/termfs/internal/util"
	"github.com/brettbedarf/termfs/requests"
	"github.com/brettbedarf/termfs/server"
)

func main() {
	// Parse command line arguments
	var (
		configPath string
		verbose    int
		nodesDef   string
		umount     bool
	)
	flag.StringVar(&configPath, "config", "", "Path to config override file (.yaml, .yml or .json)")
	flag.StringVar(&configPath, "c", "", "--config (shorthand)")
	flag.StringVar(&nodesDef, "nodes", "", "Path to nodes def file (.yaml, .yml or .json)")
	flag.StringVar(&nodesDef, "n", "", "--nodes (shorthand)")
	flag.BoolVar(&umount, "umount", false,
		"Unmount the fs first if needed before mounting again. Useful for debuggers that don't exit properly.")
	flag.BoolVar(&umount, "u", false, "--umount (shorthand)")
	flag.IntVar(&verbose, "verbose", config.InfoVerbose, "Log verbosity level between 1 (error) and 5 (trace). Default is 3 (info).")
	flag.IntVar(&verbose, "v", config.InfoVerbose, "--verbose (shorthand)")
	flag.Parse()

	verboseSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "v" || f.Name == "verbose" {
			verboseSet = true
		}
	})

	// Build config: defaults < config file < cli flags
	override := &config.ConfigOverride{}
	if configPath != "" {
		fileOverride, err := config.LoadConfigOverrideFile(configPath)
		if err != nil {
			util.InitializeLogger(config.DefaultLogLvl)
			logger := util.GetLogger("main")
			logger.Fatal().Err(err).Str("config", configPath).Msg("Failed to load config file")
		}
		override = fileOverride
	}
	if verboseSet || override.LogLvl == nil {
		override.LogLvl = &verbose
	}
	cfg := config.NewConfig(override)

	// Initialize logger
	util.InitializeLogger(cfg.LogLvl)
	logger := util.GetLogger("main")

	mnt := flag.Arg(0)
	logger.Info().Int("verbose", verbose).Str("config", configPath).Str("nodes", nodesDef).Str("mnt", mnt).Msg("termfs initializing")

	// Register all built-in content sources
	adapters.RegisterBuiltins()

	fs := filesystem.NewFS(cfg)

	// Load nodes
	if nodesDef != "" {
		dtos, err := requests.LoadFile(nodesDef)
		if err != nil {
			logger.Fatal().Err(err).Str("nodes", nodesDef).Msg("Failed to read nodes file")
		}
		logger.Debug().Str("nodes", nodesDef).Int("count", len(dtos)).Msg("Nodes file loaded successfully")

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.SourceTimeout*float64(time.Second)))
		added, failed := addNodes(ctx, fs, dtos, requests.NewDefaults(cfg))
		cancel()
		logger.Info().Int("added", added).Int("failed", failed).Msg("Added new nodes to filesystem")
	} else {
		logger.Warn().Msg("No nodes file provided")
	}

	// Without a mount point just show the tree
	if mnt == "" {
		if err := printListing(os.Stdout, fs); err != nil {
			logger.Fatal().Err(err).Msg("Failed to print listing")
		}
		return
	}

	// Try unmount if requested
	if umount { // send cli command
		cmd := exec.Command("fusermount", "-u", mnt)
		// we ignore error here if not already mounted
		cmd.Run() // nolint:errcheck
	}

	// Serve
	srv := server.New(fs)
	if err := srv.Serve(mnt); err != nil {
		logger.Fatal().Err(err).Msg("Failed to mount filesystem")
	}

	// Setup signal handling for graceful shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	logger.Info().Str("mountpoint", mnt).Msg("Filesystem mounted successfully")

	// Wait for termination signal
	sig := <-signalChan
	logger.Info().Str("signal", sig.String()).Msg("Received signal, unmounting filesystem")

	// Unmount the filesystem
	if err := srv.Unmount(); err != nil {
		logger.Error().Err(err).Msg("Failed to unmount filesystem")
	} else {
		logger.Info().Msg("Filesystem unmounted successfully")
	}
}

// addNodes converts and adds every definition, logging the ones that fail.
// Definitions are applied in file order so links can point at earlier nodes.
func addNodes(ctx context.Context, fs *filesystem.FileSystem, dtos []requests.NodeRequestDTO, defaults requests.Defaults) (added, failed int) {
	logger := util.GetLogger("main.addNodes")

	reqs, err := requests.ConvertAll(ctx, dtos, defaults)
	if err != nil {
		logger.Error().Err(err).Msg("Skipped invalid node definitions")
		failed = len(dtos) - len(reqs)
	}

	for _, req := range reqs {
		if _, err := fs.AddNode(req); err != nil {
			logger.Error().Err(err).Str("uuid", req.UUID).Msg("Failed to add node")
			failed++
			continue
		}
		added++
	}
	return added, failed
}
