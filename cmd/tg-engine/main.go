package main

import (
	goflag "flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"TrafficGraph/internal/config"
	"TrafficGraph/internal/engine/streamaggregator"
	"TrafficGraph/internal/session"
	"TrafficGraph/internal/writer"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	configPath   string
	natsURL      string
	printSummary bool

	rootCmd = &cobra.Command{
		Use:   "tg-engine",
		Short: "Aggregate packet tuples from NATS into a flow graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run()
		},
	}
)

func init() {
	fs := rootCmd.Flags()
	fs.StringVar(&configPath, "config", "configs/config.yaml", "Path to the YAML configuration file")
	fs.StringVar(&natsURL, "nats-url", "", "NATS server URL, overrides probe.nats_url")
	fs.BoolVar(&printSummary, "text", false, "Print the session summary to stdout")
	klog.InitFlags(nil)
	fs.AddGoFlagSet(goflag.CommandLine)
}

func run() error {
	klog.Info("Starting tg-engine...")

	// 1. Load configuration
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if natsURL != "" {
		cfg.Probe.NATSURL = natsURL
	}

	// 2. Create the session and the stream aggregator feeding it
	s, err := session.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer s.Close()

	streamAgg := streamaggregator.NewStreamAggregator(cfg, s)
	if err := streamAgg.Start(); err != nil {
		return fmt.Errorf("failed to start stream aggregator: %w", err)
	}

	// 3. Wait for the end of the capture or a shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-streamAgg.Done():
		klog.Info("Probe finished, building graph...")
	case <-sigChan:
		klog.Info("Shutdown signal received, building graph from what was received...")
	}
	streamAgg.Stop()

	// 4. Emit results
	if err := s.Write(); err != nil {
		klog.Warningf("Some writers failed: %v", err)
	}
	if printSummary {
		if err := writer.WriteSummary(os.Stdout, s.Summary()); err != nil {
			return fmt.Errorf("failed to print summary: %w", err)
		}
	}
	klog.Info("Shutdown complete.")
	return nil
}

func main() {
	defer klog.Flush()

	if err := rootCmd.Execute(); err != nil {
		klog.Flush()
		os.Exit(1)
	}
}
