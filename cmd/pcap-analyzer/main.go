package main

import (
	"context"
	goflag "flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"TrafficGraph/internal/config"
	"TrafficGraph/internal/rules"
	"TrafficGraph/internal/session"
	"TrafficGraph/internal/writer"
	"TrafficGraph/pkg/pcap"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"k8s.io/klog/v2"
)

var (
	configPath   string
	sessionName  string
	renderRules  []string
	flagRules    []string
	labels       []string
	outputDir    string
	printSummary bool
	noResolve    bool
	dnsServer    string

	rootCmd = &cobra.Command{
		Use:   "pcap-analyzer [flags] <pcap file or directory>",
		Short: "Build an attributed flow graph from packet captures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(cmd, args[0])
		},
	}
)

func init() {
	addFlags(rootCmd.Flags())
	klog.InitFlags(nil)
	rootCmd.Flags().AddGoFlagSet(goflag.CommandLine)
}

func addFlags(fs *flag.FlagSet) {
	fs.StringVar(&configPath, "config", "configs/config.yaml", "Path to the YAML configuration file")
	fs.StringVarP(&sessionName, "name", "n", "", "Session name, used for the graph and output files")
	fs.StringArrayVar(&renderRules, "rule", nil, `Render rule, e.g. "target=10.0.,shape=box,color=red" (repeatable)`)
	fs.StringArrayVar(&flagRules, "flag", nil, `Flag rule, e.g. "origin=10.0.0.1|10.0.0.2,destination=8.8.8.8,color=red" (repeatable)`)
	fs.StringArrayVar(&labels, "label", nil, `Address label, e.g. "10.0.0.1=gateway" (repeatable)`)
	fs.StringVarP(&outputDir, "output", "o", "", "Write a DOT graph and a text report to this directory")
	fs.BoolVar(&printSummary, "text", false, "Print the session summary to stdout")
	fs.BoolVar(&noResolve, "no-resolve", false, "Disable reverse DNS resolution")
	fs.StringVar(&dnsServer, "dns-server", "", "DNS server used for reverse lookups instead of the system resolver")
}

func run(cmd *cobra.Command, inputPath string) error {
	// 1. Load configuration, command line values win.
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("name") {
		cfg.Session.Name = sessionName
	}
	if noResolve {
		cfg.Resolver.Enabled = false
	}
	if dnsServer != "" {
		cfg.Resolver.DNSServer = dnsServer
	}
	if outputDir != "" {
		cfg.Output.Writers = append(cfg.Output.Writers,
			config.WriterDef{Type: "dot", Enabled: true, RootPath: outputDir},
			config.WriterDef{Type: "text", Enabled: true, RootPath: outputDir},
		)
	}
	flagErrs := rules.ApplyFlags(&cfg.Rules, renderRules, flagRules, labels)
	for _, err := range flagErrs {
		klog.Warningf("Ignoring command line rule: %v", err)
	}
	klog.Info("Configuration loaded successfully.")

	// 2. Open the input before anything else; a missing source is fatal.
	reader, err := pcap.NewReader(inputPath)
	if err != nil {
		return err
	}

	// 3. Initialize the session.
	s, err := session.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer s.Close()
	for _, err := range flagErrs {
		s.RecordError(err)
	}

	// 4. Ingest until done or interrupted.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := s.Run(ctx, reader); err != nil {
		klog.Warningf("Capture reading interrupted: %v", err)
	}

	// 5. Emit results.
	if err := s.Write(); err != nil {
		klog.Warningf("Some writers failed: %v", err)
	}
	if printSummary {
		if err := writer.WriteSummary(os.Stdout, s.Summary()); err != nil {
			return fmt.Errorf("failed to print summary: %w", err)
		}
	}
	klog.Info("Analysis complete.")
	return nil
}

func main() {
	defer klog.Flush()

	if err := rootCmd.Execute(); err != nil {
		klog.Flush()
		os.Exit(1)
	}
}
