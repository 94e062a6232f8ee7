package main

import (
	"context"
	goflag "flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"TrafficGraph/internal/config"
	"TrafficGraph/internal/model"
	"TrafficGraph/internal/probe"
	"TrafficGraph/pkg/pcap"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	configPath string
	natsURL    string
	subject    string

	rootCmd = &cobra.Command{
		Use:   "tg-probe [flags] <pcap file or directory>",
		Short: "Decode packet captures and publish packet tuples to NATS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(args[0])
		},
	}
)

func init() {
	fs := rootCmd.Flags()
	fs.StringVar(&configPath, "config", "configs/config.yaml", "Path to the YAML configuration file")
	fs.StringVar(&natsURL, "nats-url", "", "NATS server URL, overrides probe.nats_url")
	fs.StringVar(&subject, "subject", "", "NATS subject, overrides probe.subject")
	klog.InitFlags(nil)
	fs.AddGoFlagSet(goflag.CommandLine)
}

func run(inputPath string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if natsURL != "" {
		cfg.Probe.NATSURL = natsURL
	}
	if subject != "" {
		cfg.Probe.Subject = subject
	}

	reader, err := pcap.NewReader(inputPath)
	if err != nil {
		return err
	}

	pub, err := probe.NewPublisher(cfg.Probe)
	if err != nil {
		return err
	}
	defer pub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tuples := make(chan *model.PacketTuple, cfg.Session.SizeOfPacketChannel)
	readErr := make(chan error, 1)
	go func() {
		readErr <- reader.ReadPackets(ctx, tuples)
	}()

	published := 0
	for tuple := range tuples {
		if err := pub.Publish(tuple); err != nil {
			klog.Errorf("Failed to publish packet: %v", err)
			continue
		}
		published++
		if published%1000 == 0 {
			klog.Infof("%d packets published...", published)
		}
	}
	if err := <-readErr; err != nil {
		klog.Warningf("Capture reading interrupted: %v", err)
	}
	for _, err := range reader.Errors() {
		klog.Warningf("Capture error: %v", err)
	}

	if err := pub.PublishEnd(reader.TotalPackets(), reader.IPPackets()); err != nil {
		return fmt.Errorf("failed to publish end of capture: %w", err)
	}
	klog.Infof("Published %d of %d packets to '%s'.", published, reader.TotalPackets(), cfg.Probe.Subject)
	return nil
}

func main() {
	defer klog.Flush()

	if err := rootCmd.Execute(); err != nil {
		klog.Flush()
		os.Exit(1)
	}
}
