package main

import (
	"context"
	goflag "flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TrafficGraph/internal/api"
	"TrafficGraph/internal/config"
	"TrafficGraph/internal/session"
	"TrafficGraph/pkg/pcap"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	configPath string
	listenAddr string

	rootCmd = &cobra.Command{
		Use:   "tg-api [flags] <pcap file or directory>",
		Short: "Analyze packet captures and serve the flow graph over HTTP",
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
	fs.StringVar(&listenAddr, "listen", "", "Listen address, overrides api.listen_addr")
	klog.InitFlags(nil)
	fs.AddGoFlagSet(goflag.CommandLine)
}

func run(inputPath string) error {
	// Load configuration
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if listenAddr != "" {
		cfg.API.ListenAddr = listenAddr
	}

	reader, err := pcap.NewReader(inputPath)
	if err != nil {
		return err
	}
	s, err := session.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, s, reader, api.NewServer(cfg.API.ListenAddr, s))
}

// serve ingests reader in the background while server answers requests.
// It returns once ctx is done, the server has shut down and the ingest
// goroutine, including its final write, has finished; the caller may then
// close the session.
func serve(ctx context.Context, s *session.Session, reader *pcap.Reader, server *http.Server) error {
	// Ingest in the background; the API serves the graph as it grows.
	ingestDone := make(chan struct{})
	go func() {
		defer close(ingestDone)
		if err := s.Run(ctx, reader); err != nil {
			klog.Warningf("Capture reading interrupted: %v", err)
			return
		}
		if err := s.Write(); err != nil {
			klog.Warningf("Some writers failed: %v", err)
		}
	}()

	// Start HTTP server
	go func() {
		klog.Infof("API server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			klog.Fatalf("Could not listen on %s: %v", server.Addr, err)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	klog.Info("API server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := server.Shutdown(shutdownCtx)

	<-ingestDone
	if shutdownErr != nil {
		return fmt.Errorf("server forced to shutdown: %w", shutdownErr)
	}
	klog.Info("API server exited.")
	return nil
}

func main() {
	defer klog.Flush()

	if err := rootCmd.Execute(); err != nil {
		klog.Flush()
		os.Exit(1)
	}
}
