package main

import (
	"fmt"
	"log"
	"os"

	"TrafficGraph/internal/writer"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/gobana/main.go <snapshot_dir>")
		os.Exit(1)
	}

	flows, summary, err := writer.LoadSnapshot(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to load snapshot: %v", err)
	}

	fmt.Printf("Session %s (%s) taken at %s\n", summary.SessionName, summary.SessionID, summary.Timestamp)
	fmt.Printf("Packets: %d total, %d IP, %d flows\n", summary.TotalPackets, summary.IPPackets, summary.TotalFlows)
	fmt.Println("Decoded Flows:")
	for _, flow := range flows {
		fmt.Printf("%s -> %s: %d %v\n", flow.Key.Source, flow.Key.Destination, flow.TotalCount, flow.ProtocolCounts)
	}
}
