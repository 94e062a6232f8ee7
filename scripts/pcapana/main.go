package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"TrafficGraph/internal/model"
	"TrafficGraph/pkg/pcap"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/pcapana/main.go <path_to_pcap_file>")
		os.Exit(1)
	}

	reader, err := pcap.NewReader(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}

	tuples := make(chan *model.PacketTuple, 1024)
	go reader.ReadPackets(context.Background(), tuples)

	i := 0
	for tuple := range tuples {
		i++
		fmt.Printf("%d %s %s -> %s %s\n", i, tuple.Timestamp.Format("15:04:05.000000"), tuple.SrcAddr, tuple.DstAddr, tuple.Protocol)
	}

	fmt.Printf("Total packets: %d, IP packets: %d\n", reader.TotalPackets(), reader.IPPackets())
	for _, err := range reader.Errors() {
		fmt.Printf("Error: %v\n", err)
	}
}
