package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"TrafficGraph/internal/pcapgen"
)

var protocols = []string{"TCP", "TCP", "TCP", "UDP", "UDP", "ICMPv4"}

func main() {
	outputFile := flag.String("o", "test.pcap", "Output pcap file path")
	packetCount := flag.Int("c", 1000, "Number of packets to generate")
	hostCount := flag.Int("hosts", 16, "Number of distinct hosts in 10.0.0.0/24")
	arpEvery := flag.Int("arp", 50, "Insert an ARP frame every N packets (0 disables)")
	flag.Parse()

	if *hostCount < 2 || *hostCount > 254 {
		log.Fatalf("hosts must be between 2 and 254")
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	log.Printf("Generating %d packets between %d hosts into %s...", *packetCount, *hostCount, *outputFile)

	packets := make([]pcapgen.Packet, 0, *packetCount)
	for i := 0; i < *packetCount; i++ {
		if *arpEvery > 0 && i%*arpEvery == *arpEvery-1 {
			packets = append(packets, pcapgen.Packet{Protocol: "ARP"})
			continue
		}
		src := rng.Intn(*hostCount) + 1
		dst := rng.Intn(*hostCount-1) + 1
		if dst >= src {
			dst++
		}
		payload := make([]byte, rng.Intn(1400)+50)
		rng.Read(payload)
		packets = append(packets, pcapgen.Packet{
			Src:      fmt.Sprintf("10.0.0.%d", src),
			Dst:      fmt.Sprintf("10.0.0.%d", dst),
			Protocol: protocols[rng.Intn(len(protocols))],
			Payload:  payload,
		})
	}

	if err := pcapgen.WriteFile(*outputFile, packets); err != nil {
		log.Fatalf("Failed to write capture: %v", err)
	}
	log.Printf("Successfully generated %d packets into %s.", len(packets), *outputFile)
}
