// Package pcapgen builds synthetic Ethernet frames and capture files.
package pcapgen

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

var (
	srcMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	dstMAC = net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA}
)

// Packet describes one frame to generate. Protocol is "TCP", "UDP", "ICMPv4"
// or "ARP"; Src and Dst may be IPv4 or IPv6 addresses.
type Packet struct {
	Src      string
	Dst      string
	Protocol string
	Payload  []byte
}

// Frame serializes p into an Ethernet frame.
func Frame(p Packet) ([]byte, error) {
	src, dst := net.ParseIP(p.Src), net.ParseIP(p.Dst)
	if p.Protocol != "ARP" && (src == nil || dst == nil) {
		return nil, fmt.Errorf("invalid addresses %q -> %q", p.Src, p.Dst)
	}

	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC}
	var stack []gopacket.SerializableLayer

	if p.Protocol == "ARP" {
		eth.EthernetType = layers.EthernetTypeARP
		arp := &layers.ARP{
			AddrType:          layers.LinkTypeEthernet,
			Protocol:          layers.EthernetTypeIPv4,
			HwAddressSize:     6,
			ProtAddressSize:   4,
			Operation:         layers.ARPRequest,
			SourceHwAddress:   []byte(srcMAC),
			SourceProtAddress: []byte{10, 0, 0, 1},
			DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
			DstProtAddress:    []byte{10, 0, 0, 2},
		}
		stack = append(stack, eth, arp)
		return serialize(stack)
	}

	var network gopacket.NetworkLayer
	proto := ipProtocol(p.Protocol)
	if src.To4() != nil {
		eth.EthernetType = layers.EthernetTypeIPv4
		ip := &layers.IPv4{SrcIP: src.To4(), DstIP: dst.To4(), Version: 4, TTL: 64, Protocol: proto}
		network = ip
		stack = append(stack, eth, ip)
	} else {
		eth.EthernetType = layers.EthernetTypeIPv6
		ip := &layers.IPv6{SrcIP: src, DstIP: dst, Version: 6, HopLimit: 64, NextHeader: proto}
		network = ip
		stack = append(stack, eth, ip)
	}

	switch p.Protocol {
	case "TCP":
		tcp := &layers.TCP{SrcPort: 40000, DstPort: 443, SYN: true, Window: 14600}
		if err := tcp.SetNetworkLayerForChecksum(network); err != nil {
			return nil, err
		}
		stack = append(stack, tcp)
	case "UDP":
		udp := &layers.UDP{SrcPort: 40000, DstPort: 53}
		if err := udp.SetNetworkLayerForChecksum(network); err != nil {
			return nil, err
		}
		stack = append(stack, udp)
	case "ICMPv4":
		stack = append(stack, &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)})
	default:
		return nil, fmt.Errorf("unsupported protocol %q", p.Protocol)
	}
	stack = append(stack, gopacket.Payload(p.Payload))
	return serialize(stack)
}

func ipProtocol(name string) layers.IPProtocol {
	switch name {
	case "TCP":
		return layers.IPProtocolTCP
	case "UDP":
		return layers.IPProtocolUDP
	case "ICMPv4":
		return layers.IPProtocolICMPv4
	}
	return layers.IPProtocolNoNextHeader
}

func serialize(stack []gopacket.SerializableLayer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, stack...); err != nil {
		return nil, fmt.Errorf("failed to serialize layers: %w", err)
	}
	return buf.Bytes(), nil
}

// Write writes packets as a classic pcap stream.
func Write(w io.Writer, packets []Packet) error {
	pcapWriter := pcapgo.NewWriter(w)
	if err := pcapWriter.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		return fmt.Errorf("failed to write pcap header: %w", err)
	}

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, p := range packets {
		data, err := Frame(p)
		if err != nil {
			return fmt.Errorf("packet %d: %w", i, err)
		}
		ci := gopacket.CaptureInfo{
			Timestamp:     ts.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(data),
			Length:        len(data),
		}
		if err := pcapWriter.WritePacket(ci, data); err != nil {
			return fmt.Errorf("failed to write packet %d: %w", i, err)
		}
	}
	return nil
}

// WriteFile creates path and writes packets into it.
func WriteFile(path string, packets []Packet) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create capture file: %w", err)
	}
	defer f.Close()
	return Write(f, packets)
}
