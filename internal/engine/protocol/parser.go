package protocol

import (
	"errors"
	"time"

	"TrafficGraph/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ErrNotIP is returned for packets without an IPv4 or IPv6 layer. Such
// packets are counted by the reader but never reach the aggregator.
var ErrNotIP = errors.New("not an IP packet")

// ParsePacket extracts the source address, destination address and transport
// protocol name from a decoded packet.
func ParsePacket(packet gopacket.Packet) (*model.PacketTuple, error) {
	tuple := &model.PacketTuple{
		Timestamp: time.Now(), // Overwritten by capture metadata when available.
	}
	if meta := packet.Metadata(); meta != nil && !meta.Timestamp.IsZero() {
		tuple.Timestamp = meta.Timestamp
	}

	if l := packet.Layer(layers.LayerTypeIPv4); l != nil {
		ip := l.(*layers.IPv4)
		tuple.SrcAddr = ip.SrcIP.String()
		tuple.DstAddr = ip.DstIP.String()
		tuple.Protocol = ProtocolName(ip.Protocol)
		return tuple, nil
	}
	if l := packet.Layer(layers.LayerTypeIPv6); l != nil {
		ip := l.(*layers.IPv6)
		tuple.SrcAddr = ip.SrcIP.String()
		tuple.DstAddr = ip.DstIP.String()
		tuple.Protocol = ProtocolName(ip.NextHeader)
		// Extension headers hide the transport; prefer the decoded transport layer.
		if t := packet.TransportLayer(); t != nil {
			tuple.Protocol = t.LayerType().String()
		}
		return tuple, nil
	}

	if errLayer := packet.ErrorLayer(); errLayer != nil {
		return nil, errLayer.Error()
	}
	return nil, ErrNotIP
}

// ParseData decodes raw frame bytes of the given link type and parses them.
func ParseData(data []byte, decoder gopacket.Decoder) (*model.PacketTuple, error) {
	return ParsePacket(gopacket.NewPacket(data, decoder, gopacket.Default))
}

// ProtocolName returns the display name of an IP protocol number.
func ProtocolName(p layers.IPProtocol) string {
	return p.String()
}
