package probe

import (
	"fmt"
	"time"

	"TrafficGraph/internal/model"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	kindPacket = "packet"
	kindEnd    = "end"
)

// Message is one decoded probe message: either a packet tuple or the
// end-of-capture marker carrying the probe's decoder counters.
type Message struct {
	Tuple        *model.PacketTuple
	End          bool
	TotalPackets uint64
	IPPackets    uint64
}

// EncodeTuple serializes a packet tuple to protobuf.
func EncodeTuple(tuple *model.PacketTuple) ([]byte, error) {
	msg, err := structpb.NewStruct(map[string]interface{}{
		"kind":      kindPacket,
		"timestamp": tuple.Timestamp.UTC().Format(time.RFC3339Nano),
		"src":       tuple.SrcAddr,
		"dst":       tuple.DstAddr,
		"protocol":  tuple.Protocol,
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(msg)
}

// EncodeEnd serializes the end-of-capture marker.
func EncodeEnd(totalPackets, ipPackets uint64) ([]byte, error) {
	msg, err := structpb.NewStruct(map[string]interface{}{
		"kind":          kindEnd,
		"total_packets": float64(totalPackets),
		"ip_packets":    float64(ipPackets),
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(msg)
}

// Decode parses a message produced by EncodeTuple or EncodeEnd.
func Decode(data []byte) (Message, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to unmarshal probe message: %w", err)
	}
	fields := msg.GetFields()

	switch kind := fields["kind"].GetStringValue(); kind {
	case kindPacket:
		tuple := &model.PacketTuple{
			SrcAddr:  fields["src"].GetStringValue(),
			DstAddr:  fields["dst"].GetStringValue(),
			Protocol: fields["protocol"].GetStringValue(),
		}
		if ts := fields["timestamp"].GetStringValue(); ts != "" {
			t, err := time.Parse(time.RFC3339Nano, ts)
			if err != nil {
				return Message{}, fmt.Errorf("invalid packet timestamp %q: %w", ts, err)
			}
			tuple.Timestamp = t
		}
		return Message{Tuple: tuple}, nil
	case kindEnd:
		return Message{
			End:          true,
			TotalPackets: uint64(fields["total_packets"].GetNumberValue()),
			IPPackets:    uint64(fields["ip_packets"].GetNumberValue()),
		}, nil
	default:
		return Message{}, fmt.Errorf("unknown probe message kind %q", kind)
	}
}
