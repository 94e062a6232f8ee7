package streamaggregator

import (
	"context"
	"testing"

	"TrafficGraph/internal/config"
	"TrafficGraph/internal/model"
	"TrafficGraph/internal/probe"
	"TrafficGraph/internal/session"
)

type noResolver struct{}

func (noResolver) Resolve(context.Context, string) (string, bool) { return "", false }

func TestHandleMessage(t *testing.T) {
	cfg := config.Default()
	s, err := session.New(cfg, session.WithResolver(noResolver{}), session.WithWriters())
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	sa := NewStreamAggregator(cfg, s)

	for _, tuple := range []*model.PacketTuple{
		{SrcAddr: "A", DstAddr: "B", Protocol: "TCP"},
		{SrcAddr: "A", DstAddr: "B", Protocol: "UDP"},
		{SrcAddr: "B", DstAddr: "A", Protocol: "TCP"},
	} {
		data, err := probe.EncodeTuple(tuple)
		if err != nil {
			t.Fatalf("EncodeTuple failed: %v", err)
		}
		msg, err := probe.Decode(data)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		sa.HandleMessage(msg)
	}

	select {
	case <-sa.Done():
		t.Fatal("Done closed before the end marker")
	default:
	}

	sa.HandleMessage(probe.Message{End: true, TotalPackets: 4, IPPackets: 3})
	sa.HandleMessage(probe.Message{End: true}) // A repeated marker is harmless.
	<-sa.Done()

	summary := s.Summary()
	if len(summary.Flows) != 2 || summary.TotalPackets != 4 || summary.IPPackets != 3 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
	sa.Stop()
}
