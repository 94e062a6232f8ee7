package pcap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"TrafficGraph/internal/model"
	"TrafficGraph/internal/pcapgen"
)

func writeCapture(t *testing.T, path string, packets []pcapgen.Packet) {
	t.Helper()
	if err := pcapgen.WriteFile(path, packets); err != nil {
		t.Fatalf("Failed to write capture: %v", err)
	}
}

func TestReader_ReadPackets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pcap")
	writeCapture(t, path, []pcapgen.Packet{
		{Src: "10.0.0.1", Dst: "10.0.0.2", Protocol: "TCP"},
		{Protocol: "ARP"},
		{Src: "10.0.0.2", Dst: "10.0.0.1", Protocol: "UDP"},
	})

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("Failed to create reader: %v", err)
	}

	out := make(chan *model.PacketTuple)
	go reader.ReadPackets(context.Background(), out)

	var tuples []*model.PacketTuple
	for tuple := range out {
		tuples = append(tuples, tuple)
	}

	if len(tuples) != 2 {
		t.Fatalf("Expected 2 IP tuples, got %d", len(tuples))
	}
	if tuples[0].SrcAddr != "10.0.0.1" || tuples[0].Protocol != "TCP" {
		t.Errorf("Unexpected first tuple: %+v", tuples[0])
	}
	if tuples[1].SrcAddr != "10.0.0.2" || tuples[1].Protocol != "UDP" {
		t.Errorf("Unexpected second tuple: %+v", tuples[1])
	}
	if reader.TotalPackets() != 3 {
		t.Errorf("Expected 3 total packets, got %d", reader.TotalPackets())
	}
	if reader.IPPackets() != 2 {
		t.Errorf("Expected 2 IP packets, got %d", reader.IPPackets())
	}
	if errs := reader.Errors(); len(errs) != 0 {
		t.Errorf("Expected no errors, got %v", errs)
	}
}

func TestNewReader_Directory(t *testing.T) {
	dir := t.TempDir()
	writeCapture(t, filepath.Join(dir, "b.pcap"), []pcapgen.Packet{{Src: "10.0.0.3", Dst: "10.0.0.4", Protocol: "TCP"}})
	writeCapture(t, filepath.Join(dir, "a.pcap"), []pcapgen.Packet{{Src: "10.0.0.1", Dst: "10.0.0.2", Protocol: "TCP"}})
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	reader, err := NewReader(dir)
	if err != nil {
		t.Fatalf("Failed to create reader: %v", err)
	}
	files := reader.Files()
	if len(files) != 2 || filepath.Base(files[0]) != "a.pcap" || filepath.Base(files[1]) != "b.pcap" {
		t.Fatalf("Unexpected files: %v", files)
	}

	out := make(chan *model.PacketTuple, 4)
	if err := reader.ReadPackets(context.Background(), out); err != nil {
		t.Fatalf("ReadPackets failed: %v", err)
	}
	count := 0
	for range out {
		count++
	}
	if count != 2 {
		t.Errorf("Expected 2 tuples, got %d", count)
	}
}

func TestNewReader_SourceNotFound(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewReader(filepath.Join(dir, "missing.pcap")); !errors.Is(err, model.ErrSourceNotFound) {
		t.Errorf("Expected ErrSourceNotFound for missing file, got %v", err)
	}
	if _, err := NewReader(dir); !errors.Is(err, model.ErrSourceNotFound) {
		t.Errorf("Expected ErrSourceNotFound for empty directory, got %v", err)
	}
}

func TestReader_CorruptFileIsRecorded(t *testing.T) {
	dir := t.TempDir()
	writeCapture(t, filepath.Join(dir, "good.pcap"), []pcapgen.Packet{{Src: "10.0.0.1", Dst: "10.0.0.2", Protocol: "UDP"}})
	if err := os.WriteFile(filepath.Join(dir, "bad.pcap"), []byte("garbage!"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	reader, err := NewReader(dir)
	if err != nil {
		t.Fatalf("Failed to create reader: %v", err)
	}
	out := make(chan *model.PacketTuple, 4)
	if err := reader.ReadPackets(context.Background(), out); err != nil {
		t.Fatalf("ReadPackets failed: %v", err)
	}
	count := 0
	for range out {
		count++
	}
	if count != 1 {
		t.Errorf("Expected the good file to be read, got %d tuples", count)
	}
	if errs := reader.Errors(); len(errs) != 1 {
		t.Errorf("Expected 1 recorded error, got %v", errs)
	}
}

func TestReader_Cancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pcap")
	writeCapture(t, path, []pcapgen.Packet{
		{Src: "10.0.0.1", Dst: "10.0.0.2", Protocol: "TCP"},
		{Src: "10.0.0.1", Dst: "10.0.0.2", Protocol: "TCP"},
	})
	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("Failed to create reader: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := make(chan *model.PacketTuple) // Unbuffered and never drained.
	if err := reader.ReadFile(ctx, path, out); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}
