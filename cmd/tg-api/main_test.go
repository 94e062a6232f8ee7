package main

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"TrafficGraph/internal/config"
	"TrafficGraph/internal/model"
	"TrafficGraph/internal/pcapgen"
	"TrafficGraph/internal/resolver"
	"TrafficGraph/internal/session"
	"TrafficGraph/pkg/pcap"
)

// slowWriter blocks inside Write long enough for a shutdown to race it.
type slowWriter struct {
	startOnce sync.Once
	started   chan struct{}
	finished  int32
}

func (w *slowWriter) Write(*model.Result) error {
	w.startOnce.Do(func() { close(w.started) })
	time.Sleep(100 * time.Millisecond)
	atomic.StoreInt32(&w.finished, 1)
	return nil
}

func (w *slowWriter) Name() string { return "slow" }

func TestServe_WaitsForFinalWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.pcap")
	packets := []pcapgen.Packet{
		{Src: "10.0.0.1", Dst: "10.0.0.2", Protocol: "TCP"},
		{Src: "10.0.0.2", Dst: "10.0.0.1", Protocol: "TCP"},
	}
	if err := pcapgen.WriteFile(path, packets); err != nil {
		t.Fatalf("Failed to write capture: %v", err)
	}
	reader, err := pcap.NewReader(path)
	if err != nil {
		t.Fatalf("Failed to create reader: %v", err)
	}

	w := &slowWriter{started: make(chan struct{})}
	s, err := session.New(config.Default(), session.WithResolver(resolver.Disabled{}), session.WithWriters(w))
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	server := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- serve(ctx, s, reader, server) }()

	select {
	case <-w.started:
	case <-time.After(5 * time.Second):
		t.Fatal("Writer never started")
	}
	cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("serve failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
	if atomic.LoadInt32(&w.finished) != 1 {
		t.Error("serve returned while the final write was still running")
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
