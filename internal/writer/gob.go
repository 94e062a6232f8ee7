package writer

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"TrafficGraph/internal/config"
	"TrafficGraph/internal/factory"
	"TrafficGraph/internal/model"

	"k8s.io/klog/v2"
)

const (
	snapshotTimeFormat = "2006-01-02_15-04-05"
	flowsFileName      = "flows.gob"
	summaryFileName    = "summary.json"
)

func init() {
	factory.RegisterWriter("gob", func(def config.WriterDef) (model.Writer, error) {
		return NewGobWriter(def.RootPath), nil
	})
}

// SnapshotSummary holds the metadata stored next to a gob snapshot.
type SnapshotSummary struct {
	SessionID      string            `json:"session_id"`
	SessionName    string            `json:"session_name"`
	TotalFlows     int               `json:"total_flows"`
	TotalPackets   uint64            `json:"total_packets"`
	IPPackets      uint64            `json:"ip_packets"`
	ProtocolTotals map[string]uint64 `json:"protocol_totals"`
	Timestamp      string            `json:"timestamp"`
}

// GobWriter stores the flows of a session in gob format under
// <root>/<timestamp>/<session>/, with a JSON summary beside them.
type GobWriter struct {
	rootPath string
	now      func() time.Time
}

// NewGobWriter creates a new writer for flow snapshots.
func NewGobWriter(rootPath string) model.Writer {
	return &GobWriter{rootPath: orCurrentDir(rootPath), now: time.Now}
}

func (w *GobWriter) Name() string { return "gob" }

// Write serializes the flows of a finished session to disk.
func (w *GobWriter) Write(result *model.Result) error {
	if result == nil || result.Summary == nil {
		return fmt.Errorf("gob writer: result has no summary")
	}
	s := result.Summary
	now := w.now()

	// 1. Create timestamped directory, one subdirectory per session.
	sessionDir := filepath.Join(w.rootPath, now.Format(snapshotTimeFormat), fileName(s.SessionName))
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	// 2. Write the flows.
	flowsPath := filepath.Join(sessionDir, flowsFileName)
	file, err := os.Create(flowsPath)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file '%s': %w", flowsPath, err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(s.Flows); err != nil {
		return fmt.Errorf("failed to encode flows to gob for file '%s': %w", flowsPath, err)
	}

	// 3. Write the summary file.
	summary := SnapshotSummary{
		SessionID:      s.SessionID,
		SessionName:    s.SessionName,
		TotalFlows:     len(s.Flows),
		TotalPackets:   s.TotalPackets,
		IPPackets:      s.IPPackets,
		ProtocolTotals: s.ProtocolTotals,
		Timestamp:      now.UTC().Format(time.RFC3339),
	}
	summaryPath := filepath.Join(sessionDir, summaryFileName)
	summaryFile, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer summaryFile.Close()

	jsonEncoder := json.NewEncoder(summaryFile)
	jsonEncoder.SetIndent("", "  ")
	if err := jsonEncoder.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}

	klog.Infof("Wrote snapshot of %d flows to %s", len(s.Flows), sessionDir)
	return nil
}

// LoadSnapshot reads the flows and summary stored by GobWriter in dir.
func LoadSnapshot(dir string) ([]*model.FlowRecord, *SnapshotSummary, error) {
	file, err := os.Open(filepath.Join(dir, flowsFileName))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer file.Close()

	var flows []*model.FlowRecord
	if err := gob.NewDecoder(file).Decode(&flows); err != nil {
		return nil, nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, summaryFileName))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read snapshot summary: %w", err)
	}
	var summary SnapshotSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, nil, fmt.Errorf("failed to decode snapshot summary: %w", err)
	}
	return flows, &summary, nil
}
