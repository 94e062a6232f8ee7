package writer

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"TrafficGraph/internal/config"
	"TrafficGraph/internal/factory"
	"TrafficGraph/internal/model"
)

func testResult() *model.Result {
	flows := []*model.FlowRecord{
		{
			Key:            model.FlowKey{Source: "10.0.0.1", Destination: "10.0.0.2"},
			SourceName:     "gateway.lan",
			ProtocolCounts: map[string]uint64{"TCP": 2, "UDP": 1},
			TotalCount:     3,
		},
		{
			Key:            model.FlowKey{Source: "10.0.0.2", Destination: "10.0.0.1"},
			ProtocolCounts: map[string]uint64{"TCP": 1},
			TotalCount:     1,
		},
	}
	return &model.Result{
		Summary: &model.Summary{
			SessionID:      "c0ffee00-0000-0000-0000-000000000000",
			SessionName:    "Lab",
			TotalPackets:   5,
			IPPackets:      4,
			ProtocolTotals: map[string]uint64{"TCP": 3, "UDP": 1},
			Flows:          flows,
			Errors:         []string{"invalid source address \"\": must not be empty"},
		},
		Graph: &model.Graph{
			Name: "Lab",
			Nodes: []model.Node{
				{ID: "10.0.0.1", Label: "gateway.lan", Shape: "box", Color: "blue"},
				{ID: "10.0.0.2", Label: `printer "west"`, Shape: "ellipse", Color: "black", Country: "NL"},
			},
			Edges: []model.Edge{
				{Source: "10.0.0.1", Destination: "10.0.0.2", Label: "3", Color: "red", Weight: 3, Flagged: true},
				{Source: "10.0.0.2", Destination: "10.0.0.1", Label: "1", Color: "black", Weight: 1},
			},
		},
	}
}

func TestWriteDOT(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDOT(&buf, testResult().Graph); err != nil {
		t.Fatalf("WriteDOT failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"digraph \"Lab\" {\n",
		`"10.0.0.1" [label="gateway.lan", shape="box", color="blue"];`,
		`"10.0.0.2" [label="printer \"west\"", shape="ellipse", color="black", tooltip="NL"];`,
		`"10.0.0.1" -> "10.0.0.2" [label="3", color="red", weight=3, penwidth=2];`,
		`"10.0.0.2" -> "10.0.0.1" [label="1", color="black", weight=1];`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("DOT output missing %q:\n%s", want, out)
		}
	}
	if !strings.HasSuffix(out, "}\n") {
		t.Errorf("DOT output not terminated:\n%s", out)
	}
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSummary(&buf, testResult().Summary); err != nil {
		t.Fatalf("WriteSummary failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Total Packets: 5\n",
		"Total IP Packets: 4\n",
		"\tTCP: 3\n\tUDP: 1\n",
		"Flows: 2\n",
		"10.0.0.1 (gateway.lan) -> 10.0.0.2\n\tCount: 3\n\tTCP: 2\n\tUDP: 1\n",
		"10.0.0.2 -> 10.0.0.1\n\tCount: 1\n\tTCP: 1\n",
		"Errors (1):\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Summary missing %q:\n%s", want, out)
		}
	}
}

func TestFileWriters(t *testing.T) {
	dir := t.TempDir()
	result := testResult()

	for _, typ := range []string{"dot", "json", "text"} {
		cfg := config.Default()
		cfg.Output.Writers = []config.WriterDef{{Type: typ, Enabled: true, RootPath: dir}}
		writers, err := factory.CreateWriters(cfg)
		if err != nil {
			t.Fatalf("CreateWriters(%s) failed: %v", typ, err)
		}
		if err := writers[0].Write(result); err != nil {
			t.Fatalf("%s writer failed: %v", typ, err)
		}
	}

	dot, err := os.ReadFile(filepath.Join(dir, "Lab.dot"))
	if err != nil || !strings.HasPrefix(string(dot), "digraph \"Lab\"") {
		t.Errorf("Unexpected dot file: %v\n%s", err, dot)
	}

	data, err := os.ReadFile(filepath.Join(dir, "Lab.json"))
	if err != nil {
		t.Fatalf("Failed to read json file: %v", err)
	}
	var decoded model.Result
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to decode json file: %v", err)
	}
	if len(decoded.Graph.Edges) != 2 || decoded.Summary.Flows[0].ProtocolCounts["TCP"] != 2 {
		t.Errorf("Unexpected json result: %+v", decoded)
	}

	if _, err := os.Stat(filepath.Join(dir, "Lab.txt")); err != nil {
		t.Errorf("Text report missing: %v", err)
	}
}

func TestGobWriter(t *testing.T) {
	dir := t.TempDir()
	w := NewGobWriter(dir).(*GobWriter)
	w.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }

	if err := w.Write(testResult()); err != nil {
		t.Fatalf("Gob writer failed: %v", err)
	}

	flows, summary, err := LoadSnapshot(filepath.Join(dir, "2024-01-01_12-00-00", "Lab"))
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if len(flows) != 2 || flows[0].TotalCount != 3 || flows[0].SourceName != "gateway.lan" {
		t.Errorf("Unexpected flows: %+v", flows)
	}
	if summary.TotalFlows != 2 || summary.TotalPackets != 5 || summary.SessionName != "Lab" {
		t.Errorf("Unexpected summary: %+v", summary)
	}
}

func TestSQLiteWriter(t *testing.T) {
	w, err := NewSQLiteWriter(config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "graph.db")})
	if err != nil {
		t.Fatalf("NewSQLiteWriter failed: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	result := testResult()
	// Writing twice must not duplicate rows.
	for i := 0; i < 2; i++ {
		if err := w.Write(result); err != nil {
			t.Fatalf("SQLite writer failed: %v", err)
		}
	}

	var nodes, edges int
	if err := w.DB().QueryRow(`SELECT COUNT(*) FROM nodes`).Scan(&nodes); err != nil {
		t.Fatalf("Failed to count nodes: %v", err)
	}
	if err := w.DB().QueryRow(`SELECT COUNT(*) FROM edges`).Scan(&edges); err != nil {
		t.Fatalf("Failed to count edges: %v", err)
	}
	if nodes != 2 || edges != 2 {
		t.Errorf("Expected 2 nodes and 2 edges, got %d and %d", nodes, edges)
	}

	var color, protos string
	var flagged bool
	var total int64
	err = w.DB().QueryRow(
		`SELECT color, flagged, total_count, protocol_counts FROM edges WHERE source = ? AND destination = ?`,
		"10.0.0.1", "10.0.0.2",
	).Scan(&color, &flagged, &total, &protos)
	if err != nil {
		t.Fatalf("Failed to query edge: %v", err)
	}
	if color != "red" || !flagged || total != 3 {
		t.Errorf("Unexpected edge row: color=%s flagged=%v total=%d", color, flagged, total)
	}
	var counts map[string]uint64
	if err := json.Unmarshal([]byte(protos), &counts); err != nil || counts["UDP"] != 1 {
		t.Errorf("Unexpected protocol counts %q: %v", protos, err)
	}
}

func TestFileName(t *testing.T) {
	if got := fileName("a/b:c"); got != "a_b_c" {
		t.Errorf("Expected a_b_c, got %s", got)
	}
	if got := fileName("  "); got != "session" {
		t.Errorf("Expected session, got %s", got)
	}
}

func TestWriters_RejectEmptyResult(t *testing.T) {
	dir := t.TempDir()
	for _, w := range []model.Writer{NewDOTWriter(dir), NewJSONWriter(dir), NewTextWriter(dir), NewGobWriter(dir)} {
		if err := w.Write(&model.Result{}); err == nil {
			t.Errorf("%s writer accepted an empty result", w.Name())
		}
	}
}
