package writer

import (
	"context"
	"fmt"
	"time"

	"TrafficGraph/internal/config"
	"TrafficGraph/internal/factory"
	"TrafficGraph/internal/model"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"k8s.io/klog/v2"
)

const createEdgesTableStatement = `
CREATE TABLE IF NOT EXISTS flow_graph_edges (
    Timestamp       DateTime,
    SessionID       String,
    SessionName     String,
    Source          String,
    Destination     String,
    SourceName      Nullable(String),
    DestinationName Nullable(String),
    ProtocolCounts  Map(String, UInt64),
    TotalCount      UInt64,
    Color           String,
    Flagged         Bool,
    FirstSeen       DateTime,
    LastSeen        DateTime
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (SessionName, Timestamp);
`

func init() {
	factory.RegisterWriter("clickhouse", func(def config.WriterDef) (model.Writer, error) {
		return NewClickHouseWriter(def.ClickHouse)
	})
}

// ClickHouseWriter inserts one row per flow of a session into flow_graph_edges.
type ClickHouseWriter struct {
	conn driver.Conn
}

// NewClickHouseWriter creates a new ClickHouse writer.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (model.Writer, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createEdgesTableStatement); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	klog.Info("Successfully connected to ClickHouse and ensured table exists.")

	return &ClickHouseWriter{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

func (w *ClickHouseWriter) Name() string { return "clickhouse" }

// Write inserts the flows of a session, colored as in the graph.
func (w *ClickHouseWriter) Write(result *model.Result) error {
	if result == nil || result.Summary == nil {
		return fmt.Errorf("clickhouse writer: result has no summary")
	}
	s := result.Summary
	if len(s.Flows) == 0 {
		return nil // Nothing to write
	}

	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO flow_graph_edges")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	edges := make(map[model.FlowKey]model.Edge)
	if result.Graph != nil {
		for _, e := range result.Graph.Edges {
			edges[model.FlowKey{Source: e.Source, Destination: e.Destination}] = e
		}
	}

	now := time.Now()
	for _, flow := range s.Flows {
		edge := edges[flow.Key]
		err = batch.Append(
			now,
			s.SessionID,
			s.SessionName,
			flow.Key.Source,
			flow.Key.Destination,
			nullable(flow.SourceName),
			nullable(flow.DestinationName),
			flow.ProtocolCounts,
			flow.TotalCount,
			edge.Color,
			edge.Flagged,
			orNow(flow.FirstSeen, now),
			orNow(flow.LastSeen, now),
		)
		if err != nil {
			return fmt.Errorf("failed to append flow to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	klog.Infof("Wrote %d flows to ClickHouse for session '%s'", len(s.Flows), s.SessionName)
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func orNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}
