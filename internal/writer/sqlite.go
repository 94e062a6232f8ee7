package writer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"TrafficGraph/internal/config"
	"TrafficGraph/internal/factory"
	"TrafficGraph/internal/model"

	"k8s.io/klog/v2"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	total_packets INTEGER NOT NULL,
	ip_packets INTEGER NOT NULL,
	protocol_totals JSON NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS nodes (
	session_id TEXT NOT NULL,
	address TEXT NOT NULL,
	label TEXT NOT NULL,
	shape TEXT NOT NULL,
	color TEXT NOT NULL,
	country TEXT,
	PRIMARY KEY (session_id, address),
	FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS edges (
	session_id TEXT NOT NULL,
	source TEXT NOT NULL,
	destination TEXT NOT NULL,
	color TEXT NOT NULL,
	flagged INTEGER NOT NULL,
	total_count INTEGER NOT NULL,
	protocol_counts JSON NOT NULL,
	PRIMARY KEY (session_id, source, destination),
	FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(session_id, source);
CREATE INDEX IF NOT EXISTS idx_edges_destination ON edges(session_id, destination);
`

func init() {
	factory.RegisterWriter("sqlite", func(def config.WriterDef) (model.Writer, error) {
		return NewSQLiteWriter(def.SQLite)
	})
}

// SQLiteWriter stores every session, its nodes and its edges in a SQLite
// database. Writing the same session twice replaces the earlier rows.
type SQLiteWriter struct {
	db *sql.DB
}

// NewSQLiteWriter opens the database and ensures the schema exists.
func NewSQLiteWriter(cfg config.SQLiteConfig) (*SQLiteWriter, error) {
	path := cfg.Path
	if path == "" {
		path = "trafficgraph.db"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Serialize access; a single connection also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	klog.Infof("Opened SQLite database at %s", path)
	return &SQLiteWriter{db: db}, nil
}

func (w *SQLiteWriter) Name() string { return "sqlite" }

// DB exposes the underlying handle for queries.
func (w *SQLiteWriter) DB() *sql.DB { return w.db }

// Close closes the database.
func (w *SQLiteWriter) Close() error { return w.db.Close() }

func (w *SQLiteWriter) Write(result *model.Result) error {
	if result == nil || result.Summary == nil || result.Graph == nil {
		return fmt.Errorf("sqlite writer: result needs a summary and a graph")
	}
	s := result.Summary
	ctx := context.Background()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"edges", "nodes", "sessions"} {
		column := "session_id"
		if table == "sessions" {
			column = "id"
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, column), s.SessionID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	totals, err := json.Marshal(s.ProtocolTotals)
	if err != nil {
		return fmt.Errorf("failed to marshal protocol totals: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, name, total_packets, ip_packets, protocol_totals, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		s.SessionID, s.SessionName, int64(s.TotalPackets), int64(s.IPPackets), string(totals), time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	for _, n := range result.Graph.Nodes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO nodes (session_id, address, label, shape, color, country) VALUES (?, ?, ?, ?, ?, ?)`,
			s.SessionID, n.ID, n.Label, n.Shape, n.Color, n.Country,
		); err != nil {
			return fmt.Errorf("failed to insert node %s: %w", n.ID, err)
		}
	}

	counts := make(map[model.FlowKey]map[string]uint64, len(s.Flows))
	for _, flow := range s.Flows {
		counts[flow.Key] = flow.ProtocolCounts
	}
	for _, e := range result.Graph.Edges {
		protos, err := json.Marshal(counts[model.FlowKey{Source: e.Source, Destination: e.Destination}])
		if err != nil {
			return fmt.Errorf("failed to marshal protocol counts: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO edges (session_id, source, destination, color, flagged, total_count, protocol_counts) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			s.SessionID, e.Source, e.Destination, e.Color, e.Flagged, int64(e.Weight), string(protos),
		); err != nil {
			return fmt.Errorf("failed to insert edge %s -> %s: %w", e.Source, e.Destination, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	klog.Infof("Wrote %d nodes and %d edges to SQLite for session '%s'", len(result.Graph.Nodes), len(result.Graph.Edges), s.SessionName)
	return nil
}
