package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	log "github.com/sirupsen/logrus"
)

const (
	KindTopology = "topology"
	KindLink     = "link"

	createEventsTable = `
		CREATE TABLE IF NOT EXISTS pathfinder_events (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			kind VARCHAR(16) NOT NULL,
			entity VARCHAR(255) NOT NULL,
			outcome VARCHAR(16) NOT NULL,
			event_time DATETIME(6) NOT NULL,
			recorded_at DATETIME(6) NOT NULL,
			INDEX idx_recorded_at (recorded_at)
		)`
)

// Entry is one applied event as kept in the audit log.
type Entry struct {
	Kind       string    `json:"kind"`
	Entity     string    `json:"entity,omitempty"`
	Outcome    string    `json:"outcome"`
	EventTime  time.Time `json:"event_time"`
	RecordedAt time.Time `json:"recorded_at"`
}

// AuditLog stores event outcomes in MySQL.
type AuditLog struct {
	db *sql.DB
}

// ConnectToDB opens a pooled MySQL handle and checks it answers.
func ConnectToDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}
	log.Infof("Audit database connection pool initialized successfully.")
	return db, nil
}

func NewAuditLog(db *sql.DB) *AuditLog {
	return &AuditLog{db: db}
}

func (a *AuditLog) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, createEventsTable); err != nil {
		return fmt.Errorf("create pathfinder_events: %w", err)
	}
	return nil
}

func (a *AuditLog) Record(ctx context.Context, e Entry) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO pathfinder_events (kind, entity, outcome, event_time, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		e.Kind, e.Entity, e.Outcome, e.EventTime.UTC(), e.RecordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert event %s/%s: %w", e.Kind, e.Entity, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (a *AuditLog) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT kind, entity, outcome, event_time, recorded_at FROM pathfinder_events ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Kind, &e.Entity, &e.Outcome, &e.EventTime, &e.RecordedAt); err != nil {
			log.Errorf("Recent, scan event row failed, err=%s", err)
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return entries, nil
}

func (a *AuditLog) Close() error {
	return a.db.Close()
}
