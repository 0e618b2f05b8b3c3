package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	errorskg "github.com/sweetpotato0/batchsum/errors"
	"github.com/sweetpotato0/batchsum/rag/summarizer"
)

// PostgresStore implements ResultStore using PostgreSQL
type PostgresStore struct {
	db    *sql.DB
	table string
}

var _ ResultStore = (*PostgresStore)(nil)

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	Table    string
}

// DefaultPostgresConfig returns default PostgreSQL configuration
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		Host:    "localhost",
		Port:    5432,
		User:    "postgres",
		DBName:  "batchsum",
		SSLMode: "disable",
		Table:   "summaries",
	}
}

// DSN renders the lib/pq connection string.
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// NewPostgresStore connects, pings and creates the results table if needed.
func NewPostgresStore(ctx context.Context, config *PostgresConfig) (*PostgresStore, error) {
	if config == nil {
		config = DefaultPostgresConfig()
	}
	table := config.Table
	if table == "" {
		table = "summaries"
	}

	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	s := &PostgresStore{db: db, table: table}
	if err := s.createTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) createTable(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		run_id VARCHAR(255) NOT NULL,
		group_index INTEGER NOT NULL,
		position INTEGER NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		context TEXT NOT NULL DEFAULT '',
		metadata JSONB,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (run_id, group_index, position)
	);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_created_at ON %[1]s(created_at);
	`, s.table)

	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Save upserts all records of out in one transaction.
func (s *PostgresStore) Save(ctx context.Context, runID string, out summarizer.Output) error {
	if runID == "" {
		return fmt.Errorf("%w: run id cannot be empty", errorskg.ErrInvalidInput)
	}
	records := Records(runID, out, time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
	INSERT INTO %s (run_id, group_index, position, title, content, context, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (run_id, group_index, position) DO UPDATE SET
		title = EXCLUDED.title,
		content = EXCLUDED.content,
		context = EXCLUDED.context,
		metadata = EXCLUDED.metadata,
		created_at = EXCLUDED.created_at
	`, s.table))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		metadataJSON := []byte("{}")
		if len(r.Summary.Metadata) > 0 {
			if metadataJSON, err = json.Marshal(r.Summary.Metadata); err != nil {
				return fmt.Errorf("failed to marshal metadata: %w", err)
			}
		}
		ctxText, _ := r.Summary.Context()
		if _, err := stmt.ExecContext(ctx,
			r.RunID, r.Group, r.Position,
			r.Summary.Title, r.Summary.Content, ctxText,
			string(metadataJSON), r.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to save summary to PostgreSQL: %w", err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) Load(ctx context.Context, runID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
	SELECT group_index, position, title, content, metadata, created_at
	FROM %s
	WHERE run_id = $1
	ORDER BY group_index, position`, s.table), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r := Record{RunID: runID}
		var metadataJSON sql.NullString
		if err := rows.Scan(&r.Group, &r.Position, &r.Summary.Title, &r.Summary.Content, &metadataJSON, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		r.Summary.Metadata = make(map[string]any)
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &r.Summary.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summaries: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("run %q: %w", runID, errorskg.ErrNotFound)
	}
	return records, nil
}

// Delete removes every record of runID.
func (s *PostgresStore) Delete(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE run_id = $1`, s.table), runID)
	return err
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
