package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ports"
)

const (
	sessionsTable = "research_sessions"
	// fixed-width UTC so updated_at sorts as text
	timeLayout    = "2006-01-02T15:04:05.000000000Z"
)

const createSessionsTable = `CREATE TABLE IF NOT EXISTS research_sessions (
	id           TEXT PRIMARY KEY,
	topic        TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	current_step INTEGER NOT NULL DEFAULT 0,
	snapshot     TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
)`

// SessionRow is the indexed part of an archived session.
type SessionRow struct {
	ID          string
	Topic       string
	Title       string
	Status      domain.SessionStatus
	CurrentStep int
	UpdatedAt   time.Time
}

// Archive persists session snapshots into a SQL table.
type Archive struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.SessionStore = (*Archive)(nil)

// OpenArchive connects to driver ("sqlite" or "postgres") and creates the
// sessions table when missing.
func OpenArchive(ctx context.Context, driver, dsn string) (*Archive, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	a := NewArchive(db, driver)
	if err := a.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

// NewArchive wires a sql.DB implementation. Postgres gets $n placeholders.
func NewArchive(db *sql.DB, driver string) *Archive {
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if driver == "postgres" {
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return &Archive{db: db, builder: builder}
}

// Migrate creates the sessions table.
func (a *Archive) Migrate(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, createSessionsTable); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Save upserts the session snapshot.
func (a *Archive) Save(ctx context.Context, session domain.ResearchSession) error {
	if a.db == nil {
		return nil
	}

	snapshot, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	query, args, err := a.builder.
		Insert(sessionsTable).
		Columns("id", "topic", "title", "status", "current_step", "snapshot", "created_at", "updated_at").
		Values(
			session.ID,
			session.Topic,
			session.Title,
			string(session.Status),
			session.Progress.CurrentStep,
			string(snapshot),
			formatTime(session.CreatedAt),
			formatTime(session.LastUpdated),
		).
		Suffix(`ON CONFLICT (id) DO UPDATE
              SET title = EXCLUDED.title,
                  status = EXCLUDED.status,
                  current_step = EXCLUDED.current_step,
                  snapshot = EXCLUDED.snapshot,
                  updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Load returns the stored snapshot or ports.ErrSessionNotFound.
func (a *Archive) Load(ctx context.Context, id string) (domain.ResearchSession, error) {
	query, args, err := a.builder.
		Select("snapshot").
		From(sessionsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.ResearchSession{}, fmt.Errorf("build select: %w", err)
	}

	var raw string
	if err := a.db.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ResearchSession{}, ports.ErrSessionNotFound
		}
		return domain.ResearchSession{}, fmt.Errorf("query session: %w", err)
	}

	var session domain.ResearchSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return domain.ResearchSession{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return session, nil
}

// Recent lists the most recently updated sessions, optionally filtered by status.
func (a *Archive) Recent(ctx context.Context, status domain.SessionStatus, limit int) ([]SessionRow, error) {
	if limit <= 0 {
		limit = 20
	}
	q := a.builder.
		Select("id", "topic", "title", "status", "current_step", "updated_at").
		From(sessionsTable).
		OrderBy("updated_at DESC").
		Limit(uint64(limit))
	if status != "" {
		q = q.Where(sq.Eq{"status": string(status)})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}

	var result []SessionRow
	for rows.Next() {
		var (
			row     SessionRow
			state   string
			updated string
		)
		if err := rows.Scan(&row.ID, &row.Topic, &row.Title, &state, &row.CurrentStep, &updated); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan session: %w", err)
		}
		row.Status = domain.SessionStatus(state)
		row.UpdatedAt, _ = time.Parse(timeLayout, updated)
		result = append(result, row)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
