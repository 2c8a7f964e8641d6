package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/marbeck/viperdojo/internal/game"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id                      INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at              TEXT    NOT NULL,
	duration_ms             INTEGER NOT NULL,
	outcome                 TEXT    NOT NULL,
	rounds                  INTEGER NOT NULL,
	starting_confidence     INTEGER NOT NULL,
	starting_patience       INTEGER NOT NULL,
	ending_confidence       INTEGER NOT NULL,
	ending_patience         INTEGER NOT NULL,
	biggest_confidence_drop INTEGER NOT NULL,
	biggest_patience_drop   INTEGER NOT NULL,
	artifact_path           TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS key_moments (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  INTEGER NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	offset_ms   INTEGER NOT NULL,
	kind        TEXT    NOT NULL,
	description TEXT    NOT NULL,
	confidence  INTEGER NOT NULL,
	patience    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_key_moments_session ON key_moments(session_id);
`

// Store persists finished sessions in a local SQLite database.
type Store struct {
	db *sql.DB
}

// OpenStore opens (and if needed initializes) the database at path.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveSummary writes a session and its moments in one transaction and returns
// the new session ID.
func (s *Store) SaveSummary(ctx context.Context, sum *Summary) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (
			started_at, duration_ms, outcome, rounds,
			starting_confidence, starting_patience,
			ending_confidence, ending_patience,
			biggest_confidence_drop, biggest_patience_drop, artifact_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.StartedAt.UTC().Format(time.RFC3339Nano),
		sum.Duration.Milliseconds(),
		string(sum.Outcome),
		sum.Rounds,
		sum.StartingConfidence,
		sum.StartingPatience,
		sum.EndingConfidence,
		sum.EndingPatience,
		sum.BiggestConfidenceDrop,
		sum.BiggestPatienceDrop,
		sum.ArtifactPath,
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: session id: %w", err)
	}

	for _, m := range sum.Moments {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO key_moments (session_id, offset_ms, kind, description, confidence, patience)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, m.Offset.Milliseconds(), string(m.Kind), m.Description, m.Confidence, m.Patience,
		); err != nil {
			return 0, fmt.Errorf("store: insert moment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	return id, nil
}

// StoredSession is one row from the sessions table.
type StoredSession struct {
	ID        int64
	StartedAt time.Time
	Duration  time.Duration
	Outcome   game.Outcome
	Rounds    int

	StartingConfidence    int
	StartingPatience      int
	EndingConfidence      int
	EndingPatience        int
	BiggestConfidenceDrop int
	BiggestPatienceDrop   int
	ArtifactPath          string
}

// Sessions lists all stored sessions, most recent first.
func (s *Store) Sessions(ctx context.Context) ([]StoredSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, duration_ms, outcome, rounds,
		       starting_confidence, starting_patience,
		       ending_confidence, ending_patience,
		       biggest_confidence_drop, biggest_patience_drop, artifact_path
		FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var out []StoredSession
	for rows.Next() {
		var (
			sess       StoredSession
			startedAt  string
			durationMS int64
			outcome    string
		)
		if err := rows.Scan(
			&sess.ID, &startedAt, &durationMS, &outcome, &sess.Rounds,
			&sess.StartingConfidence, &sess.StartingPatience,
			&sess.EndingConfidence, &sess.EndingPatience,
			&sess.BiggestConfidenceDrop, &sess.BiggestPatienceDrop, &sess.ArtifactPath,
		); err != nil {
			return nil, fmt.Errorf("store: scan session: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("store: parse started_at %q: %w", startedAt, err)
		}
		sess.StartedAt = ts
		sess.Duration = time.Duration(durationMS) * time.Millisecond
		sess.Outcome = game.Outcome(outcome)
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Moments returns the timeline for one stored session in offset order.
func (s *Store) Moments(ctx context.Context, sessionID int64) ([]Moment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT offset_ms, kind, description, confidence, patience
		FROM key_moments WHERE session_id = ? ORDER BY offset_ms, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list moments: %w", err)
	}
	defer rows.Close()

	var out []Moment
	for rows.Next() {
		var (
			m        Moment
			offsetMS int64
			kind     string
		)
		if err := rows.Scan(&offsetMS, &kind, &m.Description, &m.Confidence, &m.Patience); err != nil {
			return nil, fmt.Errorf("store: scan moment: %w", err)
		}
		m.Offset = time.Duration(offsetMS) * time.Millisecond
		m.Kind = game.MomentKind(kind)
		out = append(out, m)
	}
	return out, rows.Err()
}
