package scorestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex // serializes writes to avoid SQLITE_BUSY
}

const recordColumns = `player_name, session_hole, session_id,
	round_date, round_status, last_activity, course_name, round_start_time, round_end_time,
	holes_completed, total_strokes, total_par,
	hole_number, strokes, par, score_to_par, score_description, hole_timestamp, ttl`

// NewSQLiteStore opens (and creates if needed) a SQLite store at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS score_records (
		player_name TEXT NOT NULL,
		session_hole TEXT NOT NULL,
		session_id TEXT NOT NULL,
		round_date TEXT NOT NULL DEFAULT '',
		round_status TEXT NOT NULL DEFAULT '',
		last_activity TEXT NOT NULL DEFAULT '',
		course_name TEXT NOT NULL DEFAULT '',
		round_start_time TEXT NOT NULL DEFAULT '',
		round_end_time TEXT NOT NULL DEFAULT '',
		holes_completed INTEGER NOT NULL DEFAULT 0,
		total_strokes INTEGER NOT NULL DEFAULT 0,
		total_par INTEGER NOT NULL DEFAULT 0,
		hole_number INTEGER NOT NULL DEFAULT 0,
		strokes INTEGER NOT NULL DEFAULT 0,
		par INTEGER NOT NULL DEFAULT 0,
		score_to_par INTEGER NOT NULL DEFAULT 0,
		score_description TEXT NOT NULL DEFAULT '',
		hole_timestamp TEXT NOT NULL DEFAULT '',
		ttl INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (player_name, session_hole)
	);
	CREATE INDEX IF NOT EXISTS idx_score_records_ttl ON score_records(ttl);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Put writes a record, replacing an existing one with the same key.
func (s *SQLiteStore) Put(ctx context.Context, rec Record) error {
	if err := rec.Key().Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `INSERT OR REPLACE INTO score_records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		rec.PlayerName, rec.SessionHole, rec.SessionID,
		rec.RoundDate, rec.RoundStatus, rec.LastActivity, rec.CourseName, rec.RoundStartTime, rec.RoundEndTime,
		rec.HolesCompleted, rec.TotalStrokes, rec.TotalPar,
		rec.HoleNumber, rec.Strokes, rec.Par, rec.ScoreToPar, rec.ScoreDescription, rec.HoleTimestamp, rec.TTL,
	)
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

// Get returns the record for key.
func (s *SQLiteStore) Get(ctx context.Context, key Key) (Record, error) {
	query := `SELECT ` + recordColumns + ` FROM score_records WHERE player_name = ? AND session_hole = ?`
	row := s.db.QueryRowContext(ctx, query, key.Player, key.SessionHole)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s/%s", ErrNotFound, key.Player, key.SessionHole)
	}
	if err != nil {
		return Record{}, fmt.Errorf("scan record: %w", err)
	}
	return rec, nil
}

// Update applies a partial update.
func (s *SQLiteStore) Update(ctx context.Context, key Key, u Update) error {
	if u.IsEmpty() {
		_, err := s.Get(ctx, key)
		return err
	}

	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if u.RoundStatus != nil {
		add("round_status", *u.RoundStatus)
	}
	if u.RoundEndTime != nil {
		add("round_end_time", *u.RoundEndTime)
	}
	if u.LastActivity != nil {
		add("last_activity", *u.LastActivity)
	}
	if u.HolesCompleted != nil {
		add("holes_completed", *u.HolesCompleted)
	}
	if u.TotalStrokes != nil {
		add("total_strokes", *u.TotalStrokes)
	}
	if u.TotalPar != nil {
		add("total_par", *u.TotalPar)
	}
	args = append(args, key.Player, key.SessionHole)

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `UPDATE score_records SET ` + strings.Join(sets, ", ") + ` WHERE player_name = ? AND session_hole = ?`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, key.Player, key.SessionHole)
	}
	return nil
}

// Query returns the player's records under prefix.
func (s *SQLiteStore) Query(ctx context.Context, player, prefix string) ([]Record, error) {
	// instr is case-sensitive, unlike LIKE
	query := `SELECT ` + recordColumns + ` FROM score_records
		WHERE player_name = ? AND instr(session_hole, ?) = 1
		ORDER BY session_hole`
	rows, err := s.db.QueryContext(ctx, query, player, prefix)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// DeleteExpired removes records whose TTL is before now and returns how many.
func (s *SQLiteStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM score_records WHERE ttl > 0 AND ttl < ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(r scanner) (Record, error) {
	var rec Record
	err := r.Scan(
		&rec.PlayerName, &rec.SessionHole, &rec.SessionID,
		&rec.RoundDate, &rec.RoundStatus, &rec.LastActivity, &rec.CourseName, &rec.RoundStartTime, &rec.RoundEndTime,
		&rec.HolesCompleted, &rec.TotalStrokes, &rec.TotalPar,
		&rec.HoleNumber, &rec.Strokes, &rec.Par, &rec.ScoreToPar, &rec.ScoreDescription, &rec.HoleTimestamp, &rec.TTL,
	)
	return rec, err
}

var (
	_ Store   = (*SQLiteStore)(nil)
	_ Expirer = (*SQLiteStore)(nil)
)
