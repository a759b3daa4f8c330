// Package scorestore persists golf rounds and hole scores in a keyed store
// addressed by (player_name, session_hole) and queryable by key prefix.
//
// Backends:
//   - DynamoDB - production, records expire through the table's TTL attribute
//   - SQLite   - local single-user use
//   - JSON     - a single file, handy for demos and tests
package scorestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Round status values.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Sentinel errors for the scorestore package.
var (
	// ErrNotFound indicates no record exists for the key.
	ErrNotFound = errors.New("scorestore: record not found")

	// ErrInvalidKey indicates a key with an empty component.
	ErrInvalidKey = errors.New("scorestore: invalid key")
)

// Key is the composite primary key of a record.
type Key struct {
	Player      string
	SessionHole string
}

// Validate checks that both key components are set.
func (k Key) Validate() error {
	if k.Player == "" || k.SessionHole == "" {
		return fmt.Errorf("%w: player=%q session_hole=%q", ErrInvalidKey, k.Player, k.SessionHole)
	}
	return nil
}

// MetadataKey returns the key of a round's metadata record.
func MetadataKey(player, sessionID string) Key {
	return Key{Player: player, SessionHole: sessionID + "#metadata"}
}

// HoleKey returns the key of a hole record.
func HoleKey(player, sessionID string, hole int) Key {
	return Key{Player: player, SessionHole: fmt.Sprintf("%s#hole_%02d", sessionID, hole)}
}

// HolePrefix returns the prefix matching every hole record of a session.
func HolePrefix(sessionID string) string {
	return sessionID + "#hole_"
}

// Record is one item in the store: either round metadata or a hole score.
// Hole records have HoleNumber > 0.
type Record struct {
	PlayerName  string `json:"player_name" dynamodbav:"player_name"`
	SessionHole string `json:"session_hole" dynamodbav:"session_hole"`
	SessionID   string `json:"session_id" dynamodbav:"session_id"`

	RoundDate      string `json:"round_date,omitempty" dynamodbav:"round_date,omitempty"`
	RoundStatus    string `json:"round_status,omitempty" dynamodbav:"round_status,omitempty"`
	LastActivity   string `json:"last_activity,omitempty" dynamodbav:"last_activity,omitempty"`
	CourseName     string `json:"course_name,omitempty" dynamodbav:"course_name,omitempty"`
	RoundStartTime string `json:"round_start_time,omitempty" dynamodbav:"round_start_time,omitempty"`
	RoundEndTime   string `json:"round_end_time,omitempty" dynamodbav:"round_end_time,omitempty"`
	HolesCompleted int    `json:"holes_completed" dynamodbav:"holes_completed"`
	TotalStrokes   int    `json:"total_strokes" dynamodbav:"total_strokes"`
	TotalPar       int    `json:"total_par" dynamodbav:"total_par"`

	HoleNumber       int    `json:"hole_number,omitempty" dynamodbav:"hole_number,omitempty"`
	Strokes          int    `json:"strokes,omitempty" dynamodbav:"strokes,omitempty"`
	Par              int    `json:"par,omitempty" dynamodbav:"par,omitempty"`
	ScoreToPar       int    `json:"score_to_par" dynamodbav:"score_to_par"`
	ScoreDescription string `json:"score_description,omitempty" dynamodbav:"score_description,omitempty"`
	HoleTimestamp    string `json:"hole_timestamp,omitempty" dynamodbav:"hole_timestamp,omitempty"`

	// TTL is the Unix time after which the record may be expired.
	TTL int64 `json:"ttl" dynamodbav:"ttl"`
}

// Key returns the record's primary key.
func (r Record) Key() Key {
	return Key{Player: r.PlayerName, SessionHole: r.SessionHole}
}

// IsHole reports whether r is a hole score rather than round metadata.
func (r Record) IsHole() bool {
	return r.HoleNumber > 0
}

// Expired reports whether r's TTL has passed at now. A zero TTL never expires.
func (r Record) Expired(now time.Time) bool {
	return r.TTL > 0 && r.TTL < now.Unix()
}

// IsMetadata reports whether r is a round metadata record.
func (r Record) IsMetadata() bool {
	return strings.HasSuffix(r.SessionHole, "#metadata")
}

// Update is a partial attribute update applied to an existing record.
// Nil fields are left untouched.
type Update struct {
	RoundStatus    *string
	RoundEndTime   *string
	LastActivity   *string
	HolesCompleted *int
	TotalStrokes   *int
	TotalPar       *int
}

// IsEmpty reports whether the update sets nothing.
func (u Update) IsEmpty() bool {
	return u.RoundStatus == nil && u.RoundEndTime == nil && u.LastActivity == nil &&
		u.HolesCompleted == nil && u.TotalStrokes == nil && u.TotalPar == nil
}

// Apply writes the set fields onto r.
func (u Update) Apply(r *Record) {
	if u.RoundStatus != nil {
		r.RoundStatus = *u.RoundStatus
	}
	if u.RoundEndTime != nil {
		r.RoundEndTime = *u.RoundEndTime
	}
	if u.LastActivity != nil {
		r.LastActivity = *u.LastActivity
	}
	if u.HolesCompleted != nil {
		r.HolesCompleted = *u.HolesCompleted
	}
	if u.TotalStrokes != nil {
		r.TotalStrokes = *u.TotalStrokes
	}
	if u.TotalPar != nil {
		r.TotalPar = *u.TotalPar
	}
}

// Store defines the score store operations.
type Store interface {
	// Put writes a record, replacing any record with the same key.
	Put(ctx context.Context, rec Record) error

	// Get returns the record for key, or ErrNotFound.
	Get(ctx context.Context, key Key) (Record, error)

	// Update applies a partial update to an existing record, or returns ErrNotFound.
	Update(ctx context.Context, key Key, u Update) error

	// Query returns every record of player whose session_hole starts with
	// prefix, ordered by session_hole.
	Query(ctx context.Context, player, prefix string) ([]Record, error)

	// Close releases resources.
	Close() error
}

// Expirer is implemented by local stores that purge expired records
// themselves. DynamoDB expires items with its table TTL instead.
type Expirer interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// IntPtr returns a pointer to n.
func IntPtr(n int) *int { return &n }
