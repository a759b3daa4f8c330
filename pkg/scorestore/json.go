package scorestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// JSONStore implements Store using a JSON file for persistence.
type JSONStore struct {
	path    string
	records map[Key]Record
	mu      sync.RWMutex
}

// storeData is the JSON structure for the store file.
type storeData struct {
	Version   int      `json:"version"`
	UpdatedAt string   `json:"updated_at"`
	Records   []Record `json:"records"`
}

const currentVersion = 1

// NewJSONStore creates a new JSON-based store at the given path.
// If the file doesn't exist, it will be created on first write.
func NewJSONStore(path string) (*JSONStore, error) {
	store := &JSONStore{
		path:    path,
		records: make(map[Key]Record),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := store.load(); err != nil {
			return nil, fmt.Errorf("load store: %w", err)
		}
	}

	return store, nil
}

func (s *JSONStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	var stored storeData
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("parse JSON: %w", err)
	}
	if stored.Version > currentVersion {
		return fmt.Errorf("unsupported store version %d (current %d)", stored.Version, currentVersion)
	}

	s.records = make(map[Key]Record, len(stored.Records))
	for _, rec := range stored.Records {
		s.records[rec.Key()] = rec
	}
	return nil
}

// save writes the store to disk. Caller holds s.mu.
func (s *JSONStore) save() error {
	recs := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].PlayerName != recs[j].PlayerName {
			return recs[i].PlayerName < recs[j].PlayerName
		}
		return recs[i].SessionHole < recs[j].SessionHole
	})

	data, err := json.MarshalIndent(storeData{
		Version:   currentVersion,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		Records:   recs,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	// Write to temp file first, then rename
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Put writes a record.
func (s *JSONStore) Put(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rec.Key().Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.Key()] = rec
	return s.save()
}

// Get returns the record for key.
func (s *JSONStore) Get(ctx context.Context, key Key) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s/%s", ErrNotFound, key.Player, key.SessionHole)
	}
	return rec, nil
}

// Update applies a partial update.
func (s *JSONStore) Update(ctx context.Context, key Key, u Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, key.Player, key.SessionHole)
	}
	u.Apply(&rec)
	s.records[key] = rec
	return s.save()
}

// Query returns the player's records under prefix.
func (s *JSONStore) Query(ctx context.Context, player, prefix string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for k, rec := range s.records {
		if k.Player == player && strings.HasPrefix(k.SessionHole, prefix) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionHole < out[j].SessionHole })
	return out, nil
}

// DeleteExpired removes records whose TTL is before now and returns how many.
func (s *JSONStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, rec := range s.records {
		if rec.Expired(now) {
			delete(s.records, k)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, s.save()
}

// Count returns the total number of records.
func (s *JSONStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close is a no-op; every write is already on disk.
func (s *JSONStore) Close() error { return nil }

var (
	_ Store   = (*JSONStore)(nil)
	_ Expirer = (*JSONStore)(nil)
)
