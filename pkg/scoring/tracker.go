// Package scoring tracks the current player and round and persists per-hole
// scores to a scorestore.Store.
//
// A Tracker holds single-player session state: registering a new name
// replaces the current player and clears the current round.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-caddy/internal/log"
	"github.com/teslashibe/go-caddy/pkg/scorestore"
)

const dateLayout = "2006-01-02"

// Tracker manages the player/round lifecycle.
type Tracker struct {
	store  scorestore.Store
	cfg    Config
	now    func() time.Time
	logger *slog.Logger

	mu        sync.Mutex
	player    string
	sessionID string
	status    string
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// NewTracker returns a Tracker persisting to store.
func NewTracker(store scorestore.Store, cfg Config, opts ...Option) *Tracker {
	if cfg.CourseName == "" {
		cfg.CourseName = DefaultCourseName
	}
	t := &Tracker{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = log.For(log.ComponentScoring)
	}
	return t
}

// CurrentPlayer returns the registered player, or "".
func (t *Tracker) CurrentPlayer() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.player
}

// CurrentSession returns the active round's session ID, or "".
func (t *Tracker) CurrentSession() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// RoundStatus returns the status of the current round, or "".
func (t *Tracker) RoundStatus() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Reset forgets the current player and round.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.player, t.sessionID, t.status = "", "", ""
}

// RegisterPlayer sets the current player and resumes their most eligible
// in-progress round if one exists.
func (t *Tracker) RegisterPlayer(ctx context.Context, firstName string) (Registration, error) {
	player := NormalizeName(firstName)
	if player == "" {
		return Registration{}, ErrEmptyName
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.player = player
	t.sessionID, t.status = "", ""
	t.logger.Debug("registering player", "player", player)

	active, err := t.activeRounds(ctx, player)
	if err != nil {
		return Registration{}, fmt.Errorf("check active rounds: %w", err)
	}
	t.logger.Debug("active rounds", "player", player, "count", len(active))

	if len(active) == 0 {
		return Registration{
			Success: true,
			Player:  player,
			Action:  ActionStartNew,
			Message: fmt.Sprintf("Nice to meet you, %s! Ready to start your round?", player),
		}, nil
	}

	first := active[0]
	if _, err := t.resumeLocked(ctx, first.SessionID); err != nil {
		return Registration{}, err
	}
	return Registration{
		Success:      true,
		Player:       player,
		Action:       ActionResumed,
		SessionID:    first.SessionID,
		ActiveRounds: active,
		Message:      fmt.Sprintf("Welcome back, %s! Resumed your round with %d holes completed.", player, first.HolesPlayed),
	}, nil
}

// StartNewRound opens a new round for the current player. An empty course
// name uses the configured course.
func (t *Tracker) StartNewRound(ctx context.Context, courseName string) (RoundStart, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startLocked(ctx, courseName)
}

func (t *Tracker) startLocked(ctx context.Context, courseName string) (RoundStart, error) {
	if t.player == "" {
		return RoundStart{}, ErrNoPlayer
	}
	if courseName == "" {
		courseName = t.cfg.CourseName
	}

	sessionID := t.nextSessionID(ctx, t.player)
	if err := t.putMetadata(ctx, t.player, sessionID, courseName); err != nil {
		return RoundStart{}, fmt.Errorf("failed to start new round: %w", err)
	}
	t.sessionID = sessionID
	t.status = scorestore.StatusInProgress
	t.logger.Info("round started", "player", t.player, "session", sessionID)

	return RoundStart{
		Success:    true,
		Player:     t.player,
		SessionID:  sessionID,
		CourseName: courseName,
		Message:    fmt.Sprintf("Started new round for %s", t.player),
	}, nil
}

// ResumeRound makes sessionID the current round and refreshes its activity time.
func (t *Tracker) ResumeRound(ctx context.Context, sessionID string) (Resume, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resumeLocked(ctx, sessionID)
}

func (t *Tracker) resumeLocked(ctx context.Context, sessionID string) (Resume, error) {
	if t.player == "" {
		return Resume{}, ErrNoPlayer
	}
	t.sessionID = sessionID
	t.status = scorestore.StatusInProgress

	key := scorestore.MetadataKey(t.player, sessionID)
	err := t.store.Update(ctx, key, scorestore.Update{LastActivity: scorestore.StringPtr(t.timestamp())})
	if err != nil {
		t.logger.Debug("activity update failed, recreating metadata", "session", sessionID, "error", err)
		if err := t.putMetadata(ctx, t.player, sessionID, t.cfg.CourseName); err != nil {
			return Resume{}, fmt.Errorf("failed to resume round: %w", err)
		}
	}

	summary, err := Summarize(ctx, t.store, t.player, sessionID)
	if err != nil {
		return Resume{}, fmt.Errorf("failed to resume round: %w", err)
	}
	return Resume{
		Success:      true,
		SessionID:    sessionID,
		RoundSummary: &summary,
		Message:      fmt.Sprintf("Resumed round %s", sessionID),
	}, nil
}

// RecordScore writes a hole score for the current round and refreshes the
// round totals. Scoring hole 18 completes the round. Recording a hole again
// replaces its score.
func (t *Tracker) RecordScore(ctx context.Context, hole, strokes, par int) (ScoreResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.player == "" || t.sessionID == "" {
		return ScoreResult{}, ErrNoActiveRound
	}

	diff := strokes - par
	desc := ScoreDescription(diff)
	now := t.now().UTC()
	ts := now.Format(time.RFC3339Nano)

	rec := scorestore.Record{
		PlayerName:       t.player,
		SessionHole:      scorestore.HoleKey(t.player, t.sessionID, hole).SessionHole,
		SessionID:        t.sessionID,
		HoleNumber:       hole,
		Strokes:          strokes,
		Par:              par,
		ScoreToPar:       diff,
		ScoreDescription: desc,
		RoundDate:        t.now().Format(dateLayout),
		RoundStatus:      scorestore.StatusInProgress,
		LastActivity:     ts,
		CourseName:       t.cfg.CourseName,
		HoleTimestamp:    ts,
		TTL:              t.ttl(now),
	}
	t.logger.Debug("recording score", "hole", hole, "strokes", strokes, "par", par, "description", desc)
	if err := t.store.Put(ctx, rec); err != nil {
		return ScoreResult{}, fmt.Errorf("failed to record score: %w", err)
	}

	t.refreshMetadata(ctx)

	result := ScoreResult{
		Success:          true,
		Player:           t.player,
		SessionID:        t.sessionID,
		HoleNumber:       hole,
		Strokes:          strokes,
		Par:              par,
		ScoreToPar:       diff,
		ScoreDescription: desc,
		Message:          fmt.Sprintf("Recorded %d strokes on hole %d - %s!", strokes, hole, desc),
	}
	if hole == 18 {
		t.completeRound(ctx)
		result.RoundComplete = true
	}
	return result, nil
}

// RoundSummary summarizes sessionID, or the current round when sessionID is empty.
func (t *Tracker) RoundSummary(ctx context.Context, sessionID string) (Summary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if sessionID == "" {
		sessionID = t.sessionID
	}
	if sessionID == "" || t.player == "" {
		return Summary{}, ErrNoActiveRound
	}
	s, err := Summarize(ctx, t.store, t.player, sessionID)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to get round summary: %w", err)
	}
	return s, nil
}

// ActiveRounds lists the resume candidates for player under the configured policy.
func (t *Tracker) ActiveRounds(ctx context.Context, player string) ([]ActiveRound, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activeRounds(ctx, NormalizeName(player))
}

// Summarize aggregates the hole records stored for one round. Metadata
// records are skipped and holes are ordered by number.
func Summarize(ctx context.Context, store scorestore.Store, player, sessionID string) (Summary, error) {
	recs, err := store.Query(ctx, player, scorestore.HolePrefix(sessionID))
	if err != nil {
		return Summary{}, err
	}

	s := Summary{Success: true, SessionID: sessionID, Player: player, Holes: []HoleScore{}}
	for _, r := range recs {
		if !r.IsHole() {
			continue
		}
		s.Holes = append(s.Holes, HoleScore{
			HoleNumber:       r.HoleNumber,
			Strokes:          r.Strokes,
			Par:              r.Par,
			ScoreToPar:       r.ScoreToPar,
			ScoreDescription: r.ScoreDescription,
		})
		s.TotalStrokes += r.Strokes
		s.TotalPar += r.Par
	}
	sort.Slice(s.Holes, func(i, j int) bool { return s.Holes[i].HoleNumber < s.Holes[j].HoleNumber })

	s.HolesPlayed = len(s.Holes)
	s.ScoreToPar = s.TotalStrokes - s.TotalPar
	s.ParStatus = ParStatus(s.ScoreToPar)
	return s, nil
}

// activeRounds groups the player's candidate records by session and keeps
// in-progress rounds inside the resume window. Status and activity come
// from the metadata record when there is one.
func (t *Tracker) activeRounds(ctx context.Context, player string) ([]ActiveRound, error) {
	prefix := ""
	if t.cfg.SameDayOnly {
		prefix = t.now().Format(dateLayout) + "_"
	}
	recs, err := t.store.Query(ctx, player, prefix)
	if err != nil {
		return nil, err
	}

	type group struct {
		round    ActiveRound
		activity time.Time
	}
	var (
		order    []string
		sessions = map[string]*group{}
	)
	for _, r := range recs {
		g, ok := sessions[r.SessionID]
		if !ok {
			g = &group{round: ActiveRound{SessionID: r.SessionID, Holes: []int{}, Status: scorestore.StatusInProgress}}
			sessions[r.SessionID] = g
			order = append(order, r.SessionID)
		}
		if at, err := time.Parse(time.RFC3339Nano, r.LastActivity); err == nil && at.After(g.activity) {
			g.activity = at
			g.round.LastActivity = r.LastActivity
		}
		if r.IsMetadata() {
			if r.RoundStatus != "" {
				g.round.Status = r.RoundStatus
			}
			continue
		}
		if r.IsHole() {
			g.round.Holes = append(g.round.Holes, r.HoleNumber)
			g.round.TotalStrokes += r.Strokes
			g.round.TotalPar += r.Par
		}
	}

	now := t.now()
	window := time.Duration(t.cfg.MaxResumeHours * float64(time.Hour))
	stale := time.Duration(t.cfg.AutoAbandonHours * float64(time.Hour))

	var candidates []*group
	for _, id := range order {
		g := sessions[id]
		if g.round.Status != scorestore.StatusInProgress || g.activity.IsZero() {
			continue
		}
		idle := now.Sub(g.activity)
		if idle >= window {
			if stale > 0 && idle >= stale {
				t.logger.Debug("stale round", "session", id, "idle", idle.Round(time.Minute))
			}
			continue
		}
		candidates = append(candidates, g)
	}
	// Most recently active first; ties keep session order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].activity.After(candidates[j].activity)
	})

	active := make([]ActiveRound, 0, len(candidates))
	for _, g := range candidates {
		r := g.round
		r.HolesPlayed = len(r.Holes)
		r.ScoreToPar = r.TotalStrokes - r.TotalPar
		r.ParStatus = ParStatus(r.ScoreToPar)
		active = append(active, r)
	}

	if limit := t.cfg.MaxActiveRounds; limit > 0 && len(active) > limit {
		t.logger.Warn("more active rounds than allowed", "player", player, "count", len(active), "max", limit)
		active = active[:limit]
	}
	return active, nil
}

// nextSessionID numbers the round after the player's rounds recorded today.
// A failed lookup falls back to round 1.
func (t *Tracker) nextSessionID(ctx context.Context, player string) string {
	today := t.now().Format(dateLayout)
	n := 1
	recs, err := t.store.Query(ctx, player, today+"_")
	if err != nil {
		t.logger.Warn("count rounds failed", "player", player, "error", err)
	} else {
		seen := map[string]struct{}{}
		for _, r := range recs {
			seen[r.SessionID] = struct{}{}
		}
		n = len(seen) + 1
	}
	return fmt.Sprintf("%s_%s_round%d", today, strings.ToLower(player), n)
}

func (t *Tracker) putMetadata(ctx context.Context, player, sessionID, courseName string) error {
	now := t.now().UTC()
	ts := now.Format(time.RFC3339Nano)
	return t.store.Put(ctx, scorestore.Record{
		PlayerName:     player,
		SessionHole:    scorestore.MetadataKey(player, sessionID).SessionHole,
		SessionID:      sessionID,
		RoundDate:      t.now().Format(dateLayout),
		RoundStartTime: ts,
		RoundStatus:    scorestore.StatusInProgress,
		LastActivity:   ts,
		CourseName:     courseName,
		TTL:            t.ttl(now),
	})
}

// refreshMetadata recomputes the round totals from stored holes. Failures
// are logged; the hole record is already written.
func (t *Tracker) refreshMetadata(ctx context.Context) {
	s, err := Summarize(ctx, t.store, t.player, t.sessionID)
	if err != nil {
		t.logger.Warn("summary for metadata failed", "session", t.sessionID, "error", err)
		return
	}
	err = t.store.Update(ctx, scorestore.MetadataKey(t.player, t.sessionID), scorestore.Update{
		HolesCompleted: scorestore.IntPtr(s.HolesPlayed),
		TotalStrokes:   scorestore.IntPtr(s.TotalStrokes),
		TotalPar:       scorestore.IntPtr(s.TotalPar),
		LastActivity:   scorestore.StringPtr(t.timestamp()),
	})
	if err != nil {
		t.logger.Warn("update round metadata failed", "session", t.sessionID, "error", err)
	}
}

func (t *Tracker) completeRound(ctx context.Context) {
	t.status = scorestore.StatusCompleted
	err := t.store.Update(ctx, scorestore.MetadataKey(t.player, t.sessionID), scorestore.Update{
		RoundStatus:  scorestore.StringPtr(scorestore.StatusCompleted),
		RoundEndTime: scorestore.StringPtr(t.timestamp()),
	})
	if errors.Is(err, scorestore.ErrNotFound) {
		t.logger.Warn("complete round: metadata missing", "session", t.sessionID)
		return
	}
	if err != nil {
		t.logger.Warn("complete round failed", "session", t.sessionID, "error", err)
		return
	}
	t.logger.Info("round completed", "player", t.player, "session", t.sessionID)
}

func (t *Tracker) timestamp() string {
	return t.now().UTC().Format(time.RFC3339Nano)
}

func (t *Tracker) ttl(now time.Time) int64 {
	return now.AddDate(0, 0, t.cfg.TTLDays).Unix()
}
