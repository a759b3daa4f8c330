package scoring

import "errors"

// Sentinel errors for the scoring package.
var (
	// ErrNoPlayer indicates no player has been registered this session.
	ErrNoPlayer = errors.New("scoring: no player registered")

	// ErrNoActiveRound indicates there is no current round to score against.
	ErrNoActiveRound = errors.New("scoring: no active round")

	// ErrEmptyName indicates a registration with a blank name.
	ErrEmptyName = errors.New("scoring: first name is required")
)

// Registration outcomes.
const (
	ActionResumed  = "resumed"
	ActionStartNew = "start_new"
)

// DefaultCourseName is used when a round is started without a course.
const DefaultCourseName = "Sunny Hills Golf Club"

// Config is the round resume and retention policy.
type Config struct {
	// MaxResumeHours is how long after its last activity a round may be resumed.
	MaxResumeHours float64

	// AutoAbandonHours is advisory: rounds idle this long are reported as stale.
	AutoAbandonHours float64

	// SameDayOnly limits resume candidates to rounds started today.
	SameDayOnly bool

	// MaxActiveRounds caps the resume candidates returned. Zero means no cap.
	MaxActiveRounds int

	// TTLDays is how long records are kept before they may expire.
	TTLDays int

	// CourseName is the course recorded on new rounds.
	CourseName string
}

// DefaultConfig returns the stock policy.
func DefaultConfig() Config {
	return Config{
		MaxResumeHours:   4,
		AutoAbandonHours: 24,
		SameDayOnly:      true,
		MaxActiveRounds:  2,
		TTLDays:          30,
		CourseName:       DefaultCourseName,
	}
}

// ActiveRound is a resume candidate.
type ActiveRound struct {
	SessionID    string `json:"session_id"`
	Holes        []int  `json:"holes"`
	LastActivity string `json:"last_activity"`
	Status       string `json:"status"`
	TotalStrokes int    `json:"total_strokes"`
	TotalPar     int    `json:"total_par"`
	HolesPlayed  int    `json:"holes_played"`
	ScoreToPar   int    `json:"score_to_par"`
	ParStatus    string `json:"par_status"`
}

// Registration is the result of RegisterPlayer.
type Registration struct {
	Success      bool          `json:"success"`
	Player       string        `json:"player"`
	Action       string        `json:"action"`
	SessionID    string        `json:"session_id,omitempty"`
	ActiveRounds []ActiveRound `json:"active_rounds,omitempty"`
	Message      string        `json:"message"`

	// Set by callers that auto-start a round after a start_new outcome.
	SessionStarted bool   `json:"session_started,omitempty"`
	SessionError   string `json:"session_error,omitempty"`
}

// RoundStart is the result of StartNewRound.
type RoundStart struct {
	Success    bool   `json:"success"`
	Player     string `json:"player"`
	SessionID  string `json:"session_id"`
	CourseName string `json:"course_name"`
	Message    string `json:"message"`
}

// Resume is the result of ResumeRound.
type Resume struct {
	Success      bool     `json:"success"`
	SessionID    string   `json:"session_id"`
	RoundSummary *Summary `json:"round_summary"`
	Message      string   `json:"message"`
}

// ScoreResult is the result of RecordScore.
type ScoreResult struct {
	Success          bool   `json:"success"`
	Player           string `json:"player"`
	SessionID        string `json:"session_id"`
	HoleNumber       int    `json:"hole_number"`
	Strokes          int    `json:"strokes"`
	Par              int    `json:"par"`
	ScoreToPar       int    `json:"score_to_par"`
	ScoreDescription string `json:"score_description"`
	RoundComplete    bool   `json:"round_complete,omitempty"`
	Message          string `json:"message"`
}

// HoleScore is one scored hole in a summary.
type HoleScore struct {
	HoleNumber       int    `json:"hole_number"`
	Strokes          int    `json:"strokes"`
	Par              int    `json:"par"`
	ScoreToPar       int    `json:"score_to_par"`
	ScoreDescription string `json:"score_description"`
}

// Summary aggregates a round's hole records.
type Summary struct {
	Success      bool        `json:"success"`
	SessionID    string      `json:"session_id"`
	Player       string      `json:"player"`
	HolesPlayed  int         `json:"holes_played"`
	TotalStrokes int         `json:"total_strokes"`
	TotalPar     int         `json:"total_par"`
	ScoreToPar   int         `json:"score_to_par"`
	Holes        []HoleScore `json:"holes"`
	ParStatus    string      `json:"par_status"`
}

// NineTotals aggregates one half of the course.
type NineTotals struct {
	Strokes     int
	Par         int
	ScoreToPar  int
	HolesPlayed int
	ParStatus   string
}

// Nine totals holes 1-9 when front is set, otherwise holes 10-18.
func (s Summary) Nine(front bool) NineTotals {
	var n NineTotals
	for _, h := range s.Holes {
		if front != (h.HoleNumber <= 9) {
			continue
		}
		n.Strokes += h.Strokes
		n.Par += h.Par
		n.HolesPlayed++
	}
	n.ScoreToPar = n.Strokes - n.Par
	n.ParStatus = ParStatus(n.ScoreToPar)
	return n
}
