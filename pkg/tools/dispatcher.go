package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-caddy/internal/log"
	"github.com/teslashibe/go-caddy/pkg/course"
	"github.com/teslashibe/go-caddy/pkg/scoring"
	"github.com/teslashibe/go-caddy/pkg/weather"
)

const (
	msgIntroduceFirst = "Please introduce yourself first by saying your name (e.g., 'I'm Ben')"
	msgNameFirst      = "Please tell me your first name first. Say something like 'I'm Ben'"
	msgNoScores       = "No scores recorded yet. Start by recording a score for any hole!"
	msgParsMissing    = "Unable to load course par information from Knowledge Base. Score tracking is not available."
	msgNoKnowledge    = "Knowledge Base client not available"
)

// WeatherSource reports course weather. It never fails.
type WeatherSource interface {
	GolfWeather(ctx context.Context, location string) weather.Report
}

// CourseKnowledge answers questions about the home course.
type CourseKnowledge interface {
	HoleInfo(ctx context.Context, hole int) (course.Answer, error)
	CoursePars(ctx context.Context) (map[int]int, error)
}

// Scorer is the round lifecycle. *scoring.Tracker implements it.
type Scorer interface {
	CurrentPlayer() string
	CurrentSession() string
	RegisterPlayer(ctx context.Context, firstName string) (scoring.Registration, error)
	StartNewRound(ctx context.Context, courseName string) (scoring.RoundStart, error)
	RecordScore(ctx context.Context, hole, strokes, par int) (scoring.ScoreResult, error)
	RoundSummary(ctx context.Context, sessionID string) (scoring.Summary, error)
}

// Deps are the services a Dispatcher calls.
type Deps struct {
	Weather WeatherSource
	Course  CourseKnowledge
	Scorer  Scorer

	// Names infers a player name from user speech. Nil disables inference.
	Names NameExtractor

	// State holds the remembered name and par map. Nil allocates a new one.
	State *SessionContext

	Logger *slog.Logger
}

// ErrorResult is the payload for any failed call.
type ErrorResult struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// MessageResult is an informative reply that is not an error.
type MessageResult struct {
	Message string `json:"message"`
}

// HoleInfoResult is the getHoleInformationTool payload.
type HoleInfoResult struct {
	HoleNumber int             `json:"holeNumber"`
	Response   string          `json:"response"`
	Sources    []course.Source `json:"sources"`
	SessionID  string          `json:"sessionId"`
}

// RoundStatus is the getScoreStatusTool payload for the whole round.
type RoundStatus struct {
	Player       string `json:"player"`
	Session      string `json:"session"`
	TotalStrokes int    `json:"totalStrokes"`
	TotalPar     int    `json:"totalPar"`
	ScoreToPar   int    `json:"scoreTopar"`
	ParStatus    string `json:"parStatus"`
	HolesPlayed  int    `json:"holesPlayed"`
	Message      string `json:"message"`
}

// FrontNineStatus is the getScoreStatusTool payload for holes 1-9.
type FrontNineStatus struct {
	Strokes     int    `json:"frontNineStrokes"`
	Par         int    `json:"frontNinePar"`
	ScoreToPar  int    `json:"frontNineTopar"`
	HolesPlayed int    `json:"holesPlayed"`
	Message     string `json:"message"`
}

// BackNineStatus is the getScoreStatusTool payload for holes 10-18.
type BackNineStatus struct {
	Strokes     int    `json:"backNineStrokes"`
	Par         int    `json:"backNinePar"`
	ScoreToPar  int    `json:"backNineTopar"`
	HolesPlayed int    `json:"holesPlayed"`
	Message     string `json:"message"`
}

// Dispatcher executes tool calls. Every outcome, including failures, is a
// JSON-serializable result.
type Dispatcher struct {
	weather WeatherSource
	course  CourseKnowledge
	scorer  Scorer
	names   NameExtractor
	state   *SessionContext
	logger  *slog.Logger

	// scoreMu keeps register, start and record steps of one call together.
	scoreMu sync.Mutex
}

// NewDispatcher returns a Dispatcher over deps.
func NewDispatcher(deps Deps) *Dispatcher {
	d := &Dispatcher{
		weather: deps.Weather,
		course:  deps.Course,
		scorer:  deps.Scorer,
		names:   deps.Names,
		state:   deps.State,
		logger:  deps.Logger,
	}
	if d.names == nil {
		d.names = NoExtractor{}
	}
	if d.state == nil {
		d.state = NewSessionContext()
	}
	if d.logger == nil {
		d.logger = log.For(log.ComponentSonic).With("subsystem", "tools")
	}
	return d
}

// State returns the session context.
func (d *Dispatcher) State() *SessionContext {
	return d.state
}

// ExecuteTool runs the named tool with its JSON argument string. The error
// is always nil; failures are reported as *ErrorResult.
func (d *Dispatcher) ExecuteTool(ctx context.Context, name, content string) (any, error) {
	d.logger.Debug("tool called", "tool", name)

	call, err := Decode(name, content)
	if err != nil {
		d.logger.Debug("tool input rejected", "tool", name, "error", err)
		return &ErrorResult{Error: err.Error()}, nil
	}

	switch c := call.(type) {
	case WeatherCall:
		return d.getWeather(ctx, c), nil
	case HoleInfoCall:
		return d.holeInfo(ctx, c), nil
	case RecordScoreCall:
		return d.recordScore(ctx, c), nil
	case ScoreStatusCall:
		return d.scoreStatus(ctx, c), nil
	case RegisterPlayerCall:
		return d.registerPlayer(ctx, c), nil
	}
	return &ErrorResult{Error: (&UnsupportedToolError{Name: name}).Error()}, nil
}

// ObserveUserText remembers a self-introduced name from a user transcript
// when no name is remembered yet.
func (d *Dispatcher) ObserveUserText(text string) {
	if d.state.PlayerName() != "" {
		return
	}
	if name, ok := d.names.ExtractName(text); ok {
		d.state.RememberName(name)
		d.logger.Debug("player name inferred from speech", "player", name)
	}
}

func (d *Dispatcher) getWeather(ctx context.Context, c WeatherCall) any {
	if d.weather == nil {
		return &ErrorResult{Error: "Weather service not available"}
	}
	return d.weather.GolfWeather(ctx, c.Location)
}

func (d *Dispatcher) holeInfo(ctx context.Context, c HoleInfoCall) any {
	if d.course == nil {
		return &ErrorResult{
			Error:   fmt.Sprintf("Unable to retrieve information for hole %d.", c.HoleNumber),
			Details: msgNoKnowledge,
		}
	}
	ans, err := d.course.HoleInfo(ctx, c.HoleNumber)
	if err != nil {
		details := err.Error()
		if errors.Is(err, course.ErrNoKnowledgeBase) {
			details = msgNoKnowledge
		}
		return &ErrorResult{
			Error:   fmt.Sprintf("Unable to retrieve information for hole %d.", c.HoleNumber),
			Details: details,
		}
	}
	return &HoleInfoResult{
		HoleNumber: c.HoleNumber,
		Response:   ans.Response,
		Sources:    ans.Sources,
		SessionID:  ans.SessionID,
	}
}

func (d *Dispatcher) recordScore(ctx context.Context, c RecordScoreCall) any {
	if d.scorer == nil {
		return &ErrorResult{Error: msgIntroduceFirst}
	}
	d.scoreMu.Lock()
	defer d.scoreMu.Unlock()

	if !d.ensurePlayer(ctx) {
		return &ErrorResult{Error: msgIntroduceFirst}
	}
	if d.scorer.CurrentSession() == "" {
		d.logger.Debug("no active round, starting one")
		if _, err := d.scorer.StartNewRound(ctx, ""); err != nil {
			return &ErrorResult{Error: "Failed to start round: " + err.Error()}
		}
	}
	if !d.loadPars(ctx) {
		return &ErrorResult{Error: msgParsMissing}
	}

	par, ok := d.state.Par(c.HoleNumber)
	if !ok {
		return &ErrorResult{Error: fmt.Sprintf("Par information not available for hole %d.", c.HoleNumber)}
	}
	res, err := d.scorer.RecordScore(ctx, c.HoleNumber, c.Strokes, par)
	if err != nil {
		return &ErrorResult{Error: "Failed to record score: " + err.Error()}
	}
	return res
}

func (d *Dispatcher) scoreStatus(ctx context.Context, c ScoreStatusCall) any {
	if d.scorer == nil {
		return &ErrorResult{Error: msgNameFirst}
	}
	d.scoreMu.Lock()
	defer d.scoreMu.Unlock()

	if !d.ensurePlayer(ctx) {
		return &ErrorResult{Error: msgNameFirst}
	}
	if d.scorer.CurrentSession() == "" {
		return &MessageResult{Message: msgNoScores}
	}

	s, err := d.scorer.RoundSummary(ctx, "")
	if err != nil {
		return &ErrorResult{Error: "Failed to get score status: " + err.Error()}
	}
	if s.HolesPlayed == 0 {
		return &MessageResult{Message: msgNoScores}
	}

	switch c.Query {
	case QueryFront:
		n := s.Nine(true)
		if n.HolesPlayed == 0 {
			return &MessageResult{Message: "No scores recorded for the front nine yet."}
		}
		return &FrontNineStatus{
			Strokes:     n.Strokes,
			Par:         n.Par,
			ScoreToPar:  n.ScoreToPar,
			HolesPlayed: n.HolesPlayed,
			Message:     fmt.Sprintf("Front nine: %d strokes (%d holes played), %s", n.Strokes, n.HolesPlayed, n.ParStatus),
		}
	case QueryBack:
		n := s.Nine(false)
		if n.HolesPlayed == 0 {
			return &MessageResult{Message: "No scores recorded for the back nine yet."}
		}
		return &BackNineStatus{
			Strokes:     n.Strokes,
			Par:         n.Par,
			ScoreToPar:  n.ScoreToPar,
			HolesPlayed: n.HolesPlayed,
			Message:     fmt.Sprintf("Back nine: %d strokes (%d holes played), %s", n.Strokes, n.HolesPlayed, n.ParStatus),
		}
	}
	return &RoundStatus{
		Player:       s.Player,
		Session:      s.SessionID,
		TotalStrokes: s.TotalStrokes,
		TotalPar:     s.TotalPar,
		ScoreToPar:   s.ScoreToPar,
		ParStatus:    s.ParStatus,
		HolesPlayed:  s.HolesPlayed,
		Message:      fmt.Sprintf("After %d holes: %d strokes, %s", s.HolesPlayed, s.TotalStrokes, s.ParStatus),
	}
}

func (d *Dispatcher) registerPlayer(ctx context.Context, c RegisterPlayerCall) any {
	if d.scorer == nil {
		return &ErrorResult{Error: "Score tracking not available"}
	}
	d.scoreMu.Lock()
	defer d.scoreMu.Unlock()

	reg, err := d.scorer.RegisterPlayer(ctx, c.FirstName)
	if err != nil {
		if errors.Is(err, scoring.ErrEmptyName) {
			return &ErrorResult{Error: msgNameRequired}
		}
		return &ErrorResult{Error: "Failed to register player: " + err.Error()}
	}
	d.state.RememberName(reg.Player)

	if reg.Action == scoring.ActionStartNew {
		start, err := d.scorer.StartNewRound(ctx, "")
		if err != nil {
			reg.SessionError = err.Error()
		} else {
			reg.SessionStarted = true
			reg.SessionID = start.SessionID
		}
	}
	return reg
}

// ensurePlayer re-registers the remembered name when no player is current.
func (d *Dispatcher) ensurePlayer(ctx context.Context) bool {
	if d.scorer.CurrentPlayer() != "" {
		return true
	}
	name := d.state.PlayerName()
	if name == "" {
		return false
	}
	d.logger.Debug("re-registering remembered player", "player", name)
	if _, err := d.scorer.RegisterPlayer(ctx, name); err != nil {
		d.logger.Debug("re-registration failed", "player", name, "error", err)
		return false
	}
	return true
}

// loadPars fetches the par map until a complete one has been loaded.
func (d *Dispatcher) loadPars(ctx context.Context) bool {
	if d.state.ParsLoaded() {
		return true
	}
	if d.course == nil {
		return false
	}
	pars, err := d.course.CoursePars(ctx)
	if err != nil {
		d.logger.Warn("course pars unavailable", "error", err)
		return false
	}
	if !d.state.SetPars(pars) {
		d.logger.Warn("course pars incomplete", "holes", len(pars))
		return false
	}
	d.logger.Debug("course pars loaded", "holes", len(pars))
	return true
}
