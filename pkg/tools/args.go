package tools

import (
	"encoding/json"
	"strings"
)

const (
	minHole    = 1
	maxHole    = 18
	minStrokes = 1
	maxStrokes = 15
)

// User-facing validation messages.
const (
	msgInvalidHole    = "Invalid hole number. Please specify a hole between 1 and 18."
	msgInvalidStrokes = "Invalid stroke count. Please specify between 1 and 15 strokes."
	msgInvalidQuery   = "Invalid query. Use 'current', 'front9', 'back9', or 'total'."
	msgNameRequired   = "First name is required for registration"
)

// ValidationError is a tool call with unusable arguments.
type ValidationError struct {
	Tool    string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// UnsupportedToolError is a call to a tool that is not in the manifest.
type UnsupportedToolError struct {
	Name string
}

func (e *UnsupportedToolError) Error() string {
	return "Unsupported tool: " + e.Name
}

// Call is a decoded, validated tool invocation. The concrete types are
// WeatherCall, HoleInfoCall, RecordScoreCall, ScoreStatusCall and
// RegisterPlayerCall.
type Call interface {
	ToolName() string
}

// WeatherCall asks for the weather. An empty Location means the course.
type WeatherCall struct {
	Location string
}

// HoleInfoCall asks about one hole.
type HoleInfoCall struct {
	HoleNumber int
}

// RecordScoreCall records strokes for a hole.
type RecordScoreCall struct {
	HoleNumber int
	Strokes    int
}

// Score status queries.
const (
	QueryCurrent = "current"
	QueryFront   = "front9"
	QueryBack    = "back9"
)

// ScoreStatusCall asks for the round status. Query is one of QueryCurrent,
// QueryFront or QueryBack after decoding.
type ScoreStatusCall struct {
	Query string
}

// RegisterPlayerCall introduces the player.
type RegisterPlayerCall struct {
	FirstName string
}

func (WeatherCall) ToolName() string        { return GetWeather }
func (HoleInfoCall) ToolName() string       { return GetHoleInformation }
func (RecordScoreCall) ToolName() string    { return RecordScore }
func (ScoreStatusCall) ToolName() string    { return GetScoreStatus }
func (RegisterPlayerCall) ToolName() string { return RegisterPlayer }

var queryAliases = map[string]string{
	"current":    QueryCurrent,
	"total":      QueryCurrent,
	"overall":    QueryCurrent,
	"front9":     QueryFront,
	"front":      QueryFront,
	"front_nine": QueryFront,
	"back9":      QueryBack,
	"back":       QueryBack,
	"back_nine":  QueryBack,
}

// Decode parses the JSON argument string of a tool call. Tool names match
// case-insensitively. It returns *UnsupportedToolError for unknown tools and
// *ValidationError for bad arguments.
func Decode(name, content string) (Call, error) {
	tool := canonicalName(name)
	if tool == "" {
		return nil, &UnsupportedToolError{Name: name}
	}

	fields := map[string]json.RawMessage{}
	if s := strings.TrimSpace(content); s != "" {
		if err := json.Unmarshal([]byte(s), &fields); err != nil {
			return nil, &ValidationError{Tool: tool, Message: "Invalid tool input: " + err.Error()}
		}
	}

	switch tool {
	case GetWeather:
		loc, _ := stringField(fields, "location")
		return WeatherCall{Location: strings.TrimSpace(loc)}, nil

	case GetHoleInformation:
		hole, err := holeField(tool, fields, true)
		if err != nil {
			return nil, err
		}
		return HoleInfoCall{HoleNumber: hole}, nil

	case RecordScore:
		hole, err := holeField(tool, fields, false)
		if err != nil {
			return nil, err
		}
		strokes, ok := intField(fields, "strokes")
		if !ok || strokes < minStrokes || strokes > maxStrokes {
			return nil, &ValidationError{Tool: tool, Field: "strokes", Message: msgInvalidStrokes}
		}
		return RecordScoreCall{HoleNumber: hole, Strokes: strokes}, nil

	case GetScoreStatus:
		q := QueryCurrent
		if _, present := fields["query"]; present {
			s, ok := stringField(fields, "query")
			if !ok {
				return nil, &ValidationError{Tool: tool, Field: "query", Message: msgInvalidQuery}
			}
			q = strings.ToLower(strings.TrimSpace(s))
		}
		canon, ok := queryAliases[q]
		if !ok {
			return nil, &ValidationError{Tool: tool, Field: "query", Message: msgInvalidQuery}
		}
		return ScoreStatusCall{Query: canon}, nil

	case RegisterPlayer:
		first, _ := stringField(fields, "firstName")
		first = strings.TrimSpace(first)
		if first == "" {
			return nil, &ValidationError{Tool: tool, Field: "firstName", Message: msgNameRequired}
		}
		return RegisterPlayerCall{FirstName: first}, nil
	}
	return nil, &UnsupportedToolError{Name: name}
}

func canonicalName(name string) string {
	for _, t := range []string{GetWeather, GetHoleInformation, RecordScore, GetScoreStatus, RegisterPlayer} {
		if strings.EqualFold(name, t) {
			return t
		}
	}
	return ""
}

// holeField reads holeNumber. When optional is set a missing value means 1.
func holeField(tool string, fields map[string]json.RawMessage, optional bool) (int, error) {
	if _, present := fields["holeNumber"]; !present && optional {
		return minHole, nil
	}
	hole, ok := intField(fields, "holeNumber")
	if !ok || hole < minHole || hole > maxHole {
		return 0, &ValidationError{Tool: tool, Field: "holeNumber", Message: msgInvalidHole}
	}
	return hole, nil
}

// intField reads a JSON integer. Strings, floats, booleans and null are rejected.
func intField(fields map[string]json.RawMessage, key string) (int, bool) {
	raw, ok := fields[key]
	if !ok || len(raw) == 0 {
		return 0, false
	}
	if c := raw[0]; c != '-' && (c < '0' || c > '9') {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	v, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return int(v), true
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
