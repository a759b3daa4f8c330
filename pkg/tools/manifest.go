// Package tools dispatches Nova Sonic tool calls to the caddy's services.
package tools

import "encoding/json"

// Tool names as declared to the model.
const (
	GetWeather         = "getWeatherTool"
	GetHoleInformation = "getHoleInformationTool"
	RecordScore        = "recordScoreTool"
	GetScoreStatus     = "getScoreStatusTool"
	RegisterPlayer     = "registerPlayerTool"
)

// Tool describes one tool offered to the model.
type Tool struct {
	// Name is the tool name.
	Name string `json:"name"`

	// Description tells the model when to call it.
	Description string `json:"description"`

	// Schema is the JSON Schema of the tool input.
	Schema map[string]any `json:"schema"`
}

// SchemaJSON returns the input schema encoded as a JSON string, the form
// promptStart expects.
func (t Tool) SchemaJSON() string {
	b, err := json.Marshal(t.Schema)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Manifest returns the tools offered at promptStart, in declaration order.
func Manifest() []Tool {
	return []Tool{
		{
			Name:        GetWeather,
			Description: "Get current weather conditions and forecast for the golf course or specified location. Provides temperature, wind conditions, and golf-specific weather advice.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"location": map[string]any{
						"type":        "string",
						"description": "The location to get weather information for (defaults to golf course if not specified)",
						"default":     "golf course",
					},
				},
				"required": []string{},
			},
		},
		{
			Name:        GetHoleInformation,
			Description: "Get detailed information about a specific golf hole including par, distance, hazards, green conditions, and club recommendations. Use this when players ask about hole strategy or course layout.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"holeNumber": map[string]any{
						"type":        "integer",
						"description": "The hole number to get information for (1-18)",
						"minimum":     minHole,
						"maximum":     maxHole,
					},
				},
				"required": []string{"holeNumber"},
			},
		},
		{
			Name:        RecordScore,
			Description: "Record a golf score for a specific hole. Use this when players mention their score, strokes taken, or golf terms like birdie, eagle, bogey. Convert golf terms to actual stroke counts based on par.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"holeNumber": map[string]any{
						"type":        "integer",
						"description": "The hole number (1-18)",
						"minimum":     minHole,
						"maximum":     maxHole,
					},
					"strokes": map[string]any{
						"type":        "integer",
						"description": "Number of strokes taken on this hole",
						"minimum":     minStrokes,
						"maximum":     maxStrokes,
					},
				},
				"required": []string{"holeNumber", "strokes"},
			},
		},
		{
			Name:        GetScoreStatus,
			Description: "Get current scoring status, total score, or performance analysis. Use when players ask about their score, how they're doing, front/back nine performance, or overall round status.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "What score information to retrieve: 'current' (total score), 'front9', 'back9', or 'total'",
						"enum":        []string{"current", "total", "front9", "back9", "overall"},
					},
				},
				"required": []string{},
			},
		},
		{
			Name:        RegisterPlayer,
			Description: "Register a player by their first name when they introduce themselves for score tracking purposes (e.g., 'I'm Ben', 'My name is Sarah', 'Call me Mike'). Use this when someone provides their name in the context of wanting to track scores.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"firstName": map[string]any{
						"type":        "string",
						"description": "The player's first name",
					},
				},
				"required": []string{"firstName"},
			},
		},
	}
}
