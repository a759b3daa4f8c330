package config

import (
	"errors"
	"strings"
)

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

// Validation is the outcome of Validate. Errors block startup, warnings
// only disable optional features.
type Validation struct {
	Errors   []*ConfigError
	Warnings []string
}

// OK reports whether there are no blocking errors.
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// Err joins all blocking errors, or returns nil.
func (v Validation) Err() error {
	if v.OK() {
		return nil
	}
	errs := make([]error, len(v.Errors))
	for i, e := range v.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Validate checks configuration values.
func (c *Config) Validate() Validation {
	var v Validation
	fail := func(field, msg string) {
		v.Errors = append(v.Errors, &ConfigError{Field: field, Message: msg})
	}

	if c.AWS.KnowledgeBaseID == "" || c.AWS.KnowledgeBaseID == PlaceholderKnowledgeBaseID {
		fail("aws.kb_id", "must be set to your actual Bedrock Knowledge Base ID")
	}
	if c.Store.Backend == StoreDynamoDB && strings.Contains(c.AWS.DynamoDBTable, "ACCOUNT") {
		fail("aws.dynamodb_table", "must be updated with your actual AWS account ID")
	}
	switch c.Store.Backend {
	case StoreDynamoDB, StoreSQLite, StoreJSON:
	default:
		fail("store.backend", "must be one of dynamodb, sqlite, json")
	}
	if c.Store.Backend != StoreDynamoDB && c.Store.Path == "" {
		fail("store.path", "is required for local store backends")
	}

	if c.Location.Latitude < -90 || c.Location.Latitude > 90 {
		fail("location.latitude", "must be a valid latitude")
	}
	if c.Location.Longitude < -180 || c.Location.Longitude > 180 {
		fail("location.longitude", "must be a valid longitude")
	}
	if c.Geo.CacheHours <= 0 {
		fail("geo.cache_hours", "must be greater than 0")
	}

	if c.Audio.InputSampleRate <= 0 || c.Audio.OutputSampleRate <= 0 {
		fail("audio", "sample rates must be positive")
	}
	if c.Audio.Channels <= 0 {
		fail("audio.channels", "must be positive")
	}
	if c.Audio.ChunkSize <= 0 {
		fail("audio.chunk_size", "must be positive")
	}

	if c.Scoring.MaxResumeHours <= 0 {
		fail("scoring.max_resume_hours", "must be greater than 0")
	}
	if c.Scoring.TTLDays <= 0 {
		fail("scoring.ttl_days", "must be greater than 0")
	}

	switch c.Session.Transport {
	case TransportBedrock:
	case TransportWebSocket:
		if c.Session.WebSocketURL == "" {
			fail("session.websocket_url", "is required for the websocket transport")
		}
	default:
		fail("session.transport", "must be bedrock or websocket")
	}

	if len(c.GolfAPI.Key) < 10 {
		v.Warnings = append(v.Warnings, "golf_api.key not configured - golf course search unavailable")
	}
	if c.GolfAPI.Key != "" && !strings.HasPrefix(c.GolfAPI.URL, "https://") {
		v.Warnings = append(v.Warnings, "golf_api.url should be a valid HTTPS URL")
	}

	return v
}
