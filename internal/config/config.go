// Package config provides layered configuration for go-caddy commands.
//
// Values are resolved in order: built-in defaults, an optional caddy.toml,
// a .env file, then CADDY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// Placeholder values that must be replaced before running against AWS.
const (
	PlaceholderKnowledgeBaseID = "YOUR_KB_ID_HERE"
	PlaceholderTableARN        = "arn:aws:dynamodb:us-east-1:ACCOUNT:table/golf-scores"
)

// Store backends.
const (
	StoreDynamoDB = "dynamodb"
	StoreSQLite   = "sqlite"
	StoreJSON     = "json"
)

// Session transports.
const (
	TransportBedrock   = "bedrock"
	TransportWebSocket = "websocket"
)

const systemPromptTemplate = "You are a friendly and knowledgeable golf caddy assistant for {club_name}. " +
	"You help golfers with course information, real-time weather conditions, strategic advice, and score tracking for their round. " +
	"You know every hole at {club_name} intimately and can provide detailed advice about course strategy, hazards, and club selection. " +
	"For weather information, you provide comprehensive golf-specific advice including temperature effects on ball performance, wind strategy, equipment recommendations, and course conditions. " +
	"You can also track scores throughout the round - when players mention their score, use the recordScoreTool. You understand golf terminology like birdie (1 under par), eagle (2 under par), bogey (1 over par), and can convert these to actual stroke counts. " +
	"When players ask about their performance, use getScoreStatusTool to provide current totals, front nine, back nine, or overall round analysis. " +
	"When someone introduces themselves or mentions their name, immediately use registerPlayerTool with their first name to set up score tracking. If they want to track scores but haven't given their name, ask them to introduce themselves first. " +
	"Speak in a conversational, supportive tone as if you're walking alongside them on the course. " +
	"When mentioning hole numbers, say them clearly, for example 'hole number five' or 'the fifth hole'. " +
	"Provide practical, actionable advice that will help improve their game and enjoyment of golf at {club_name}. " +
	"Celebrate good scores and offer encouragement for challenging holes."

// Config holds all configuration for the caddy application.
type Config struct {
	App      AppConfig      `mapstructure:"app" toml:"app"`
	AWS      AWSConfig      `mapstructure:"aws" toml:"aws"`
	Location LocationConfig `mapstructure:"location" toml:"location"`
	Weather  WeatherConfig  `mapstructure:"weather" toml:"weather"`
	Geo      GeoConfig      `mapstructure:"geo" toml:"geo"`
	GolfAPI  GolfAPIConfig  `mapstructure:"golf_api" toml:"golf_api"`
	Audio    AudioConfig    `mapstructure:"audio" toml:"audio"`
	Scoring  ScoringConfig  `mapstructure:"scoring" toml:"scoring"`
	Store    StoreConfig    `mapstructure:"store" toml:"store"`
	Session  SessionConfig  `mapstructure:"session" toml:"session"`
}

// AppConfig carries application metadata and logging switches.
type AppConfig struct {
	Name     string     `mapstructure:"name" toml:"name"`
	Version  string     `mapstructure:"version" toml:"version"`
	ClubName string     `mapstructure:"club_name" toml:"club_name"`
	LogLevel string     `mapstructure:"log_level" toml:"log_level"`
	Debug    bool       `mapstructure:"debug" toml:"debug"`
	DebugFor DebugFlags `mapstructure:"debug_for" toml:"debug_for"`
}

// DebugFlags are per-component debug switches; they apply only when Debug is set.
type DebugFlags struct {
	Sonic   bool `mapstructure:"sonic" toml:"sonic"`
	Weather bool `mapstructure:"weather" toml:"weather"`
	Geo     bool `mapstructure:"geo" toml:"geo"`
	Course  bool `mapstructure:"course" toml:"course"`
	Scoring bool `mapstructure:"scoring" toml:"scoring"`
	Audio   bool `mapstructure:"audio" toml:"audio"`
}

// Map returns the flags keyed by component name.
func (d DebugFlags) Map() map[string]bool {
	return map[string]bool{
		"sonic":   d.Sonic,
		"weather": d.Weather,
		"geo":     d.Geo,
		"course":  d.Course,
		"scoring": d.Scoring,
		"audio":   d.Audio,
	}
}

// AWSConfig holds Bedrock and DynamoDB settings.
type AWSConfig struct {
	Region          string `mapstructure:"region" toml:"region"`
	ModelID         string `mapstructure:"model_id" toml:"model_id"`
	KnowledgeBaseID string `mapstructure:"kb_id" toml:"kb_id"`
	KBModelARN      string `mapstructure:"kb_model_arn" toml:"kb_model_arn"`
	DynamoDBTable   string `mapstructure:"dynamodb_table" toml:"dynamodb_table"`
}

// LocationConfig is the default course location.
type LocationConfig struct {
	Name      string  `mapstructure:"name" toml:"name"`
	Latitude  float64 `mapstructure:"latitude" toml:"latitude"`
	Longitude float64 `mapstructure:"longitude" toml:"longitude"`
	Timezone  string  `mapstructure:"timezone" toml:"timezone"`
}

// WeatherConfig configures the Open-Meteo adapter.
type WeatherConfig struct {
	URL            string `mapstructure:"url" toml:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" toml:"timeout_seconds"`
}

// Timeout returns the request timeout.
func (w WeatherConfig) Timeout() time.Duration { return seconds(w.TimeoutSeconds) }

// GeoConfig configures IP geolocation.
type GeoConfig struct {
	URL            string `mapstructure:"url" toml:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" toml:"timeout_seconds"`
	CacheHours     int    `mapstructure:"cache_hours" toml:"cache_hours"`
}

// Timeout returns the request timeout.
func (g GeoConfig) Timeout() time.Duration { return seconds(g.TimeoutSeconds) }

// CacheDuration returns how long a detected location stays valid.
func (g GeoConfig) CacheDuration() time.Duration { return time.Duration(g.CacheHours) * time.Hour }

// GolfAPIConfig configures golfcourseapi.com.
type GolfAPIConfig struct {
	URL            string `mapstructure:"url" toml:"url"`
	Key            string `mapstructure:"key" toml:"key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" toml:"timeout_seconds"`
}

// Timeout returns the request timeout.
func (g GolfAPIConfig) Timeout() time.Duration { return seconds(g.TimeoutSeconds) }

// AudioConfig configures capture and playback.
type AudioConfig struct {
	Backend          string   `mapstructure:"backend" toml:"backend"`
	InputSampleRate  int      `mapstructure:"input_sample_rate" toml:"input_sample_rate"`
	OutputSampleRate int      `mapstructure:"output_sample_rate" toml:"output_sample_rate"`
	Channels         int      `mapstructure:"channels" toml:"channels"`
	ChunkSize        int      `mapstructure:"chunk_size" toml:"chunk_size"`
	InputCommand     []string `mapstructure:"input_command" toml:"input_command"`
	OutputCommand    []string `mapstructure:"output_command" toml:"output_command"`
}

// ScoringConfig is the round resume and retention policy.
type ScoringConfig struct {
	MaxResumeHours   int  `mapstructure:"max_resume_hours" toml:"max_resume_hours"`
	AutoAbandonHours int  `mapstructure:"auto_abandon_hours" toml:"auto_abandon_hours"`
	SameDayOnly      bool `mapstructure:"same_day_only" toml:"same_day_only"`
	MaxActiveRounds  int  `mapstructure:"max_active_rounds" toml:"max_active_rounds"`
	TTLDays          int  `mapstructure:"ttl_days" toml:"ttl_days"`
}

// StoreConfig selects the score store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend" toml:"backend"`
	Path    string `mapstructure:"path" toml:"path"`
}

// SessionConfig configures the speech-to-speech stream.
type SessionConfig struct {
	Transport    string  `mapstructure:"transport" toml:"transport"`
	WebSocketURL string  `mapstructure:"websocket_url" toml:"websocket_url"`
	InitPacingMS int     `mapstructure:"init_pacing_ms" toml:"init_pacing_ms"`
	MaxTokens    int     `mapstructure:"max_tokens" toml:"max_tokens"`
	TopP         float64 `mapstructure:"top_p" toml:"top_p"`
	Temperature  float64 `mapstructure:"temperature" toml:"temperature"`
	VoiceID      string  `mapstructure:"voice_id" toml:"voice_id"`
}

// InitPacing returns the pause between bootstrap events.
func (s SessionConfig) InitPacing() time.Duration {
	return time.Duration(s.InitPacingMS) * time.Millisecond
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:     "Nova Sonic Golf Assistant",
			Version:  "1.0.0",
			ClubName: "Sunny Hills Golf Club",
			LogLevel: "info",
		},
		AWS: AWSConfig{
			Region:          "us-east-1",
			ModelID:         "amazon.nova-sonic-v1:0",
			KnowledgeBaseID: PlaceholderKnowledgeBaseID,
			KBModelARN:      "arn:aws:bedrock:us-east-1::foundation-model/amazon.nova-micro-v1:0",
			DynamoDBTable:   PlaceholderTableARN,
		},
		Location: LocationConfig{
			Name:      "Pinehurst, NC",
			Latitude:  35.1898,
			Longitude: -79.4669,
			Timezone:  "America/New_York",
		},
		Weather: WeatherConfig{
			URL:            "https://api.open-meteo.com/v1/forecast",
			TimeoutSeconds: 10,
		},
		Geo: GeoConfig{
			URL:            "http://ip-api.com/json/",
			TimeoutSeconds: 5,
			CacheHours:     4,
		},
		GolfAPI: GolfAPIConfig{
			URL:            "https://api.golfcourseapi.com",
			TimeoutSeconds: 10,
		},
		Audio: AudioConfig{
			Backend:          "auto",
			InputSampleRate:  16000,
			OutputSampleRate: 24000,
			Channels:         1,
			ChunkSize:        1024,
		},
		Scoring: ScoringConfig{
			MaxResumeHours:   4,
			AutoAbandonHours: 24,
			SameDayOnly:      true,
			MaxActiveRounds:  2,
			TTLDays:          30,
		},
		Store: StoreConfig{
			Backend: StoreDynamoDB,
			Path:    defaultStorePath(),
		},
		Session: SessionConfig{
			Transport:    TransportBedrock,
			WebSocketURL: "ws://127.0.0.1:8765/stream",
			InitPacingMS: 100,
			MaxTokens:    1024,
			TopP:         0.9,
			Temperature:  0.7,
			VoiceID:      "tiffany",
		},
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".caddy", "scores.db")
	}
	return filepath.Join(home, ".caddy", "scores.db")
}

// LoadOptions controls where Load looks for configuration.
type LoadOptions struct {
	// File is an explicit config file; it must exist when set.
	File string

	// EnvFiles are dotenv files to load; defaults to ".env". Missing files are ignored.
	EnvFiles []string

	// Viper lets callers supply a pre-populated instance (flags, tests).
	Viper *viper.Viper
}

// Load resolves configuration from defaults, file, dotenv and environment.
func Load(opts LoadOptions) (*Config, error) {
	envFiles := opts.EnvFiles
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := opts.Viper
	if v == nil {
		v = viper.New()
	}
	setDefaults(v, Default())

	v.SetConfigType("toml")
	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName("caddy")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "caddy"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("CADDY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so environment overrides resolve.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("app.name", d.App.Name)
	v.SetDefault("app.version", d.App.Version)
	v.SetDefault("app.club_name", d.App.ClubName)
	v.SetDefault("app.log_level", d.App.LogLevel)
	v.SetDefault("app.debug", d.App.Debug)
	v.SetDefault("app.debug_for.sonic", false)
	v.SetDefault("app.debug_for.weather", false)
	v.SetDefault("app.debug_for.geo", false)
	v.SetDefault("app.debug_for.course", false)
	v.SetDefault("app.debug_for.scoring", false)
	v.SetDefault("app.debug_for.audio", false)

	v.SetDefault("aws.region", d.AWS.Region)
	v.SetDefault("aws.model_id", d.AWS.ModelID)
	v.SetDefault("aws.kb_id", d.AWS.KnowledgeBaseID)
	v.SetDefault("aws.kb_model_arn", d.AWS.KBModelARN)
	v.SetDefault("aws.dynamodb_table", d.AWS.DynamoDBTable)

	v.SetDefault("location.name", d.Location.Name)
	v.SetDefault("location.latitude", d.Location.Latitude)
	v.SetDefault("location.longitude", d.Location.Longitude)
	v.SetDefault("location.timezone", d.Location.Timezone)

	v.SetDefault("weather.url", d.Weather.URL)
	v.SetDefault("weather.timeout_seconds", d.Weather.TimeoutSeconds)

	v.SetDefault("geo.url", d.Geo.URL)
	v.SetDefault("geo.timeout_seconds", d.Geo.TimeoutSeconds)
	v.SetDefault("geo.cache_hours", d.Geo.CacheHours)

	v.SetDefault("golf_api.url", d.GolfAPI.URL)
	v.SetDefault("golf_api.key", d.GolfAPI.Key)
	v.SetDefault("golf_api.timeout_seconds", d.GolfAPI.TimeoutSeconds)

	v.SetDefault("audio.backend", d.Audio.Backend)
	v.SetDefault("audio.input_sample_rate", d.Audio.InputSampleRate)
	v.SetDefault("audio.output_sample_rate", d.Audio.OutputSampleRate)
	v.SetDefault("audio.channels", d.Audio.Channels)
	v.SetDefault("audio.chunk_size", d.Audio.ChunkSize)
	v.SetDefault("audio.input_command", d.Audio.InputCommand)
	v.SetDefault("audio.output_command", d.Audio.OutputCommand)

	v.SetDefault("scoring.max_resume_hours", d.Scoring.MaxResumeHours)
	v.SetDefault("scoring.auto_abandon_hours", d.Scoring.AutoAbandonHours)
	v.SetDefault("scoring.same_day_only", d.Scoring.SameDayOnly)
	v.SetDefault("scoring.max_active_rounds", d.Scoring.MaxActiveRounds)
	v.SetDefault("scoring.ttl_days", d.Scoring.TTLDays)

	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.path", d.Store.Path)

	v.SetDefault("session.transport", d.Session.Transport)
	v.SetDefault("session.websocket_url", d.Session.WebSocketURL)
	v.SetDefault("session.init_pacing_ms", d.Session.InitPacingMS)
	v.SetDefault("session.max_tokens", d.Session.MaxTokens)
	v.SetDefault("session.top_p", d.Session.TopP)
	v.SetDefault("session.temperature", d.Session.Temperature)
	v.SetDefault("session.voice_id", d.Session.VoiceID)
}

// SystemPrompt returns the system prompt with the club name filled in.
func (c *Config) SystemPrompt() string {
	return strings.ReplaceAll(systemPromptTemplate, "{club_name}", c.App.ClubName)
}

// TOML renders the effective configuration.
func (c *Config) TOML() ([]byte, error) {
	return toml.Marshal(c)
}

// Summary is a short, secret-free view of the configuration.
type Summary struct {
	AppName            string `toml:"app_name"`
	AppVersion         string `toml:"app_version"`
	GolfClub           string `toml:"golf_club"`
	Location           string `toml:"location"`
	KnowledgeBaseID    string `toml:"knowledge_base_id"`
	CacheDurationHours int    `toml:"cache_duration_hours"`
	StoreBackend       string `toml:"store_backend"`
	Transport          string `toml:"transport"`
}

// Summary returns a masked summary suitable for logs.
func (c *Config) Summary() Summary {
	kb := c.AWS.KnowledgeBaseID
	if len(kb) > 10 {
		kb = kb[:10] + "..."
	}
	return Summary{
		AppName:            c.App.Name,
		AppVersion:         c.App.Version,
		GolfClub:           c.App.ClubName,
		Location:           c.Location.Name,
		KnowledgeBaseID:    kb,
		CacheDurationHours: c.Geo.CacheHours,
		StoreBackend:       c.Store.Backend,
		Transport:          c.Session.Transport,
	}
}
