package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/teslashibe/go-caddy/internal/config"
	"github.com/teslashibe/go-caddy/internal/log"
	"github.com/teslashibe/go-caddy/pkg/audioio"
	"github.com/teslashibe/go-caddy/pkg/course"
	"github.com/teslashibe/go-caddy/pkg/geo"
	"github.com/teslashibe/go-caddy/pkg/scorestore"
	"github.com/teslashibe/go-caddy/pkg/scoring"
	"github.com/teslashibe/go-caddy/pkg/sonic"
	"github.com/teslashibe/go-caddy/pkg/tools"
	"github.com/teslashibe/go-caddy/pkg/weather"
)

type app struct {
	cfgFile  string
	envFiles []string
	debug    bool
	logLevel string
	cfg      *config.Config

	awsCfg *aws.Config

	// Constructors replaced in tests.
	openTransport func(ctx context.Context, a *app) (sonic.Transport, error)
	openStore     func(ctx context.Context, a *app) (scorestore.Store, error)
	knowledgeAPI  course.KnowledgeAPI
	loadAWS       func(ctx context.Context, region string) (aws.Config, error)
}

// Option customizes the wiring, mostly for tests.
type Option func(*app)

// WithTransport replaces the model stream.
func WithTransport(fn func(ctx context.Context) (sonic.Transport, error)) Option {
	return func(a *app) {
		a.openTransport = func(ctx context.Context, _ *app) (sonic.Transport, error) { return fn(ctx) }
	}
}

// WithStore replaces the score store.
func WithStore(fn func(ctx context.Context) (scorestore.Store, error)) Option {
	return func(a *app) {
		a.openStore = func(ctx context.Context, _ *app) (scorestore.Store, error) { return fn(ctx) }
	}
}

// WithKnowledgeAPI replaces the Bedrock agent runtime client.
func WithKnowledgeAPI(api course.KnowledgeAPI) Option {
	return func(a *app) { a.knowledgeAPI = api }
}

// WithEnvFiles sets the dotenv files to load.
func WithEnvFiles(files ...string) Option {
	return func(a *app) { a.envFiles = files }
}

func newApp(opts ...Option) *app {
	a := &app{
		openTransport: defaultTransport,
		openStore:     defaultStore,
		loadAWS: func(ctx context.Context, region string) (aws.Config, error) {
			return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *app) aws(ctx context.Context) (aws.Config, error) {
	if a.awsCfg != nil {
		return *a.awsCfg, nil
	}
	cfg, err := a.loadAWS(ctx, a.cfg.AWS.Region)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS configuration: %w", err)
	}
	a.awsCfg = &cfg
	return cfg, nil
}

func defaultTransport(ctx context.Context, a *app) (sonic.Transport, error) {
	switch a.cfg.Session.Transport {
	case config.TransportWebSocket:
		if a.cfg.Session.WebSocketURL == "" {
			return nil, errors.New("session.websocket_url is required for the websocket transport")
		}
		return sonic.DialWebSocket(ctx, a.cfg.Session.WebSocketURL, nil)
	case config.TransportBedrock, "":
		awsCfg, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		return sonic.OpenBedrock(ctx, bedrockruntime.NewFromConfig(awsCfg), a.cfg.AWS.ModelID)
	default:
		return nil, fmt.Errorf("unknown session transport %q", a.cfg.Session.Transport)
	}
}

func defaultStore(ctx context.Context, a *app) (scorestore.Store, error) {
	var (
		s   scorestore.Store
		err error
	)
	switch a.cfg.Store.Backend {
	case config.StoreJSON:
		s, err = scorestore.NewJSONStore(a.cfg.Store.Path)
	case config.StoreSQLite:
		s, err = scorestore.NewSQLiteStore(a.cfg.Store.Path)
	case config.StoreDynamoDB:
		return dynamoStore(ctx, a)
	default:
		return nil, fmt.Errorf("unknown store backend %q", a.cfg.Store.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := purgeExpired(ctx, s, time.Now()); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func dynamoStore(ctx context.Context, a *app) (scorestore.Store, error) {
	region, table, err := scorestore.ParseTableARN(a.cfg.AWS.DynamoDBTable)
	if err != nil {
		return nil, err
	}
	awsCfg, err := a.aws(ctx)
	if err != nil {
		return nil, err
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if region != "" {
			o.Region = region
		}
	})
	return scorestore.NewDynamoStore(client, table)
}

// purgeExpired drops records past their TTL from stores that expire locally.
func purgeExpired(ctx context.Context, s scorestore.Store, now time.Time) error {
	e, ok := s.(scorestore.Expirer)
	if !ok {
		return nil
	}
	n, err := e.DeleteExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("purge expired scores: %w", err)
	}
	if n > 0 {
		log.For(log.ComponentScoring).Info("expired score records purged", "count", n)
	}
	return nil
}

// knowledge returns the course knowledge base, or nil when none is configured.
func (a *app) knowledge(ctx context.Context) (tools.CourseKnowledge, error) {
	kb := a.cfg.AWS.KnowledgeBaseID
	if kb == "" || kb == config.PlaceholderKnowledgeBaseID {
		return nil, nil
	}
	api := a.knowledgeAPI
	if api == nil {
		awsCfg, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		api = bedrockagentruntime.NewFromConfig(awsCfg)
	}
	return a.bedrockKnowledge(api), nil
}

func (a *app) bedrockKnowledge(api course.KnowledgeAPI) *course.BedrockKnowledge {
	return course.NewBedrockKnowledge(api, course.KnowledgeConfig{
		KnowledgeBaseID: a.cfg.AWS.KnowledgeBaseID,
		ModelARN:        a.cfg.AWS.KBModelARN,
		ClubName:        a.cfg.App.ClubName,
	})
}

func (a *app) weather() *weather.Client {
	loc := a.cfg.Location
	return weather.NewClient(weather.Config{
		URL: a.cfg.Weather.URL,
		Location: weather.Location{
			Name:      loc.Name,
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
			Timezone:  loc.Timezone,
		},
		Timeout: a.cfg.Weather.Timeout(),
	})
}

func (a *app) locator() *geo.Locator {
	loc := a.cfg.Location
	return geo.NewLocator(geo.Config{
		URL:           a.cfg.Geo.URL,
		Timeout:       a.cfg.Geo.Timeout(),
		CacheDuration: a.cfg.Geo.CacheDuration(),
		Fallback: geo.Location{
			Name:      loc.Name,
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
			Timezone:  loc.Timezone,
		},
	})
}

func (a *app) golfAPI() *course.GolfAPI {
	return course.NewGolfAPI(course.GolfAPIConfig{
		URL:     a.cfg.GolfAPI.URL,
		Key:     a.cfg.GolfAPI.Key,
		Timeout: a.cfg.GolfAPI.Timeout(),
	})
}

func (a *app) scoringConfig() scoring.Config {
	s := a.cfg.Scoring
	return scoring.Config{
		MaxResumeHours:   float64(s.MaxResumeHours),
		AutoAbandonHours: float64(s.AutoAbandonHours),
		SameDayOnly:      s.SameDayOnly,
		MaxActiveRounds:  s.MaxActiveRounds,
		TTLDays:          s.TTLDays,
		CourseName:       a.cfg.App.ClubName,
	}
}

func (a *app) sessionOptions() []sonic.Option {
	s := a.cfg.Session
	specs := make([]sonic.ToolSpec, 0, len(tools.Manifest()))
	for _, t := range tools.Manifest() {
		specs = append(specs, sonic.ToolSpec{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.SchemaJSON(),
		})
	}
	return []sonic.Option{
		sonic.WithSystemPrompt(a.cfg.SystemPrompt()),
		sonic.WithTools(specs...),
		sonic.WithInference(s.MaxTokens, s.TopP, s.Temperature),
		sonic.WithVoice(s.VoiceID),
		sonic.WithSampleRates(a.cfg.Audio.InputSampleRate, a.cfg.Audio.OutputSampleRate),
		sonic.WithInitPacing(s.InitPacing()),
	}
}

func (a *app) audioConfigs(backend string) (capture, playback audioio.Config) {
	au := a.cfg.Audio
	if backend == "" {
		backend = au.Backend
	}
	capture = audioio.CaptureConfig()
	capture.Backend = audioio.Backend(backend)
	capture.SampleRate = au.InputSampleRate
	capture.Channels = au.Channels
	capture.FramesPerBuffer = au.ChunkSize
	capture.Command = au.InputCommand

	playback = audioio.PlaybackConfig()
	playback.Backend = audioio.Backend(backend)
	playback.SampleRate = au.OutputSampleRate
	playback.Channels = au.Channels
	playback.FramesPerBuffer = au.ChunkSize
	playback.Command = au.OutputCommand
	return capture, playback
}
