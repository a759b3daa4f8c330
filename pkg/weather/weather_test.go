package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pinehurst = Location{Name: "Pinehurst, NC", Latitude: 35.1898, Longitude: -79.4669, Timezone: "America/New_York"}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(Config{URL: srv.URL, Location: pinehurst, Timeout: time.Second})
	c.now = func() time.Time { return time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC) }
	return c
}

func TestGolfWeatherFromAPI(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "35.1898", q.Get("latitude"))
		assert.Equal(t, "-79.4669", q.Get("longitude"))
		assert.Equal(t, "fahrenheit", q.Get("temperature_unit"))
		assert.Equal(t, "mph", q.Get("wind_speed_unit"))
		assert.Equal(t, "America/New_York", q.Get("timezone"))
		assert.Contains(t, q.Get("current"), "uv_index")
		w.Write([]byte(`{"current":{"time":"2026-10-14T09:30","temperature_2m":74.6,
			"relative_humidity_2m":55,"wind_speed_10m":8.4,"wind_direction_10m":270,"uv_index":6.2}}`))
	})

	rep := c.GolfWeather(context.Background(), "")
	assert.True(t, rep.Success)
	assert.Equal(t, SourceAPI, rep.Source)
	assert.Equal(t, "Pinehurst, NC", rep.Location)
	assert.Empty(t, rep.Note)
	assert.Equal(t, Conditions{
		Temperature:   75,
		Humidity:      55,
		WindSpeed:     8,
		WindDirection: "W",
		UVIndex:       6.2,
		Timestamp:     "2026-10-14T09:30",
	}, rep.Weather)
	assert.Equal(t, "Moderate 8 mph wind from the W. Adjust club selection and aim accordingly. Focus on lower ball flight for better control.", rep.GolfAdvice.Wind)
	assert.Equal(t, "Excellent golf conditions! Perfect day to be on the course.", rep.GolfAdvice.Overall)
}

func TestGolfWeatherOverrideKeepsCoordinates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "35.1898", r.URL.Query().Get("latitude"))
		w.Write([]byte(`{"current":{"temperature_2m":70}}`))
	})

	rep := c.GolfWeather(context.Background(), "Augusta")
	assert.Equal(t, "Augusta", rep.Location)
	assert.Equal(t, SourceAPI, rep.Source)
}

func TestParseDefaults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"current":{}}`))
	})

	cond, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 70, cond.Temperature)
	assert.Equal(t, 60.0, cond.Humidity)
	assert.Equal(t, 5, cond.WindSpeed)
	assert.Equal(t, "S", cond.WindDirection)
	assert.Equal(t, 5.0, cond.UVIndex)
	assert.Equal(t, "2026-10-14T09:30:00", cond.Timestamp)
}

func TestParseNullDirection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"current":{"wind_direction_10m":null}}`))
	})

	cond, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Variable", cond.WindDirection)
}

func TestGolfWeatherFallback(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) { http.Error(w, "down", http.StatusServiceUnavailable) }},
		{"malformed", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"current":`)) }},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(3 * time.Second):
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			c.cfg.Timeout = 100 * time.Millisecond

			rep := c.GolfWeather(context.Background(), "Augusta")
			assert.True(t, rep.Success)
			assert.Equal(t, SourceFallback, rep.Source)
			assert.Equal(t, "Using simulated weather data", rep.Note)
			assert.Equal(t, Fallback("Augusta", c.now()), rep.Weather)
		})
	}
}

func TestFallbackDeterministic(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	a := Fallback("Pinehurst, NC", now)
	b := Fallback("Pinehurst, NC", now)
	assert.Equal(t, a, b)

	for _, loc := range []string{"Pinehurst, NC", "Augusta", "St Andrews", ""} {
		c := Fallback(loc, now)
		assert.GreaterOrEqual(t, c.Temperature, 65, loc)
		assert.LessOrEqual(t, c.Temperature, 82, loc)
		assert.GreaterOrEqual(t, c.Humidity, 45.0, loc)
		assert.LessOrEqual(t, c.Humidity, 75.0, loc)
		assert.GreaterOrEqual(t, c.WindSpeed, 3, loc)
		assert.LessOrEqual(t, c.WindSpeed, 15, loc)
		assert.GreaterOrEqual(t, c.UVIndex, 4.0, loc)
		assert.LessOrEqual(t, c.UVIndex, 8.0, loc)
		assert.Contains(t, fallbackDirections, c.WindDirection, loc)
	}
}

func TestWindDirection(t *testing.T) {
	tests := []struct {
		deg  float64
		want string
	}{
		{0, "N"},
		{11, "N"},
		{22.5, "NNE"},
		{90, "E"},
		{180, "S"},
		{270, "W"},
		{350, "N"},
		{359, "N"},
		{337.5, "NNW"},
	}
	for _, tt := range tests {
		if got := WindDirection(tt.deg); got != tt.want {
			t.Errorf("WindDirection(%v) = %q, want %q", tt.deg, got, tt.want)
		}
	}
}

func TestAdvice(t *testing.T) {
	t.Run("temperature bands", func(t *testing.T) {
		assert.True(t, strings.HasPrefix(TemperatureAdvice(55), "Cold conditions"))
		assert.True(t, strings.HasPrefix(TemperatureAdvice(65), "Cool but playable"))
		assert.True(t, strings.HasPrefix(TemperatureAdvice(80), "Ideal golf temperature"))
		assert.True(t, strings.HasPrefix(TemperatureAdvice(90), "Warm conditions"))
		assert.True(t, strings.HasPrefix(TemperatureAdvice(91), "Hot conditions"))
	})

	t.Run("wind bands", func(t *testing.T) {
		assert.True(t, strings.HasPrefix(WindAdvice(5, "N"), "Light breeze from the N"))
		assert.True(t, strings.HasPrefix(WindAdvice(12, "N"), "Moderate 12 mph"))
		assert.True(t, strings.HasPrefix(WindAdvice(20, "N"), "Strong 20 mph"))
		assert.True(t, strings.HasPrefix(WindAdvice(21, "N"), "Very strong 21 mph"))
	})

	t.Run("conditions", func(t *testing.T) {
		assert.Equal(t, "Low UV - minimal sun protection needed. Low humidity means firmer conditions and more ball roll.", ConditionsAdvice(2, 30))
		assert.Equal(t, "Moderate UV - consider sunscreen and a hat.", ConditionsAdvice(5, 60))
		assert.Equal(t, "Very high UV - essential to use strong sunscreen, hat, and seek shade when possible. High humidity will make greens softer and more receptive to shots.", ConditionsAdvice(9, 80))
	})

	t.Run("playability", func(t *testing.T) {
		assert.Equal(t, 10, Playability(Conditions{Temperature: 75, WindSpeed: 5}))
		assert.Equal(t, 8, Playability(Conditions{Temperature: 88, WindSpeed: 15}))
		assert.Equal(t, 4, Playability(Conditions{Temperature: 45, WindSpeed: 25}))
		assert.Equal(t, "Challenging but manageable conditions. Focus on course management.", OverallAssessment(Conditions{Temperature: 45, WindSpeed: 25}))
	})

	t.Run("recommendations", func(t *testing.T) {
		assert.Empty(t, Recommendations(Conditions{Temperature: 72, WindSpeed: 5, Humidity: 55}))
		assert.NotNil(t, Recommendations(Conditions{Temperature: 72, WindSpeed: 5, Humidity: 55}))
		assert.Equal(t, []string{
			"Bring plenty of water and electrolyte drinks",
			"Focus on grip control and consider rain gloves for better hold",
			"Practice low ball flight shots on the range",
			"Expect softer greens - be more aggressive with approach shots",
		}, Recommendations(Conditions{Temperature: 90, WindSpeed: 14, Humidity: 80}))
	})
}
