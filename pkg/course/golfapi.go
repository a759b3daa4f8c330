package course

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teslashibe/go-caddy/internal/httpc"
	"github.com/teslashibe/go-caddy/internal/log"
)

// DefaultGolfAPIURL is the golfcourseapi.com base URL.
const DefaultGolfAPIURL = "https://api.golfcourseapi.com"

// CourseLocation is where a course is.
type CourseLocation struct {
	Address   string  `json:"address,omitempty"`
	City      string  `json:"city,omitempty"`
	State     string  `json:"state,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

// Hole is a hole on one tee.
type Hole struct {
	Par      int `json:"par"`
	Yardage  int `json:"yardage"`
	Handicap int `json:"handicap"`
}

// Tee is one set of tee boxes.
type Tee struct {
	TeeName       string  `json:"tee_name"`
	CourseRating  float64 `json:"course_rating,omitempty"`
	SlopeRating   int     `json:"slope_rating,omitempty"`
	BogeyRating   float64 `json:"bogey_rating,omitempty"`
	TotalYards    int     `json:"total_yards,omitempty"`
	TotalMeters   int     `json:"total_meters,omitempty"`
	NumberOfHoles int     `json:"number_of_holes,omitempty"`
	ParTotal      int     `json:"par_total,omitempty"`
	Holes         []Hole  `json:"holes,omitempty"`
}

// Tees groups tees by gender.
type Tees struct {
	Female []Tee `json:"female,omitempty"`
	Male   []Tee `json:"male,omitempty"`
}

// ByGender returns the tees for "male" or "female".
func (t Tees) ByGender(gender string) []Tee {
	switch strings.ToLower(gender) {
	case "female":
		return t.Female
	case "male":
		return t.Male
	}
	return nil
}

// Course is a course record.
type Course struct {
	ID         int            `json:"id"`
	ClubName   string         `json:"club_name"`
	CourseName string         `json:"course_name"`
	Location   CourseLocation `json:"location"`
	Tees       Tees           `json:"tees"`
}

// Health is the service status.
type Health struct {
	Status string `json:"status"`
}

// GolfAPIConfig configures GolfAPI.
type GolfAPIConfig struct {
	URL     string
	Key     string
	Timeout time.Duration
}

// GolfAPI is a golfcourseapi.com client.
type GolfAPI struct {
	baseURL string
	key     string
	timeout time.Duration
	http    *http.Client
	logger  *slog.Logger
}

// NewGolfAPI returns a client. A zero timeout means 10 seconds.
func NewGolfAPI(cfg GolfAPIConfig) *GolfAPI {
	if cfg.URL == "" {
		cfg.URL = DefaultGolfAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &GolfAPI{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		key:     cfg.Key,
		timeout: cfg.Timeout,
		http:    httpc.NewClient(cfg.Timeout),
		logger:  log.For(log.ComponentCourse),
	}
}

func (g *GolfAPI) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if g.key == "" {
		return ErrMissingAPIKey
	}
	header := http.Header{}
	header.Set("Authorization", "Key "+g.key)
	header.Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	err := httpc.GetJSON(ctx, g.http, g.baseURL+endpoint, params, header, out)
	if err == nil {
		return nil
	}

	var se *httpc.StatusError
	switch {
	case errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized:
		return &APIError{StatusCode: se.StatusCode, Message: "API key is missing or invalid", Err: err}
	case errors.As(err, &se):
		return &APIError{StatusCode: se.StatusCode, Message: fmt.Sprintf("API request failed with status %d: %s", se.StatusCode, se.Body), Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &APIError{Message: fmt.Sprintf("Request timed out after %d seconds", int(g.timeout/time.Second)), Err: err}
	default:
		return &APIError{Message: "Network error: " + err.Error(), Err: err}
	}
}

// SearchCourses searches by club or course name.
func (g *GolfAPI) SearchCourses(ctx context.Context, query string) ([]Course, error) {
	var resp struct {
		Courses []Course `json:"courses"`
	}
	if err := g.get(ctx, "/v1/search", url.Values{"search_query": {query}}, &resp); err != nil {
		return nil, err
	}
	g.logger.Debug("course search", "query", query, "results", len(resp.Courses))
	return resp.Courses, nil
}

// CourseDetails returns the full record for id.
func (g *GolfAPI) CourseDetails(ctx context.Context, id int) (Course, error) {
	var c Course
	if err := g.get(ctx, fmt.Sprintf("/v1/courses/%d", id), nil, &c); err != nil {
		return Course{}, err
	}
	return c, nil
}

// Healthcheck returns the service status.
func (g *GolfAPI) Healthcheck(ctx context.Context) (Health, error) {
	var h Health
	err := g.get(ctx, "/v1/healthcheck", nil, &h)
	return h, err
}

// FindCourseByName returns the full details of the best search match.
func (g *GolfAPI) FindCourseByName(ctx context.Context, name string) (Course, error) {
	courses, err := g.SearchCourses(ctx, name)
	if err != nil {
		return Course{}, err
	}
	if len(courses) == 0 {
		return Course{}, fmt.Errorf("%w: %q", ErrCourseNotFound, name)
	}
	first := courses[0]
	if first.ID == 0 {
		return first, nil
	}
	return g.CourseDetails(ctx, first.ID)
}

// CourseTees returns a course's tees for gender ("male" or "female").
func (g *GolfAPI) CourseTees(ctx context.Context, id int, gender string) ([]Tee, error) {
	c, err := g.CourseDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.Tees.ByGender(gender), nil
}

// HoleInfo returns the holes of the named tee, or of the first tee when
// teeName is empty. Male tees are searched before female tees.
func (g *GolfAPI) HoleInfo(ctx context.Context, id int, teeName string) ([]Hole, error) {
	c, err := g.CourseDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	return holesFor(c.Tees, teeName), nil
}

func holesFor(tees Tees, teeName string) []Hole {
	for _, group := range [][]Tee{tees.Male, tees.Female} {
		for _, t := range group {
			if teeName == "" || strings.EqualFold(t.TeeName, teeName) {
				return t.Holes
			}
		}
	}
	return nil
}

// FormatCourseSummary renders a course as a few lines of text.
func FormatCourseSummary(c *Course) string {
	if c == nil {
		return "No course data available"
	}

	club := c.ClubName
	if club == "" {
		club = "Unknown Club"
	}
	name := c.CourseName
	if name == "" {
		name = "Unknown Course"
	}

	var b strings.Builder
	b.WriteString(club)
	if name != club {
		b.WriteString(" - " + name)
	}
	if c.Location.City != "" && c.Location.State != "" {
		fmt.Fprintf(&b, "\nLocation: %s, %s", c.Location.City, c.Location.State)
	}

	if male := c.Tees.Male; len(male) > 0 {
		names := make([]string, len(male))
		for i, t := range male {
			names[i] = t.TeeName
			if names[i] == "" {
				names[i] = "Unknown"
			}
		}
		fmt.Fprintf(&b, "\nTees Available: %s", strings.Join(names, ", "))
		if first := male[0]; first.TotalYards > 0 && first.ParTotal > 0 {
			fmt.Fprintf(&b, "\nYardage: %d yards, Par %d", first.TotalYards, first.ParTotal)
		}
	}
	return b.String()
}
