package course

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pinehurstJSON = `{
	"id": 42,
	"club_name": "Pinehurst Resort",
	"course_name": "No. 2",
	"location": {"city": "Pinehurst", "state": "NC"},
	"tees": {
		"male": [
			{"tee_name": "Blue", "total_yards": 7588, "par_total": 72,
			 "holes": [{"par": 4, "yardage": 405, "handicap": 9}, {"par": 4, "yardage": 469, "handicap": 3}]},
			{"tee_name": "White", "holes": [{"par": 4, "yardage": 380, "handicap": 9}]}
		],
		"female": [
			{"tee_name": "Red", "holes": [{"par": 5, "yardage": 330, "handicap": 1}]}
		]
	}
}`

func newTestGolfAPI(t *testing.T, key string, handler http.HandlerFunc) *GolfAPI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGolfAPI(GolfAPIConfig{URL: srv.URL + "/", Key: key, Timeout: time.Second})
}

func courseHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Key test-key-123", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v1/search":
			if r.URL.Query().Get("search_query") == "nothing" {
				w.Write([]byte(`{"courses": []}`))
				return
			}
			w.Write([]byte(`{"courses": [{"id": 42, "club_name": "Pinehurst Resort", "course_name": "No. 2"}]}`))
		case "/v1/courses/42":
			w.Write([]byte(pinehurstJSON))
		case "/v1/healthcheck":
			w.Write([]byte(`{"status": "ok"}`))
		default:
			http.NotFound(w, r)
		}
	}
}

func TestGolfAPISearchAndDetails(t *testing.T) {
	g := newTestGolfAPI(t, "test-key-123", courseHandler(t))
	ctx := context.Background()

	courses, err := g.SearchCourses(ctx, "pinehurst")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, 42, courses[0].ID)

	c, err := g.FindCourseByName(ctx, "pinehurst")
	require.NoError(t, err)
	assert.Equal(t, "No. 2", c.CourseName)
	assert.Len(t, c.Tees.Male, 2)

	_, err = g.FindCourseByName(ctx, "nothing")
	assert.ErrorIs(t, err, ErrCourseNotFound)

	h, err := g.Healthcheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
}

func TestGolfAPITeesAndHoles(t *testing.T) {
	g := newTestGolfAPI(t, "test-key-123", courseHandler(t))
	ctx := context.Background()

	tees, err := g.CourseTees(ctx, 42, "female")
	require.NoError(t, err)
	require.Len(t, tees, 1)
	assert.Equal(t, "Red", tees[0].TeeName)

	holes, err := g.HoleInfo(ctx, 42, "")
	require.NoError(t, err)
	assert.Len(t, holes, 2, "first male tee")

	holes, err = g.HoleInfo(ctx, 42, "white")
	require.NoError(t, err)
	assert.Equal(t, []Hole{{Par: 4, Yardage: 380, Handicap: 9}}, holes)

	holes, err = g.HoleInfo(ctx, 42, "RED")
	require.NoError(t, err)
	assert.Equal(t, 5, holes[0].Par)

	holes, err = g.HoleInfo(ctx, 42, "Gold")
	require.NoError(t, err)
	assert.Empty(t, holes)
}

func TestGolfAPIErrors(t *testing.T) {
	t.Run("unauthorized", func(t *testing.T) {
		g := newTestGolfAPI(t, "bad-key-000", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		_, err := g.SearchCourses(context.Background(), "x")
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.True(t, apiErr.IsAuth())
		assert.Equal(t, "course: API key is missing or invalid", err.Error())
	})

	t.Run("server error", func(t *testing.T) {
		g := newTestGolfAPI(t, "test-key-123", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
		})
		_, err := g.CourseDetails(context.Background(), 1)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.False(t, apiErr.IsAuth())
		assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
		assert.Equal(t, "course: API request failed with status 503: maintenance", err.Error())
	})

	t.Run("timeout", func(t *testing.T) {
		g := newTestGolfAPI(t, "test-key-123", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(3 * time.Second):
			}
		})
		g.timeout = 50 * time.Millisecond
		_, err := g.Healthcheck(context.Background())
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Contains(t, apiErr.Message, "Request timed out")
	})

	t.Run("missing key", func(t *testing.T) {
		g := NewGolfAPI(GolfAPIConfig{})
		_, err := g.SearchCourses(context.Background(), "x")
		assert.ErrorIs(t, err, ErrMissingAPIKey)
	})
}

func TestFormatCourseSummary(t *testing.T) {
	assert.Equal(t, "No course data available", FormatCourseSummary(nil))

	c := &Course{
		ClubName:   "Pinehurst Resort",
		CourseName: "No. 2",
		Location:   CourseLocation{City: "Pinehurst", State: "NC"},
		Tees: Tees{Male: []Tee{
			{TeeName: "Blue", TotalYards: 7588, ParTotal: 72},
			{TeeName: ""},
		}},
	}
	assert.Equal(t, "Pinehurst Resort - No. 2\nLocation: Pinehurst, NC\nTees Available: Blue, Unknown\nYardage: 7588 yards, Par 72", FormatCourseSummary(c))

	same := &Course{ClubName: "Augusta National", CourseName: "Augusta National"}
	assert.Equal(t, "Augusta National", FormatCourseSummary(same))
}
