package cli

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seuros/folio/internal/handlers"
	"github.com/seuros/folio/internal/insights"
	"github.com/seuros/folio/internal/presence"
	"github.com/seuros/folio/internal/storage"
)

type stubPresence struct{ snap presence.Snapshot }

func (s stubPresence) Snapshot() presence.Snapshot { return s.snap }
func (stubPresence) Focus()                        {}
func (stubPresence) VisibilityChanged(bool)        {}
func (stubPresence) NetworkChanged(bool)           {}

type stubInsights struct{}

func (stubInsights) Load(context.Context) insights.Result {
	return insights.Result{ViewCount: 7, ViewSource: insights.SourceLocal, History: []insights.VisitorRecord{}}
}

func newTestServer(t *testing.T) *fiber.App {
	t.Helper()
	originalVersion := Version
	Version = "1.2.3"
	t.Cleanup(func() {
		Version = originalVersion
	})

	snap := presence.Snapshot{
		Availability: presence.AvailabilityIdle,
		Source:       presence.SourceProvider,
		Activities:   []presence.ActivityEntry{},
	}
	h := handlers.New(stubPresence{snap: snap}, stubInsights{}, storage.NewMemory(), Version)
	return newApp(h, nil)
}

func get(t *testing.T, app *fiber.App, target string) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestHandleHealthPayload(t *testing.T) {
	app := newTestServer(t)

	resp, body := get(t, app, "/health")

	var payload map[string]any
	require.NoError(t, json.Unmarshal(body, &payload))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", payload["status"])
	assert.Equal(t, "folio", payload["service"])
	assert.Equal(t, "idle", payload["availability"])
}

func TestResponsesCarryVersionHeader(t *testing.T) {
	app := newTestServer(t)

	resp, _ := get(t, app, "/up")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1.2.3", resp.Header.Get("X-Folio-Version"))
}

func TestHandleVersionReturnsCurrentVersion(t *testing.T) {
	app := newTestServer(t)

	_, body := get(t, app, "/api/version")

	var payload map[string]string
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "1.2.3", payload["version"])
}

func TestCORSAllowsAnyOrigin(t *testing.T) {
	app := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/insights", nil)
	req.Header.Set("Origin", "https://portfolio.test")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var result insights.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, int64(7), result.ViewCount)
}

func TestLiveRouteAbsentWithoutHub(t *testing.T) {
	app := newTestServer(t)

	resp, _ := get(t, app, "/api/presence/live")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRecoverMiddlewareTurnsPanicsIntoErrors(t *testing.T) {
	app := newTestServer(t)
	app.Get("/boom", func(c fiber.Ctx) error {
		panic("boom")
	})

	resp, _ := get(t, app, "/boom")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestCheckUp(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()
	assert.NoError(t, checkUp(healthy.URL+"/up"))

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer broken.Close()
	err := checkUp(broken.URL + "/up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestRootRegistersCommands(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range RootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "presence", "insights", "doctor", "healthcheck"} {
		assert.True(t, names[want], want)
	}
}
