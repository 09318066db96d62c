package stats

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/npezzotti/anon-chat/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStatsUpdater(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux, testutil.TestLogger(t))
	assert.NotNil(t, su, "expected StatsUpdater to be non-nil")
	assert.NotNil(t, su.updateChan, "expected updateChan to be initialized")
	handler, pattern := mux.Handler(&http.Request{URL: &url.URL{Path: "/debug/vars"}, Method: http.MethodGet})
	assert.NotNil(t, handler, "expected handler for /debug/vars to be set")
	assert.Equal(t, "GET /debug/vars", pattern, "expected handler to be registered for GET method on /debug/vars")

	assert.NotPanics(t, func() {
		NewStatsUpdater(http.NewServeMux(), testutil.TestLogger(t))
	}, "expected a second updater to reuse the published map")
}

func TestStatsUpdater_Counters(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux, testutil.TestLogger(t))
	su.RegisterMetric("Custom")
	su.Run()

	su.Incr("Custom")
	su.Decr("Custom")
	su.Incr("Unregistered")
	su.Incr(MetricMessagesSent)
	su.Incr(MetricMessagesSent)

	read := func() map[string]any {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/vars", nil))

		var body map[string]any
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			return nil
		}
		return body
	}

	assert.Eventually(t, func() bool {
		return read()[MetricMessagesSent] == float64(2)
	}, time.Second, 10*time.Millisecond)

	su.Stop()

	body := read()
	require.NotNil(t, body)
	assert.Equal(t, float64(0), body["Custom"])
	assert.Contains(t, body, "Uptime")
	assert.NotContains(t, body, "Unregistered")
}
