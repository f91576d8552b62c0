package stats

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewStatsUpdater(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	assert.NotNil(t, su, "expected StatsUpdater to be non-nil")
	assert.NotNil(t, su.updateChan, "expected updateChan to be initialized")
	handler, pattern := mux.Handler(&http.Request{URL: &url.URL{Path: "/debug/vars"}, Method: http.MethodGet})
	assert.NotNil(t, handler, "expected handler for /debug/vars to be set")
	assert.Equal(t, "GET /debug/vars", pattern, "expected handler to be registered for GET method on /debug/vars")
}

func TestUpdateMetrics(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	su.RegisterMetric(LiveConnections)

	su.Run()
	defer su.Stop()

	su.Incr(LiveConnections)
	su.Incr(LiveConnections)
	su.Decr(LiveConnections)

	assert.Eventually(t, func() bool {
		return su.vars.Get(LiveConnections).String() == "1"
	}, time.Second, 10*time.Millisecond, "expected the counter to settle at 1")
}
