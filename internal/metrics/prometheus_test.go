package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	recorder := httptest.NewRecorder()
	Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	return recorder.Body.String()
}

func TestCollectorsAreExposed(t *testing.T) {
	RecordMutation("decide", errors.New("boom"), 0.01)
	RecordSnapshot("initial")
	RecordHubEvent("approvals", "dropped")
	RecordHTTPRequest("GET", "/api/approvals", 404, 0.001)
	SetSubscribers("approvals", 2)

	body := scrape(t)
	assert.Contains(t, body, `specflow_approval_mutations_total{operation="decide",outcome="error"}`)
	assert.Contains(t, body, `specflow_snapshots_captured_total{trigger="initial"}`)
	assert.Contains(t, body, `specflow_hub_events_total{result="dropped",topic="approvals"}`)
	assert.Contains(t, body, `specflow_http_requests_total{method="GET",route="/api/approvals",status="4xx"}`)
	assert.Contains(t, body, `specflow_hub_subscribers{topic="approvals"} 2`)
}
