package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soclab/quell/domain/entity"
	"github.com/soclab/quell/handler"
)

const testToken = "secret-token"

func newTestServer(env *testEnv) *httptest.Server {
	return httptest.NewServer(handler.NewServer(env.engine, testToken).Router())
}

func doRequest(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestHealthzNoAuth(t *testing.T) {
	srv := newTestServer(newTestEnv(testConfig()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsNoAuth(t *testing.T) {
	srv := newTestServer(newTestEnv(testConfig()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIRequiresToken(t *testing.T) {
	srv := newTestServer(newTestEnv(testConfig()))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/incidents", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAlertAccepted(t *testing.T) {
	env := newTestEnv(testConfig())
	srv := newTestServer(env)
	defer srv.Close()

	payload := `{
		"hostname": "ws-042",
		"detection": "ransomware",
		"sha256": "deadbeef",
		"remote_ip": "203.0.113.7",
		"confidence": 0.95
	}`
	resp := doRequest(t, http.MethodPost, srv.URL+"/v1/alerts/edr", payload)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var result map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 3, result["indicators"])
	assert.Equal(t, 3, result["accepted"])

	incident := env.incidents.only(t)
	assert.Equal(t, entity.IncidentStatusContained, incident.Status)
}

func TestAlertUnknownSource(t *testing.T) {
	srv := newTestServer(newTestEnv(testConfig()))
	defer srv.Close()

	resp := doRequest(t, http.MethodPost, srv.URL+"/v1/alerts/carrier_pigeon", `{}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAlertMalformedPayload(t *testing.T) {
	srv := newTestServer(newTestEnv(testConfig()))
	defer srv.Close()

	resp := doRequest(t, http.MethodPost, srv.URL+"/v1/alerts/edr", `{not json`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListIncidents(t *testing.T) {
	env := newTestEnv(testConfig())
	srv := newTestServer(env)
	defer srv.Close()

	_, err := env.engine.HandleIndicator(context.Background(), ransomwareIndicator("203.0.113.7", entity.IndicatorTypeIP))
	require.NoError(t, err)

	resp := doRequest(t, http.MethodGet, srv.URL+"/v1/incidents", "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var incidents []entity.Incident
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&incidents))
	require.Len(t, incidents, 1)
	assert.Equal(t, "ws-042", incidents[0].Asset)
}

func TestListIncidentsSeverityFilter(t *testing.T) {
	env := newTestEnv(testConfig())
	srv := newTestServer(env)
	defer srv.Close()

	_, err := env.engine.HandleIndicator(context.Background(), ransomwareIndicator("203.0.113.7", entity.IndicatorTypeIP))
	require.NoError(t, err)

	resp := doRequest(t, http.MethodGet, srv.URL+"/v1/incidents?severity=medium", "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var incidents []entity.Incident
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&incidents))
	assert.Len(t, incidents, 1)

	resp = doRequest(t, http.MethodGet, srv.URL+"/v1/incidents?severity=critical", "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	incidents = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&incidents))
	assert.Empty(t, incidents)

	resp = doRequest(t, http.MethodGet, srv.URL+"/v1/incidents?severity=apocalyptic", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTimeline(t *testing.T) {
	env := newTestEnv(testConfig())
	srv := newTestServer(env)
	defer srv.Close()

	_, err := env.engine.HandleIndicator(context.Background(), ransomwareIndicator("203.0.113.7", entity.IndicatorTypeIP))
	require.NoError(t, err)
	incidentID := env.incidents.only(t).ID

	resp := doRequest(t, http.MethodGet, srv.URL+"/v1/incidents/"+incidentID+"/timeline", "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []entity.AuditEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	assert.NotEmpty(t, entries)
	assert.Equal(t, entity.AuditIndicatorAccepted, entries[0].Event)
}

func TestResolveAndCloseFlow(t *testing.T) {
	env := newTestEnv(testConfig())
	srv := newTestServer(env)
	defer srv.Close()

	_, err := env.engine.HandleIndicator(context.Background(), ransomwareIndicator("203.0.113.7", entity.IndicatorTypeIP))
	require.NoError(t, err)
	incidentID := env.incidents.only(t).ID

	// close before resolve conflicts
	resp := doRequest(t, http.MethodPost, srv.URL+"/v1/incidents/"+incidentID+"/close", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, srv.URL+"/v1/incidents/"+incidentID+"/resolve", "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var incident entity.Incident
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&incident))
	assert.Equal(t, entity.IncidentStatusResolved, incident.Status)

	resp = doRequest(t, http.MethodPost, srv.URL+"/v1/incidents/"+incidentID+"/close", "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, entity.IncidentStatusClosed, env.incidents.incidents[incidentID].Status)
}

func TestResolveStoreFailureReturns500(t *testing.T) {
	env := newTestEnv(testConfig())
	srv := newTestServer(env)
	defer srv.Close()

	_, err := env.engine.HandleIndicator(context.Background(), ransomwareIndicator("203.0.113.7", entity.IndicatorTypeIP))
	require.NoError(t, err)
	incidentID := env.incidents.only(t).ID

	env.incidents.findErr = errors.New("dynamo unavailable")

	resp := doRequest(t, http.MethodPost, srv.URL+"/v1/incidents/"+incidentID+"/resolve", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, srv.URL+"/v1/incidents/"+incidentID+"/close", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestResolveUnknownIncidentReturns404(t *testing.T) {
	srv := newTestServer(newTestEnv(testConfig()))
	defer srv.Close()

	resp := doRequest(t, http.MethodPost, srv.URL+"/v1/incidents/missing/resolve", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResolveRecordsActorHeader(t *testing.T) {
	env := newTestEnv(testConfig())
	srv := newTestServer(env)
	defer srv.Close()

	_, err := env.engine.HandleIndicator(context.Background(), ransomwareIndicator("203.0.113.7", entity.IndicatorTypeIP))
	require.NoError(t, err)
	incidentID := env.incidents.only(t).ID

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/incidents/"+incidentID+"/resolve", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("X-Actor", "alice")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var resolvedBy string
	for _, e := range env.audit.entries {
		if e.Event == entity.AuditResolved {
			resolvedBy = e.Actor
		}
	}
	assert.Equal(t, "alice", resolvedBy)
}
