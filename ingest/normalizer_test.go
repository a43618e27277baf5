package ingest_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soclab/quell/domain/entity"
	"github.com/soclab/quell/ingest"
)

func TestNormalizeUnknownSource(t *testing.T) {
	_, err := ingest.Normalize("carrier_pigeon", []byte(`{}`), time.Now())
	assert.ErrorIs(t, err, ingest.ErrUnknownSource)
}

func TestNormalizeEmailGateway(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	payload := []byte(`{
		"message_id": "m-1",
		"sender": "attacker@evil.example",
		"recipient": "alice@corp.example",
		"subject": "Invoice",
		"verdict": "phishing",
		"confidence": 0.9,
		"urls": ["https://evil.example/login"],
		"attachment_hashes": ["abc123"]
	}`)

	indicators, err := ingest.Normalize(ingest.SourceEmailGateway, payload, now)
	require.NoError(t, err)
	require.Len(t, indicators, 3)

	for _, ind := range indicators {
		assert.Equal(t, ingest.SourceEmailGateway, ind.Source)
		assert.Equal(t, entity.CategoryPhishing, ind.Category)
		assert.Equal(t, "alice@corp.example", ind.Asset)
		assert.Equal(t, 0.9, ind.Confidence)
		assert.Equal(t, now, ind.ObservedAt)
		assert.NotEmpty(t, ind.ID)
	}
	assert.Equal(t, entity.IndicatorTypeEmail, indicators[0].Type)
	assert.Equal(t, "attacker@evil.example", indicators[0].Value)
	assert.Equal(t, entity.IndicatorTypeURL, indicators[1].Type)
	assert.Equal(t, entity.IndicatorTypeHash, indicators[2].Type)
}

func TestNormalizeEmailGatewayCleanVerdict(t *testing.T) {
	payload := []byte(`{"recipient": "alice@corp.example", "verdict": "clean"}`)
	indicators, err := ingest.Normalize(ingest.SourceEmailGateway, payload, time.Now())
	require.NoError(t, err)
	assert.Empty(t, indicators)
}

func TestNormalizeEmailGatewayMissingRecipient(t *testing.T) {
	payload := []byte(`{"verdict": "phishing"}`)
	_, err := ingest.Normalize(ingest.SourceEmailGateway, payload, time.Now())
	assert.Error(t, err)
}

func TestNormalizeEmailGatewayMalformed(t *testing.T) {
	_, err := ingest.Normalize(ingest.SourceEmailGateway, []byte(`{not json`), time.Now())
	assert.Error(t, err)
}

func TestNormalizeEDR(t *testing.T) {
	now := time.Now()
	payload := []byte(`{
		"agent_id": "a-1",
		"hostname": "ws-042",
		"detection": "ransomware",
		"process": "cryptor.exe",
		"sha256": "deadbeef",
		"remote_ip": "203.0.113.7",
		"confidence": 0.95
	}`)

	indicators, err := ingest.Normalize(ingest.SourceEDR, payload, now)
	require.NoError(t, err)
	require.Len(t, indicators, 3)

	assert.Equal(t, entity.IndicatorTypeHostname, indicators[0].Type)
	assert.Equal(t, "ws-042", indicators[0].Value)
	assert.Equal(t, entity.IndicatorTypeHash, indicators[1].Type)
	assert.Equal(t, "deadbeef", indicators[1].Value)
	assert.Equal(t, entity.IndicatorTypeIP, indicators[2].Type)
	for _, ind := range indicators {
		assert.Equal(t, entity.CategoryRansomware, ind.Category)
		assert.Equal(t, "ws-042", ind.Asset)
	}
}

func TestNormalizeEDRIntrusionIncludesAccount(t *testing.T) {
	payload := []byte(`{
		"hostname": "ws-007",
		"detection": "credential_access",
		"user": "svc-backup"
	}`)

	indicators, err := ingest.Normalize(ingest.SourceEDR, payload, time.Now())
	require.NoError(t, err)
	require.Len(t, indicators, 2)
	assert.Equal(t, entity.CategoryIntrusion, indicators[0].Category)
	assert.Equal(t, entity.IndicatorTypeAccount, indicators[1].Type)
	assert.Equal(t, "svc-backup", indicators[1].Value)
}

func TestNormalizeEDRUnknownDetection(t *testing.T) {
	payload := []byte(`{"hostname": "ws-042", "detection": "heartbeat"}`)
	indicators, err := ingest.Normalize(ingest.SourceEDR, payload, time.Now())
	require.NoError(t, err)
	assert.Empty(t, indicators)
}

func TestNormalizeNetflow(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		category entity.IncidentCategory
		asset    string
	}{
		{
			name:     "volumetric ddos against a service",
			payload:  `{"src_ip": "198.51.100.9", "dst_service": "web-frontend", "anomaly": "volumetric", "pps": 90000}`,
			category: entity.CategoryDDoS,
			asset:    "web-frontend",
		},
		{
			name:     "beaconing falls back to dst ip",
			payload:  `{"src_ip": "198.51.100.9", "dst_ip": "10.0.0.5", "anomaly": "beaconing"}`,
			category: entity.CategoryIntrusion,
			asset:    "10.0.0.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			indicators, err := ingest.Normalize(ingest.SourceNetflow, []byte(tt.payload), time.Now())
			require.NoError(t, err)
			require.Len(t, indicators, 1)
			assert.Equal(t, tt.category, indicators[0].Category)
			assert.Equal(t, tt.asset, indicators[0].Asset)
			assert.Equal(t, entity.IndicatorTypeIP, indicators[0].Type)
			assert.Equal(t, "198.51.100.9", indicators[0].Value)
		})
	}
}

func TestNormalizeNetflowNoDestination(t *testing.T) {
	payload := []byte(`{"src_ip": "198.51.100.9", "anomaly": "volumetric"}`)
	_, err := ingest.Normalize(ingest.SourceNetflow, payload, time.Now())
	assert.Error(t, err)
}
