// Package ingest normalizes alerts from heterogeneous sources into the
// indicator schema.
package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/soclab/quell/domain/entity"
)

const (
	SourceEmailGateway = "email_gateway"
	SourceEDR          = "edr"
	SourceNetflow      = "netflow"
)

var ErrUnknownSource = fmt.Errorf("unknown alert source")

// Normalize parses one webhook payload from the named source and returns the
// indicators it carries. Malformed payloads fail; alerts that carry no
// usable indicator yield an empty slice.
func Normalize(source string, payload []byte, now time.Time) ([]entity.Indicator, error) {
	switch source {
	case SourceEmailGateway:
		return normalizeEmailGateway(payload, now)
	case SourceEDR:
		return normalizeEDR(payload, now)
	case SourceNetflow:
		return normalizeNetflow(payload, now)
	}
	return nil, ErrUnknownSource
}

// emailGatewayAlert is the gateway's verdict for one delivered message.
type emailGatewayAlert struct {
	MessageID        string   `json:"message_id"`
	Sender           string   `json:"sender"`
	Recipient        string   `json:"recipient"`
	Subject          string   `json:"subject"`
	Verdict          string   `json:"verdict"`
	Confidence       float64  `json:"confidence"`
	URLs             []string `json:"urls"`
	AttachmentHashes []string `json:"attachment_hashes"`
}

func normalizeEmailGateway(payload []byte, now time.Time) ([]entity.Indicator, error) {
	var alert emailGatewayAlert
	if err := json.Unmarshal(payload, &alert); err != nil {
		return nil, fmt.Errorf("failed to parse email gateway alert: %w", err)
	}
	if alert.Recipient == "" {
		return nil, fmt.Errorf("email gateway alert has no recipient")
	}
	if alert.Verdict != "phishing" && alert.Verdict != "malware" {
		return nil, nil
	}

	category := entity.CategoryPhishing
	if alert.Verdict == "malware" {
		category = entity.CategoryMalware
	}
	confidence := alert.Confidence
	if confidence == 0 {
		confidence = 0.5
	}

	var indicators []entity.Indicator
	add := func(t entity.IndicatorType, value string) {
		if value == "" {
			return
		}
		indicators = append(indicators, entity.Indicator{
			ID:         uuid.NewString(),
			Source:     SourceEmailGateway,
			Category:   category,
			Type:       t,
			Value:      value,
			Asset:      alert.Recipient,
			Confidence: confidence,
			ObservedAt: now,
		})
	}

	add(entity.IndicatorTypeEmail, alert.Sender)
	for _, u := range alert.URLs {
		add(entity.IndicatorTypeURL, u)
	}
	for _, h := range alert.AttachmentHashes {
		add(entity.IndicatorTypeHash, h)
	}
	return indicators, nil
}

// edrAlert is one detection from an endpoint agent.
type edrAlert struct {
	AgentID    string  `json:"agent_id"`
	Hostname   string  `json:"hostname"`
	Detection  string  `json:"detection"`
	Process    string  `json:"process"`
	SHA256     string  `json:"sha256"`
	RemoteIP   string  `json:"remote_ip"`
	User       string  `json:"user"`
	Confidence float64 `json:"confidence"`
}

func normalizeEDR(payload []byte, now time.Time) ([]entity.Indicator, error) {
	var alert edrAlert
	if err := json.Unmarshal(payload, &alert); err != nil {
		return nil, fmt.Errorf("failed to parse edr alert: %w", err)
	}
	if alert.Hostname == "" {
		return nil, fmt.Errorf("edr alert has no hostname")
	}

	var category entity.IncidentCategory
	switch alert.Detection {
	case "ransomware":
		category = entity.CategoryRansomware
	case "malware", "trojan":
		category = entity.CategoryMalware
	case "lateral_movement", "credential_access":
		category = entity.CategoryIntrusion
	default:
		return nil, nil
	}

	confidence := alert.Confidence
	if confidence == 0 {
		confidence = 0.7
	}

	indicators := []entity.Indicator{{
		ID:         uuid.NewString(),
		Source:     SourceEDR,
		Category:   category,
		Type:       entity.IndicatorTypeHostname,
		Value:      alert.Hostname,
		Asset:      alert.Hostname,
		Confidence: confidence,
		ObservedAt: now,
	}}

	if alert.SHA256 != "" {
		indicators = append(indicators, entity.Indicator{
			ID:         uuid.NewString(),
			Source:     SourceEDR,
			Category:   category,
			Type:       entity.IndicatorTypeHash,
			Value:      alert.SHA256,
			Asset:      alert.Hostname,
			Confidence: confidence,
			ObservedAt: now,
		})
	}
	if alert.RemoteIP != "" {
		indicators = append(indicators, entity.Indicator{
			ID:         uuid.NewString(),
			Source:     SourceEDR,
			Category:   category,
			Type:       entity.IndicatorTypeIP,
			Value:      alert.RemoteIP,
			Asset:      alert.Hostname,
			Confidence: confidence,
			ObservedAt: now,
		})
	}
	if alert.User != "" && category == entity.CategoryIntrusion {
		indicators = append(indicators, entity.Indicator{
			ID:         uuid.NewString(),
			Source:     SourceEDR,
			Category:   category,
			Type:       entity.IndicatorTypeAccount,
			Value:      alert.User,
			Asset:      alert.Hostname,
			Confidence: confidence,
			ObservedAt: now,
		})
	}
	return indicators, nil
}

// netflowAlert is one anomaly record from the flow log analyzer.
type netflowAlert struct {
	SrcIP             string  `json:"src_ip"`
	DstIP             string  `json:"dst_ip"`
	DstService        string  `json:"dst_service"`
	PacketsPerSecond  float64 `json:"pps"`
	RequestsPerSecond float64 `json:"rps"`
	Anomaly           string  `json:"anomaly"`
	Confidence        float64 `json:"confidence"`
}

func normalizeNetflow(payload []byte, now time.Time) ([]entity.Indicator, error) {
	var alert netflowAlert
	if err := json.Unmarshal(payload, &alert); err != nil {
		return nil, fmt.Errorf("failed to parse netflow alert: %w", err)
	}
	if alert.SrcIP == "" {
		return nil, fmt.Errorf("netflow alert has no src_ip")
	}

	var category entity.IncidentCategory
	switch alert.Anomaly {
	case "volumetric", "syn_flood", "amplification":
		category = entity.CategoryDDoS
	case "beaconing", "exfiltration":
		category = entity.CategoryIntrusion
	default:
		return nil, nil
	}

	asset := alert.DstService
	if asset == "" {
		asset = alert.DstIP
	}
	if asset == "" {
		return nil, fmt.Errorf("netflow alert has no destination")
	}

	confidence := alert.Confidence
	if confidence == 0 {
		confidence = 0.6
	}

	return []entity.Indicator{{
		ID:         uuid.NewString(),
		Source:     SourceNetflow,
		Category:   category,
		Type:       entity.IndicatorTypeIP,
		Value:      alert.SrcIP,
		Asset:      asset,
		Confidence: confidence,
		ObservedAt: now,
	}}, nil
}
