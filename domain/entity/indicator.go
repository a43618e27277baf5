package entity

import (
	"fmt"
	"time"
)

type IndicatorType string

const (
	IndicatorTypeIP       IndicatorType = "ip"
	IndicatorTypeDomain   IndicatorType = "domain"
	IndicatorTypeURL      IndicatorType = "url"
	IndicatorTypeHash     IndicatorType = "hash"
	IndicatorTypeEmail    IndicatorType = "email"
	IndicatorTypeHostname IndicatorType = "hostname"
	IndicatorTypeAccount  IndicatorType = "account"
)

type IncidentCategory string

const (
	CategoryPhishing   IncidentCategory = "phishing"
	CategoryRansomware IncidentCategory = "ransomware"
	CategoryMalware    IncidentCategory = "malware"
	CategoryDDoS       IncidentCategory = "ddos"
	CategoryIntrusion  IncidentCategory = "intrusion"
)

// Indicator is the normalized form of one IoC, regardless of which
// source reported it.
type Indicator struct {
	ID         string           `json:"id" dynamo:"id"`
	Source     string           `json:"source" dynamo:"source"`
	Category   IncidentCategory `json:"category" dynamo:"category"`
	Type       IndicatorType    `json:"type" dynamo:"type"`
	Value      string           `json:"value" dynamo:"value"`
	Asset      string           `json:"asset" dynamo:"asset"`
	Confidence float64          `json:"confidence" dynamo:"confidence"`
	ObservedAt time.Time        `json:"observed_at" dynamo:"observed_at"`
}

// DedupKey identifies the same observation reported twice.
func (i *Indicator) DedupKey() string {
	return fmt.Sprintf("%s|%s|%s|%s", i.Source, i.Type, i.Value, i.Asset)
}

// CorrelationKey groups indicators into one incident.
func (i *Indicator) CorrelationKey() string {
	return fmt.Sprintf("%s|%s", i.Category, i.Asset)
}
