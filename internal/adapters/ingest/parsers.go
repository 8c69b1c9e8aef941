// Package ingest exposes the HTTP surface of the engine: webhook ingestion
// with per-source payload parsers, alert actions, and read endpoints.
package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/vigil-run/vigil/internal/core/ports"
)

// ParserRegistry resolves the payload parser for a source name. Unknown
// sources fall back to the generic JSON parser.
type ParserRegistry struct {
	parsers map[string]ports.AlertSourceParser
}

// NewParserRegistry creates a registry with the built-in parsers installed.
func NewParserRegistry() *ParserRegistry {
	r := &ParserRegistry{parsers: make(map[string]ports.AlertSourceParser)}
	r.Register(NewAlertmanagerParser())
	return r
}

// Register installs a parser under its source name.
func (r *ParserRegistry) Register(p ports.AlertSourceParser) {
	r.parsers[p.SourceName()] = p
}

// For returns the parser for a source, falling back to the generic one.
func (r *ParserRegistry) For(source string) ports.AlertSourceParser {
	if p, ok := r.parsers[source]; ok {
		return p
	}
	return NewGenericParser(source)
}

// GenericParser accepts a single RawAlert object or an array of them. The
// path's source segment wins over any source field in the payload.
type GenericParser struct {
	source string
}

// NewGenericParser creates a generic parser bound to a source name.
func NewGenericParser(source string) *GenericParser {
	return &GenericParser{source: source}
}

func (p *GenericParser) SourceName() string { return p.source }

func (p *GenericParser) Parse(payload []byte, _ map[string]string) ([]ports.RawAlert, error) {
	var batch []ports.RawAlert
	if err := json.Unmarshal(payload, &batch); err != nil {
		var single ports.RawAlert
		if err := json.Unmarshal(payload, &single); err != nil {
			return nil, fmt.Errorf("%w: %v", ports.ErrInvalidPayload, err)
		}
		batch = []ports.RawAlert{single}
	}

	for i := range batch {
		batch[i].Source = p.source
		if batch[i].Labels == nil {
			batch[i].Labels = map[string]string{}
		}
		if batch[i].ExternalID == "" {
			return nil, fmt.Errorf("%w: external_id", ports.ErrMissingField)
		}
	}
	return batch, nil
}

// AlertmanagerParser understands the Prometheus Alertmanager webhook payload.
type AlertmanagerParser struct{}

// NewAlertmanagerParser creates an Alertmanager webhook parser.
func NewAlertmanagerParser() *AlertmanagerParser { return &AlertmanagerParser{} }

func (p *AlertmanagerParser) SourceName() string { return "alertmanager" }

type alertmanagerWebhook struct {
	Alerts []struct {
		Status      string            `json:"status"`
		Labels      map[string]string `json:"labels"`
		Annotations map[string]string `json:"annotations"`
		Fingerprint string            `json:"fingerprint"`
	} `json:"alerts"`
}

func (p *AlertmanagerParser) Parse(payload []byte, _ map[string]string) ([]ports.RawAlert, error) {
	var hook alertmanagerWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrInvalidPayload, err)
	}
	if len(hook.Alerts) == 0 {
		return nil, fmt.Errorf("%w: alerts", ports.ErrMissingField)
	}

	raws := make([]ports.RawAlert, 0, len(hook.Alerts))
	for _, a := range hook.Alerts {
		externalID := a.Fingerprint
		if externalID == "" {
			externalID = a.Labels["alertname"]
		}
		if externalID == "" {
			return nil, fmt.Errorf("%w: fingerprint or alertname", ports.ErrMissingField)
		}
		summary := a.Annotations["summary"]
		if summary == "" {
			summary = a.Annotations["description"]
		}
		labels := a.Labels
		if labels == nil {
			labels = map[string]string{}
		}
		raws = append(raws, ports.RawAlert{
			ExternalID: externalID,
			Source:     p.SourceName(),
			Severity:   labels["severity"],
			Labels:     labels,
			Summary:    summary,
			Status:     a.Status,
		})
	}
	return raws, nil
}
