package ingest

import (
	"errors"
	"testing"

	"github.com/vigil-run/vigil/internal/core/ports"
)

func TestGenericParser_SingleObject(t *testing.T) {
	parser := NewGenericParser("datadog")
	payload := []byte(`{
		"external_id": "ext-1",
		"severity": "critical",
		"labels": {"service": "api"},
		"summary": "High CPU",
		"status": "firing"
	}`)

	raws, err := parser.Parse(payload, nil)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(raws) != 1 {
		t.Fatalf("raws = %d, want 1", len(raws))
	}
	raw := raws[0]
	if raw.Source != "datadog" {
		t.Errorf("source = %s, want the path source", raw.Source)
	}
	if raw.ExternalID != "ext-1" || raw.Severity != "critical" || raw.Status != "firing" {
		t.Errorf("raw = %+v", raw)
	}
}

func TestGenericParser_Array(t *testing.T) {
	parser := NewGenericParser("datadog")
	payload := []byte(`[
		{"external_id": "ext-1", "severity": "critical", "summary": "a", "status": "firing"},
		{"external_id": "ext-2", "severity": "warning", "summary": "b", "status": "firing"}
	]`)

	raws, err := parser.Parse(payload, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(raws) != 2 {
		t.Fatalf("raws = %d, want 2", len(raws))
	}
	// Absent labels become an empty map, not nil.
	if raws[0].Labels == nil {
		t.Error("labels left nil")
	}
}

func TestGenericParser_PathSourceWinsOverPayload(t *testing.T) {
	parser := NewGenericParser("datadog")
	payload := []byte(`{"external_id": "ext-1", "source": "spoofed", "status": "firing"}`)

	raws, err := parser.Parse(payload, nil)
	if err != nil {
		t.Fatal(err)
	}
	if raws[0].Source != "datadog" {
		t.Errorf("source = %s, payload overrode the path", raws[0].Source)
	}
}

func TestGenericParser_Errors(t *testing.T) {
	parser := NewGenericParser("datadog")

	if _, err := parser.Parse([]byte(`not json`), nil); !errors.Is(err, ports.ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload, got %v", err)
	}
	if _, err := parser.Parse([]byte(`{"severity": "critical"}`), nil); !errors.Is(err, ports.ErrMissingField) {
		t.Errorf("expected ErrMissingField for absent external_id, got %v", err)
	}
}

func TestAlertmanagerParser_Webhook(t *testing.T) {
	parser := NewAlertmanagerParser()
	payload := []byte(`{
		"version": "4",
		"status": "firing",
		"alerts": [
			{
				"status": "firing",
				"labels": {"alertname": "HighCPU", "severity": "critical", "service": "api"},
				"annotations": {"summary": "CPU above 90%"},
				"fingerprint": "abcdef0123456789"
			},
			{
				"status": "resolved",
				"labels": {"alertname": "DiskFull", "severity": "warning"},
				"annotations": {"description": "Disk usage back to normal"}
			}
		]
	}`)

	raws, err := parser.Parse(payload, nil)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(raws) != 2 {
		t.Fatalf("raws = %d, want 2", len(raws))
	}

	first := raws[0]
	if first.ExternalID != "abcdef0123456789" || first.Severity != "critical" {
		t.Errorf("first = %+v", first)
	}
	if first.Summary != "CPU above 90%" || first.Status != "firing" {
		t.Errorf("first = %+v", first)
	}
	if first.Source != "alertmanager" {
		t.Errorf("source = %s", first.Source)
	}

	second := raws[1]
	if second.ExternalID != "DiskFull" {
		t.Errorf("fingerprint fallback to alertname broken: %+v", second)
	}
	if second.Summary != "Disk usage back to normal" {
		t.Error("description fallback broken")
	}
	if second.Status != "resolved" {
		t.Errorf("status = %s", second.Status)
	}
}

func TestAlertmanagerParser_Errors(t *testing.T) {
	parser := NewAlertmanagerParser()

	if _, err := parser.Parse([]byte(`{`), nil); !errors.Is(err, ports.ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload, got %v", err)
	}
	if _, err := parser.Parse([]byte(`{"alerts": []}`), nil); !errors.Is(err, ports.ErrMissingField) {
		t.Errorf("expected ErrMissingField for empty alerts, got %v", err)
	}
}

func TestParserRegistry_Fallback(t *testing.T) {
	registry := NewParserRegistry()

	if p := registry.For("alertmanager"); p.SourceName() != "alertmanager" {
		t.Errorf("registered parser not found: %s", p.SourceName())
	}
	if p := registry.For("grafana"); p.SourceName() != "grafana" {
		t.Errorf("fallback parser source = %s", p.SourceName())
	}
}
