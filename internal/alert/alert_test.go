package alert

import (
	"testing"

	"github.com/rawblock/sandoo-engine/pkg/models"
)

func TestManager_Emit_AssignsIDAndTimestamp(t *testing.T) {
	var broadcast models.Alert
	m := NewManager(func(a models.Alert) { broadcast = a })

	m.Emit(models.Alert{Severity: models.SeverityWarning, Title: "relay timeout"})

	if broadcast.ID == "" {
		t.Fatalf("expected broadcast alert to have an ID assigned")
	}
	if broadcast.Timestamp.IsZero() {
		t.Fatalf("expected broadcast alert to have a timestamp assigned")
	}
}

func TestManager_Recent_ReturnsNewestFirst(t *testing.T) {
	m := NewManager(nil)
	m.Emit(models.Alert{Severity: models.SeverityInfo, Title: "first"})
	m.Emit(models.Alert{Severity: models.SeverityInfo, Title: "second"})

	recent := m.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(recent))
	}
	if recent[0].Title != "second" || recent[1].Title != "first" {
		t.Fatalf("expected newest-first order, got %+v", recent)
	}
}

func TestManager_Recent_CapsAtRequestedLimit(t *testing.T) {
	m := NewManager(nil)
	for i := 0; i < 5; i++ {
		m.Emit(models.Alert{Severity: models.SeverityInfo, Title: "x"})
	}
	if got := len(m.Recent(2)); got != 2 {
		t.Fatalf("expected 2 alerts, got %d", got)
	}
}

func TestManager_RegisterAndRemoveWebhook(t *testing.T) {
	m := NewManager(nil)
	m.RegisterWebhook(models.WebhookEndpoint{Name: "slack", URL: "https://example.invalid", Enabled: true})
	if len(m.webhooks) != 1 {
		t.Fatalf("expected 1 registered webhook, got %d", len(m.webhooks))
	}
	m.RemoveWebhook("slack")
	if len(m.webhooks) != 0 {
		t.Fatalf("expected webhook to be removed, got %d remaining", len(m.webhooks))
	}
}
