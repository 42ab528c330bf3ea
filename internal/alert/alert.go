// Package alert distributes structured notifications — a bundle sent, a
// relay failure, a simulation error worth surfacing — to the dashboard
// websocket and to any registered webhook endpoints (Slack/Discord/
// PagerDuty-compatible JSON), the same way the teacher's AlertManager
// fans SOC alerts out to both channels.
package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/rawblock/sandoo-engine/pkg/models"
)

const maxHistory = 1000

// Manager handles alert emission and webhook delivery. Constructing it
// with a nil broadcastFn is valid — dashboard push is then simply skipped,
// matching the original engine's "Alert::new() is a no-op when disabled"
// construction pattern.
type Manager struct {
	mu           sync.RWMutex
	webhooks     []models.WebhookEndpoint
	recentAlerts []models.Alert
	httpClient   *http.Client
	broadcastFn  func(models.Alert)
}

func NewManager(broadcastFn func(models.Alert)) *Manager {
	return &Manager{
		httpClient:  &http.Client{Timeout: 5 * time.Second},
		broadcastFn: broadcastFn,
	}
}

// RegisterWebhook adds a webhook endpoint.
func (m *Manager) RegisterWebhook(ep models.WebhookEndpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks = append(m.webhooks, ep)
	log.Printf("[alert] registered webhook: %s -> %s (min severity %d)", ep.Name, ep.URL, ep.MinSeverity)
}

// RemoveWebhook removes a webhook by name.
func (m *Manager) RemoveWebhook(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, wh := range m.webhooks {
		if wh.Name == name {
			m.webhooks = append(m.webhooks[:i], m.webhooks[i+1:]...)
			return
		}
	}
}

// Emit distributes an alert: dashboard broadcast first, then webhook
// delivery (async, one goroutine per webhook, per-call failures logged
// and swallowed rather than propagated).
func (m *Manager) Emit(a models.Alert) {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	m.mu.Lock()
	m.recentAlerts = append(m.recentAlerts, a)
	if len(m.recentAlerts) > maxHistory {
		m.recentAlerts = m.recentAlerts[len(m.recentAlerts)-maxHistory:]
	}
	webhooks := make([]models.WebhookEndpoint, len(m.webhooks))
	copy(webhooks, m.webhooks)
	m.mu.Unlock()

	if m.broadcastFn != nil {
		m.broadcastFn(a)
	}

	for _, wh := range webhooks {
		if !wh.Enabled || a.Severity < wh.MinSeverity {
			continue
		}
		go m.sendWebhook(wh, a)
	}

	log.Printf("[alert] [%d] %s: %s", a.Severity, a.Title, a.Description)
}

// Recent returns up to `limit` of the most recently emitted alerts,
// newest first.
func (m *Manager) Recent(limit int) []models.Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.recentAlerts) {
		limit = len(m.recentAlerts)
	}

	start := len(m.recentAlerts) - limit
	out := make([]models.Alert, limit)
	for i := 0; i < limit; i++ {
		out[i] = m.recentAlerts[start+limit-1-i]
	}
	return out
}

func (m *Manager) sendWebhook(wh models.WebhookEndpoint, a models.Alert) {
	payload, err := json.Marshal(a)
	if err != nil {
		log.Printf("[alert] failed to marshal alert for webhook %s: %v", wh.Name, err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewBuffer(payload))
	if err != nil {
		log.Printf("[alert] failed to build webhook request for %s: %v", wh.Name, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range wh.Headers {
		req.Header.Set(k, v)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		log.Printf("[alert] failed to deliver webhook %s: %v", wh.Name, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Printf("[alert] webhook %s returned status %d", wh.Name, resp.StatusCode)
	}
}

// BundleSent builds the standard "bundle submitted" info alert.
func BundleSent(bundleID string, txHash common.Hash, revenue fmt.Stringer) models.Alert {
	return models.Alert{
		Severity:    models.SeverityInfo,
		Title:       "bundle submitted",
		Description: fmt.Sprintf("bundle %s predicted revenue %s", bundleID, revenue),
		TxHash:      txHash,
	}
}
