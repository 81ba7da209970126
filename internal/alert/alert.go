// Package alert implements the fire-and-forget alerting collaborator.
package alert

import (
	"context"
	"sync"
	"time"

	"ladder_maker/internal/core"
	"ladder_maker/pkg/retry"
)

// Payload is one alert dispatched to every registered channel.
type Payload struct {
	Severity  core.AlertSeverity
	Title     string
	Message   string
	Timestamp time.Time
	Fields    map[string]string
}

// Channel delivers an alert to one destination.
type Channel interface {
	Send(ctx context.Context, alert Payload) error
	Name() string
}

// Manager fans alerts out to all channels without blocking the caller.
// Implements core.IAlerter.
type Manager struct {
	channels []Channel
	logger   core.ILogger
	mu       sync.RWMutex
}

func NewManager(logger core.ILogger) *Manager {
	return &Manager{
		channels: make([]Channel, 0),
		logger:   logger.WithField("component", "alert_manager"),
	}
}

func (m *Manager) AddChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
	m.logger.Info("Added alert channel", "name", ch.Name())
}

// Alert dispatches to every channel on its own goroutine. Delivery must never
// block the reconciliation path, so failures are logged and dropped.
func (m *Manager) Alert(ctx context.Context, title, message string, severity core.AlertSeverity, fields map[string]string) {
	payload := Payload{
		Severity:  severity,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
		Fields:    fields,
	}

	m.logger.Info("Triggering alert", "title", title, "severity", severity)

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ch := range m.channels {
		go func(c Channel) {
			timeoutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()

			// Alert endpoints flake; retry transient failures but never
			// block the caller.
			err := retry.Do(timeoutCtx, retry.DefaultPolicy,
				func(error) bool { return true },
				func() error { return c.Send(timeoutCtx, payload) })
			if err != nil {
				m.logger.Error("Failed to send alert", "channel", c.Name(), "error", err)
			}
		}(ch)
	}
}
