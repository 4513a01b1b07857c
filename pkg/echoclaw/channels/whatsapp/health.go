// Package whatsapp – health.go catches sessions that went quiet without
// whatsmeow reporting a disconnect.
package whatsapp

import (
	"context"
	"time"
)

// HealthMonitorConfig configures the silent-connection monitor.
type HealthMonitorConfig struct {
	Enabled bool `yaml:"enabled"`

	// CheckInterval between checks. Default: 30s
	CheckInterval time.Duration `yaml:"check_interval"`

	// MaxSilentDuration without activity before the socket is checked.
	// Default: 5m
	MaxSilentDuration time.Duration `yaml:"max_silent_duration"`

	// ForceReconnectAfter redials after this much silence even when the
	// socket looks alive (0 = never).
	ForceReconnectAfter time.Duration `yaml:"force_reconnect_after"`
}

// DefaultHealthMonitorConfig returns the monitor defaults.
func DefaultHealthMonitorConfig() HealthMonitorConfig {
	return HealthMonitorConfig{
		Enabled:             true,
		CheckInterval:       30 * time.Second,
		MaxSilentDuration:   5 * time.Minute,
		ForceReconnectAfter: 15 * time.Minute,
	}
}

// StartHealthMonitor checks the session every CheckInterval until ctx ends.
// Calling it while a monitor runs does nothing.
func (w *WhatsApp) StartHealthMonitor(ctx context.Context, cfg HealthMonitorConfig) {
	if !cfg.Enabled || !w.monitorRunning.CompareAndSwap(false, true) {
		return
	}
	def := DefaultHealthMonitorConfig()
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = def.CheckInterval
	}
	if cfg.MaxSilentDuration <= 0 {
		cfg.MaxSilentDuration = def.MaxSilentDuration
	}

	go func() {
		defer w.monitorRunning.Store(false)

		ticker := time.NewTicker(cfg.CheckInterval)
		defer ticker.Stop()

		w.logger.Info("whatsapp: health monitor started",
			"check_interval", cfg.CheckInterval,
			"max_silent", cfg.MaxSilentDuration)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if w.needsReconnect(cfg, w.now()) {
					w.goOffline(StateReconnecting, "silent connection")
					w.scheduleRedial()
				}
			}
		}
	}()
}

// needsReconnect reports whether an online session has been silent long
// enough to treat as dead.
func (w *WhatsApp) needsReconnect(cfg HealthMonitorConfig, now time.Time) bool {
	silent := w.sess.silentFor(now)
	if silent <= cfg.MaxSilentDuration {
		return false
	}

	if w.client != nil && !w.client.IsConnected() {
		w.logger.Error("whatsapp: socket closed while session online", "silent", silent)
		return true
	}
	if cfg.ForceReconnectAfter > 0 && silent > cfg.ForceReconnectAfter {
		w.logger.Warn("whatsapp: forcing reconnect after long silence", "silent", silent)
		return true
	}

	w.logger.Debug("whatsapp: quiet session, socket still open", "silent", silent)
	return false
}
