// Package whatsapp – reconnect.go brings a dropped session back online.
package whatsapp

import (
	"time"
)

// maxBackoff caps the wait between redials.
const maxBackoff = 5 * time.Minute

// goOffline moves the session to state and returns the state it left.
func (w *WhatsApp) goOffline(state ConnectionState, reason string) ConnectionState {
	prev := w.sess.moveTo(state, w.now())
	if prev != state {
		w.logger.Warn("whatsapp: session offline", "state", state, "previous_state", prev, "reason", reason)
	}
	return prev
}

// scheduleRedial starts redial in the background unless the channel is
// shutting down.
func (w *WhatsApp) scheduleRedial() {
	if w.ctx.Err() != nil {
		return
	}
	go w.redial()
}

// redial retries client.Connect with linear backoff until one succeeds or
// MaxReconnectAttempts is spent. A successful dial only sends the request;
// the Connected event puts the session back online. Only one loop runs at a
// time.
func (w *WhatsApp) redial() {
	if !w.redialing.CompareAndSwap(false, true) {
		w.logger.Debug("whatsapp: redial already running")
		return
	}
	defer w.redialing.Store(false)

	w.sess.moveTo(StateReconnecting, w.now())
	for {
		if w.ctx.Err() != nil {
			return
		}

		attempt := w.sess.nextAttempt()
		if w.cfg.MaxReconnectAttempts > 0 && attempt > w.cfg.MaxReconnectAttempts {
			w.logger.Error("whatsapp: giving up on reconnect", "attempts", attempt-1)
			w.sess.moveTo(StateDisconnected, w.now())
			return
		}

		wait := reconnectBackoff(w.cfg.ReconnectBackoff, attempt)
		w.logger.Info("whatsapp: reconnecting", "attempt", attempt, "wait", wait)
		select {
		case <-time.After(wait):
		case <-w.ctx.Done():
			return
		}

		if w.client == nil {
			w.logger.Warn("whatsapp: no client to reconnect")
			return
		}
		if err := w.dial(); err != nil {
			w.logger.Warn("whatsapp: reconnect failed", "attempt", attempt, "error", err)
			continue
		}
		return
	}
}

// dial reconnects the client. A half-open socket still counts as connected
// and makes Connect fail, so it is closed first.
func (w *WhatsApp) dial() error {
	if w.client.IsConnected() {
		w.client.Disconnect()
		time.Sleep(100 * time.Millisecond)
	}
	return w.client.Connect()
}

// reconnectBackoff is base times attempt, capped at maxBackoff.
func reconnectBackoff(base time.Duration, attempt int) time.Duration {
	return min(base*time.Duration(attempt), maxBackoff)
}
