// Package whatsapp – pairing.go links a new device by QR code and fans the
// pairing progress out to observers such as the terminal renderer.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.mau.fi/whatsmeow"
)

// QRKind classifies a pairing event.
type QRKind string

const (
	QRCode    QRKind = "code"
	QRSuccess QRKind = "success"
	QRTimeout QRKind = "timeout"
	QRError   QRKind = "error"
)

// QREvent is one step of the pairing flow.
type QREvent struct {
	Type QRKind `json:"type"`
	// Code is the string to render as a QR code (QRCode only).
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

var errQRTimeout = errors.New("QR code timeout")

// qrHub broadcasts pairing events. The pending code is replayed to late
// subscribers until pairing ends.
type qrHub struct {
	mu        sync.Mutex
	observers map[chan QREvent]struct{}
	pending   *QREvent
}

func newQRHub() *qrHub {
	return &qrHub{observers: make(map[chan QREvent]struct{})}
}

func (h *qrHub) subscribe() (<-chan QREvent, func()) {
	ch := make(chan QREvent, 8)

	h.mu.Lock()
	h.observers[ch] = struct{}{}
	if h.pending != nil {
		ch <- *h.pending
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.observers, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// publish delivers evt to every observer that has room for it.
func (h *qrHub) publish(evt QREvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if evt.Type == QRCode {
		h.pending = &evt
	} else {
		h.pending = nil
	}
	for ch := range h.observers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// SubscribeQR streams pairing events until the returned cancel func is called.
func (w *WhatsApp) SubscribeQR() (<-chan QREvent, func()) {
	return w.qr.subscribe()
}

// qrStep maps a whatsmeow QR channel item to a pairing event. done is true
// once pairing has finished; err is set when it failed.
func qrStep(item whatsmeow.QRChannelItem) (evt QREvent, done bool, err error) {
	switch {
	case item.Event == "code":
		return QREvent{Type: QRCode, Code: item.Code, Message: "Scan the QR code with WhatsApp to link EchoClaw"}, false, nil
	case item.Event == "success":
		return QREvent{Type: QRSuccess, Message: "WhatsApp linked successfully"}, true, nil
	case item.Event == "timeout":
		return QREvent{Type: QRTimeout, Message: "QR code expired, restart to try again"}, true, errQRTimeout
	case item.Error != nil:
		return QREvent{Type: QRError, Message: item.Error.Error()}, true, fmt.Errorf("QR login error: %w", item.Error)
	case strings.HasPrefix(item.Event, "err"):
		return QREvent{Type: QRError, Message: item.Event}, true, fmt.Errorf("QR login error: %s", item.Event)
	}
	return QREvent{}, false, nil
}

// pair runs the QR login. The session stays in waiting_qr until a code is
// scanned, then goes online.
func (w *WhatsApp) pair(ctx context.Context) error {
	if w.client == nil {
		return errors.New("pairing before Connect")
	}
	items, err := w.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("getting QR channel: %w", err)
	}
	if err := w.client.Connect(); err != nil {
		return fmt.Errorf("connecting for QR: %w", err)
	}
	w.sess.moveTo(StateWaitingQR, w.now())

	codes := 0
	for {
		select {
		case <-ctx.Done():
			w.sess.moveTo(StateDisconnected, w.now())
			return ctx.Err()
		case item, ok := <-items:
			if !ok {
				return errors.New("QR channel closed unexpectedly")
			}

			evt, done, err := qrStep(item)
			if evt.Type == "" {
				continue
			}
			if evt.Type == QRCode {
				codes++
				w.logger.Info("whatsapp: QR code ready", "code_number", codes)
			}
			w.qr.publish(evt)
			if !done {
				continue
			}

			if err != nil {
				w.sess.moveTo(StateDisconnected, w.now())
				w.logger.Warn("whatsapp: pairing ended", "error", err)
				return err
			}
			w.sess.online(w.now())
			w.logger.Info("whatsapp: login successful", "jid", w.clientJID())
			w.StartHealthMonitor(w.ctx, w.cfg.HealthMonitor)
			return nil
		}
	}
}

// repair restarts pairing in the background, e.g. after a logout.
func (w *WhatsApp) repair() {
	go func() {
		if err := w.pair(w.ctx); err != nil {
			w.logger.Warn("whatsapp: QR login pending", "error", err)
		}
	}()
}
