package whatsapp

import (
	"context"
	"testing"
	"time"

	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

func pairSuccess() *events.PairSuccess {
	return &events.PairSuccess{ID: types.NewJID("5511999999999", types.DefaultUserServer), Platform: "android"}
}

func TestSession(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("starts disconnected", func(t *testing.T) {
		s := newSession(t0)
		st := s.status()
		if st.State != StateDisconnected || !st.Since.Equal(t0) || s.isOnline() {
			t.Errorf("unexpected initial status %+v", st)
		}
	})

	t.Run("moveTo returns the previous state", func(t *testing.T) {
		s := newSession(t0)
		if prev := s.moveTo(StateConnecting, t0.Add(time.Second)); prev != StateDisconnected {
			t.Errorf("prev = %s", prev)
		}
		if prev := s.moveTo(StateWaitingQR, t0.Add(2*time.Second)); prev != StateConnecting {
			t.Errorf("prev = %s", prev)
		}
		if got := s.status().Since; !got.Equal(t0.Add(2 * time.Second)) {
			t.Errorf("since = %v", got)
		}
	})

	t.Run("same state keeps since", func(t *testing.T) {
		s := newSession(t0)
		s.moveTo(StateDisconnected, t0.Add(time.Hour))
		if got := s.status().Since; !got.Equal(t0) {
			t.Errorf("since moved to %v", got)
		}
	})

	t.Run("online resets counters", func(t *testing.T) {
		s := newSession(t0)
		s.failed()
		s.failed()
		s.nextAttempt()
		s.online(t0.Add(time.Minute))

		st := s.status()
		if st.State != StateConnected || st.Errors != 0 || st.Attempts != 0 {
			t.Errorf("unexpected status %+v", st)
		}
		if !st.LastActivity.Equal(t0.Add(time.Minute)) {
			t.Errorf("last activity = %v", st.LastActivity)
		}
	})

	t.Run("attempts count up", func(t *testing.T) {
		s := newSession(t0)
		for want := 1; want <= 3; want++ {
			if got := s.nextAttempt(); got != want {
				t.Errorf("attempt = %d, want %d", got, want)
			}
		}
	})

	t.Run("silence only counts while online", func(t *testing.T) {
		s := newSession(t0)
		if d := s.silentFor(t0.Add(time.Hour)); d != 0 {
			t.Errorf("offline silence = %v", d)
		}
		s.online(t0)
		s.touch(t0.Add(10 * time.Minute))
		if d := s.silentFor(t0.Add(15 * time.Minute)); d != 5*time.Minute {
			t.Errorf("silence = %v", d)
		}
	})
}

// newEventTarget returns a channel whose redials give up quickly because
// there is no client to dial.
func newEventTarget(t *testing.T) *WhatsApp {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ReconnectBackoff = time.Millisecond
	cfg.MaxReconnectAttempts = 1
	w := New(cfg, testLogger())
	w.ctx, w.cancel = context.WithCancel(context.Background())
	t.Cleanup(w.cancel)
	return w
}

func waitForRedial(t *testing.T, w *WhatsApp) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for w.sess.status().Attempts == 0 || w.redialing.Load() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for redial")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandleEventStateMachine(t *testing.T) {
	t.Run("connected goes online", func(t *testing.T) {
		w := newEventTarget(t)
		w.sess.failed()
		w.handleEvent(&events.Connected{})

		if !w.IsConnected() || w.Health().ErrorCount != 0 {
			t.Errorf("expected clean online session, got %+v", w.Health())
		}
	})

	t.Run("drop of an online session redials", func(t *testing.T) {
		w := newEventTarget(t)
		w.handleEvent(&events.Connected{})
		w.handleEvent(&events.Disconnected{})

		if w.IsConnected() {
			t.Error("expected offline after disconnect")
		}
		waitForRedial(t, w)
		if got := w.Health().Details["reconnect_attempts"]; got != 1 {
			t.Errorf("reconnect_attempts = %v", got)
		}
		if w.State() != StateReconnecting {
			t.Errorf("state = %s", w.State())
		}
	})

	t.Run("drop while connecting does not redial", func(t *testing.T) {
		w := newEventTarget(t)
		w.sess.moveTo(StateConnecting, time.Now())
		w.handleEvent(&events.Disconnected{})

		time.Sleep(20 * time.Millisecond)
		if w.State() != StateDisconnected || w.sess.status().Attempts != 0 {
			t.Errorf("unexpected redial: %+v", w.sess.status())
		}
	})

	t.Run("keep-alive misses", func(t *testing.T) {
		w := newEventTarget(t)
		w.handleEvent(&events.Connected{})

		w.handleEvent(&events.KeepAliveTimeout{ErrorCount: 1})
		if !w.IsConnected() || w.Health().ErrorCount != 1 {
			t.Fatalf("one miss should only count, got %+v", w.Health())
		}
		w.handleEvent(&events.KeepAliveRestored{})
		if w.Health().ErrorCount != 0 {
			t.Errorf("restore should clear errors, got %d", w.Health().ErrorCount)
		}

		w.handleEvent(&events.KeepAliveTimeout{ErrorCount: 3})
		if w.IsConnected() {
			t.Error("three misses should take the session offline")
		}
		waitForRedial(t, w)
	})

	t.Run("temporary ban", func(t *testing.T) {
		w := newEventTarget(t)
		w.handleEvent(&events.Connected{})
		w.handleEvent(&events.TemporaryBan{Expire: time.Hour})

		if w.State() != StateBanned || w.IsConnected() {
			t.Errorf("state = %s", w.State())
		}
	})

	t.Run("stream replaced stays down", func(t *testing.T) {
		w := newEventTarget(t)
		w.handleEvent(&events.Connected{})
		w.handleEvent(&events.StreamReplaced{})

		time.Sleep(20 * time.Millisecond)
		if w.State() != StateDisconnected || w.sess.status().Attempts != 0 {
			t.Errorf("unexpected status %+v", w.sess.status())
		}
	})

	t.Run("message marks activity", func(t *testing.T) {
		w := newEventTarget(t)
		at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		w.now = func() time.Time { return at }
		w.handleEvent(&events.Message{})

		if !w.Health().LastMessageAt.Equal(at) {
			t.Errorf("last message = %v", w.Health().LastMessageAt)
		}
	})
}

func TestRedialStopsOnShutdown(t *testing.T) {
	w := newEventTarget(t)
	w.cfg.ReconnectBackoff = time.Hour
	w.cfg.MaxReconnectAttempts = 0

	done := make(chan struct{})
	go func() {
		w.redial()
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for w.State() != StateReconnecting {
		if time.Now().After(deadline) {
			t.Fatal("redial never started")
		}
		time.Sleep(time.Millisecond)
	}
	w.cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("redial did not stop after cancel")
	}
}
