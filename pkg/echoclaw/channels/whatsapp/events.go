// Package whatsapp – events.go reacts to whatsmeow events and converts
// messages into channels.IncomingMessage values.
package whatsapp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jholhewres/echoclaw/pkg/echoclaw/channels"

	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

// handleEvent dispatches whatsmeow events. Connection events drive the
// session state machine; messages go to the inbound stream.
func (w *WhatsApp) handleEvent(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		w.sess.touch(w.now())
		if msg := convertMessage(evt.Info, evt.Message, w.resolveJID); msg != nil {
			w.emitMessage(msg)
		}

	case *events.Connected:
		w.sess.online(w.now())
		w.logger.Info("whatsapp: connected", "jid", w.clientJID())

	case *events.Disconnected:
		// Only an established session is redialed; failures while
		// connecting are retried by whatsmeow or by redial itself.
		if prev := w.goOffline(StateDisconnected, "socket closed"); prev == StateConnected {
			w.scheduleRedial()
		}

	case *events.StreamReplaced:
		w.goOffline(StateDisconnected, "stream replaced by another client")

	case *events.LoggedOut:
		reason := "unknown"
		if evt.Reason != 0 {
			reason = evt.Reason.String()
		}
		w.goOffline(StateDisconnected, "logged out: "+reason)
		w.repair()

	case *events.TemporaryBan:
		w.goOffline(StateBanned, fmt.Sprintf("temporary ban %v, expires in %v", evt.Code, evt.Expire))

	case *events.KeepAliveTimeout:
		w.sess.failed()
		w.logger.Warn("whatsapp: keep-alive timeout", "error_count", evt.ErrorCount, "last_success", evt.LastSuccess)
		// Three misses in a row usually means a half-open socket.
		if evt.ErrorCount >= 3 && w.sess.current() == StateConnected {
			w.goOffline(StateReconnecting, "keep-alive timeout")
			w.scheduleRedial()
		}

	case *events.KeepAliveRestored:
		w.sess.clearErrors()
		w.logger.Info("whatsapp: keep-alive restored")

	case *events.ConnectFailure:
		permanent := evt.PermanentDisconnectDescription()
		w.goOffline(StateDisconnected, fmt.Sprintf("connect failure: %s %s", evt.Reason, evt.Message))
		if permanent == "" {
			w.scheduleRedial()
		} else {
			w.logger.Error("whatsapp: permanent connect failure", "description", permanent)
		}

	case *events.PairSuccess:
		w.logger.Info("whatsapp: device paired", "jid", evt.ID, "platform", evt.Platform)
		w.qr.publish(QREvent{Type: QRSuccess, Message: fmt.Sprintf("Paired with %s", evt.ID.String())})
	}
}

// resolveJID maps a LID (linked identity) JID to the phone JID when the
// session store knows it.
func (w *WhatsApp) resolveJID(jid types.JID) string {
	if jid.Server == types.HiddenUserServer && w.client != nil && w.client.Store != nil {
		if alt, err := w.client.Store.GetAltJID(w.ctx, jid); err == nil && !alt.IsEmpty() {
			return alt.String()
		}
	}
	return jid.String()
}

// convertMessage builds an IncomingMessage. It returns nil for status
// broadcasts and for messages without text.
func convertMessage(info types.MessageInfo, waMsg *waE2E.Message, resolve func(types.JID) string) *channels.IncomingMessage {
	if info.Chat.Server == types.BroadcastServer {
		return nil
	}

	content := strings.TrimSpace(extractText(waMsg))
	if content == "" {
		return nil
	}

	if resolve == nil {
		resolve = func(j types.JID) string { return j.String() }
	}

	return &channels.IncomingMessage{
		ID:        string(info.ID),
		Channel:   ChannelName,
		From:      resolve(info.Sender),
		FromName:  info.PushName,
		ChatID:    resolve(info.Chat),
		IsGroup:   info.IsGroup,
		FromMe:    info.IsFromMe,
		Content:   content,
		Timestamp: info.Timestamp,
	}
}

// extractText returns the text of a message: plain conversation, extended
// text, or the caption of an image, video or document.
func extractText(waMsg *waE2E.Message) string {
	if waMsg == nil {
		return ""
	}

	switch {
	case waMsg.Conversation != nil:
		return waMsg.GetConversation()
	case waMsg.ExtendedTextMessage != nil:
		return waMsg.GetExtendedTextMessage().GetText()
	case waMsg.ImageMessage != nil:
		return waMsg.GetImageMessage().GetCaption()
	case waMsg.VideoMessage != nil:
		return waMsg.GetVideoMessage().GetCaption()
	case waMsg.DocumentMessage != nil:
		return waMsg.GetDocumentMessage().GetCaption()
	}
	return ""
}

// buildTextMessage builds an outgoing text message. With ReplyTo set it
// becomes an extended text message quoting the original.
func buildTextMessage(msg *channels.OutgoingMessage) *waE2E.Message {
	if msg.ReplyTo == "" {
		return &waE2E.Message{Conversation: proto.String(msg.Content)}
	}

	ctxInfo := &waE2E.ContextInfo{
		StanzaID: proto.String(msg.ReplyTo),
	}
	if msg.QuotedSender != "" {
		ctxInfo.Participant = proto.String(msg.QuotedSender)
	}
	if msg.QuotedContent != "" {
		ctxInfo.QuotedMessage = &waE2E.Message{Conversation: proto.String(msg.QuotedContent)}
	}

	return &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text:        proto.String(msg.Content),
			ContextInfo: ctxInfo,
		},
	}
}

// minPhoneDigits rejects IDs too short to be a phone number with country code.
const minPhoneDigits = 10

// parseJID accepts a full JID ("...@s.whatsapp.net", "...@g.us") or a bare
// phone number in any punctuation, which becomes a user JID.
func parseJID(s string) (types.JID, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return types.JID{}, errors.New("empty JID")
	case strings.ContainsRune(s, '@'):
		return types.ParseJID(s)
	}

	var b strings.Builder
	for _, r := range s {
		if '0' <= r && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() < minPhoneDigits {
		return types.JID{}, fmt.Errorf("phone number too short: %q", s)
	}
	return types.NewJID(b.String(), types.DefaultUserServer), nil
}
