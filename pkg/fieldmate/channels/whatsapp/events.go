package whatsapp

import (
	"fmt"
	"strings"

	"github.com/fieldmate/fieldmate/pkg/fieldmate/channels"

	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// handleEvent is the whatsmeow event dispatcher.
func (w *WhatsApp) handleEvent(rawEvt interface{}) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		w.handleMessageEvt(evt)

	case *events.Connected:
		w.connected.Store(true)
		w.errorCount.Store(0)
		w.reconnects.Store(0)
		w.logger.Info("whatsapp: connected", "jid", w.clientJID())

	case *events.Disconnected:
		w.connected.Store(false)
		w.logger.Warn("whatsapp: disconnected")
		if w.ctx.Err() == nil {
			go w.attemptReconnect()
		}

	case *events.LoggedOut:
		w.connected.Store(false)
		w.logger.Warn("whatsapp: logged out remotely, QR login required")

	case *events.StreamReplaced:
		w.connected.Store(false)
		w.logger.Error("whatsapp: stream replaced by another session")

	case *events.ConnectFailure:
		w.connected.Store(false)
		w.logger.Error("whatsapp: connect failure", "reason", evt.Reason)
		if evt.PermanentDisconnectDescription() == "" && w.ctx.Err() == nil {
			go w.attemptReconnect()
		}

	case *events.TemporaryBan:
		w.connected.Store(false)
		w.logger.Error("whatsapp: temporary ban", "reason", evt.Code, "expires", evt.Expire)
	}
}

// handleMessageEvt converts a WhatsApp message into a channel message.
// Group chats are ignored: the assistant is a one-on-one tool.
func (w *WhatsApp) handleMessageEvt(evt *events.Message) {
	if evt.Info.IsFromMe || evt.Info.IsGroup {
		return
	}
	if evt.Info.Chat.Server == "broadcast" {
		return
	}

	sender := resolvePhone(w, evt.Info.Sender)
	msg := &channels.IncomingMessage{
		ID:        string(evt.Info.ID),
		Channel:   "whatsapp",
		From:      sender,
		FromName:  evt.Info.PushName,
		ChatID:    evt.Info.Chat.ToNonAD().String(),
		Timestamp: evt.Info.Timestamp,
	}

	waMsg := evt.Message
	if waMsg == nil {
		return
	}

	switch {
	case waMsg.Conversation != nil:
		msg.Type = channels.MessageText
		msg.Content = waMsg.GetConversation()

	case waMsg.ExtendedTextMessage != nil:
		msg.Type = channels.MessageText
		msg.Content = waMsg.ExtendedTextMessage.GetText()

	case waMsg.AudioMessage != nil:
		audio := waMsg.AudioMessage
		if !audio.GetPTT() {
			return
		}
		maxBytes := uint64(w.cfg.MaxMediaSizeMB) * 1024 * 1024
		if maxBytes > 0 && audio.GetFileLength() > maxBytes {
			w.logger.Warn("whatsapp: voice note too large, skipping",
				"from", sender, "bytes", audio.GetFileLength())
			return
		}
		data, err := w.client.Download(w.ctx, audio)
		if err != nil {
			w.logger.Warn("whatsapp: voice note download failed", "from", sender, "error", err)
			return
		}
		msg.Type = channels.MessageAudio
		msg.Audio = data
		msg.AudioMIME = audio.GetMimetype()

	default:
		// Images, stickers, locations and the rest are out of scope.
		return
	}

	w.emitMessage(msg)
}

// resolvePhone maps a sender JID to a bare phone number, resolving LID
// (linked identity) JIDs to their phone form when possible.
func resolvePhone(w *WhatsApp, jid types.JID) string {
	if jid.Server == "lid" && w.client != nil && w.client.Store != nil {
		if alt, err := w.client.Store.GetAltJID(w.ctx, jid); err == nil && !alt.IsEmpty() {
			return alt.User
		}
	}
	return jid.User
}

// parseJID converts a recipient string to a JID. Accepts a bare phone
// number ("5511999999999") or a full JID ("5511999999999@s.whatsapp.net").
func parseJID(s string) (types.JID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return types.JID{}, fmt.Errorf("empty JID")
	}
	if strings.Contains(s, "@") {
		return types.ParseJID(s)
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if len(digits) < 8 {
		return types.JID{}, fmt.Errorf("phone number too short: %s", s)
	}
	return types.NewJID(digits, types.DefaultUserServer), nil
}

