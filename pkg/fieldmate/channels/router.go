package channels

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fieldmate/fieldmate/pkg/fieldmate/assistant"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/store"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/tts"
)

// turnTimeout bounds one full assistant turn including model calls and
// accounting sync.
const turnTimeout = 2 * time.Minute

// Router pumps incoming channel messages through the assistant and delivers
// the replies. Accounts are created lazily on first contact, keyed by the
// sender's phone number.
type Router struct {
	assistant   *assistant.Assistant
	store       *store.Store
	speech      tts.Provider
	transcriber tts.Transcriber
	voice       string
	logger      *slog.Logger
}

// NewRouter creates a router. speech and transcriber may be nil; voice notes
// then get a text-only fallback.
func NewRouter(a *assistant.Assistant, speech tts.Provider, transcriber tts.Transcriber, voice string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		assistant:   a,
		store:       a.Store(),
		speech:      speech,
		transcriber: transcriber,
		voice:       voice,
		logger:      logger.With("component", "router"),
	}
}

// Run consumes messages from the channel until its receive stream closes or
// the context is cancelled. Each message is handled in its own goroutine so
// one slow turn does not stall other senders.
func (r *Router) Run(ctx context.Context, ch Channel) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch.Receive():
			if !ok {
				return
			}
			go r.handle(ctx, ch, msg)
		}
	}
}

func (r *Router) handle(ctx context.Context, ch Channel, msg *IncomingMessage) {
	ctx, cancel := context.WithTimeout(ctx, turnTimeout)
	defer cancel()

	account, err := r.accountFor(ctx, msg)
	if err != nil {
		r.logger.Error("account lookup failed", "from", msg.From, "error", err)
		return
	}

	text := msg.Content
	voice := false
	if msg.Type == MessageAudio {
		voice = true
		text, err = r.transcribe(ctx, msg)
		if err != nil {
			r.logger.Warn("transcription failed", "from", msg.From, "error", err)
			r.send(ctx, ch, msg.ChatID, &OutgoingMessage{
				Content: "Sorry, I couldn't make out that voice note. Could you type it instead?",
			})
			return
		}
	}
	if text == "" {
		return
	}

	reply, err := r.assistant.HandleMessage(ctx, &assistant.Request{
		AccountID: account.ID,
		Text:      text,
		Voice:     voice,
	})
	if err != nil {
		r.logger.Error("turn failed", "account", account.ID, "error", err)
		r.send(ctx, ch, msg.ChatID, &OutgoingMessage{
			Content: "Sorry, something went wrong on my end. Please try again.",
		})
		return
	}

	r.send(ctx, ch, msg.ChatID, r.outgoing(ctx, reply))
}

// outgoing converts an assistant reply into a channel message, rendering
// side effects the channel can act on.
func (r *Router) outgoing(ctx context.Context, reply *assistant.Reply) *OutgoingMessage {
	out := &OutgoingMessage{Content: reply.Text}
	for _, effect := range reply.SideEffects {
		switch effect.Kind {
		case assistant.EffectSendDocument:
			out.Attachments = append(out.Attachments, Attachment{
				Filename: effect.Filename,
				MIMEType: effect.MIME,
				Data:     effect.Content,
			})
		case assistant.EffectSpeakReply:
			if r.speech == nil {
				continue
			}
			audio, mime, err := r.speech.Synthesize(ctx, reply.Text, r.voice)
			if err != nil {
				r.logger.Warn("speech synthesis failed", "error", err)
				continue
			}
			out.SpokenAudio = audio
			out.SpokenMIME = mime
		}
	}
	return out
}

func (r *Router) transcribe(ctx context.Context, msg *IncomingMessage) (string, error) {
	if r.transcriber == nil {
		return "", errors.New("no transcriber configured")
	}
	return r.transcriber.Transcribe(ctx, msg.Audio, msg.AudioMIME)
}

// accountFor finds the sender's account, creating one on first contact.
func (r *Router) accountFor(ctx context.Context, msg *IncomingMessage) (*store.Account, error) {
	account, err := r.store.GetAccountByPhone(ctx, msg.From)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	account = &store.Account{
		Name:  msg.FromName,
		Phone: msg.From,
	}
	if err := r.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	r.logger.Info("created account on first contact", "phone", msg.From, "channel", msg.Channel)
	return account, nil
}

func (r *Router) send(ctx context.Context, ch Channel, to string, out *OutgoingMessage) {
	if err := ch.Send(ctx, to, out); err != nil {
		r.logger.Error("send failed", "channel", ch.Name(), "to", to, "error", err)
	}
}

// Notify implements the scheduler's notifier by delivering reminder text to
// the account's phone over the given channel.
type Notifier struct {
	channel Channel
}

// NewNotifier wraps a channel for scheduler notifications.
func NewNotifier(ch Channel) *Notifier {
	return &Notifier{channel: ch}
}

func (n *Notifier) Notify(ctx context.Context, account *store.Account, text string) error {
	if account.Phone == "" {
		return nil
	}
	return n.channel.Send(ctx, account.Phone, &OutgoingMessage{Content: text})
}
