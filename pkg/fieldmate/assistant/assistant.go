package assistant

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/fieldmate/fieldmate/pkg/fieldmate/accounting"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/docgen"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/mailer"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/store"
)

// Side effect kinds a channel adapter may act on.
const (
	EffectSendDocument = "send_document"
	EffectSpeakReply   = "speak_reply"
)

// SideEffect asks the delivering channel to do something beyond sending the
// reply text: attach a rendered document, or speak the reply aloud.
type SideEffect struct {
	Kind     string
	Filename string
	MIME     string
	Content  []byte
}

// Request is one inbound utterance from any channel.
type Request struct {
	AccountID string
	Text      string
	Voice     bool // reply should also be spoken
}

// Reply is the assistant's answer plus any side effects for the channel.
type Reply struct {
	Text        string
	SideEffects []SideEffect
}

// chatModel is the single call the engine needs from the language model.
// Satisfied by LLMClient; tests substitute a canned model.
type chatModel interface {
	Chat(ctx context.Context, messages []ChatMessage) (string, error)
}

// Assistant is the conversation engine. One instance serves all accounts;
// turns within a conversation are serialized so snapshot, dispatch, and
// history writes stay consistent.
type Assistant struct {
	store      *store.Store
	llm        chatModel
	dispatcher *Dispatcher
	config     *Config
	logger     *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-account turn locks
}

// New wires the assistant from its dependencies. accountingClient and
// mailSender may be nil when those integrations are not configured.
func New(cfg *Config, st *store.Store, accountingClient accounting.Client, mailSender mailer.Sender, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	session := accounting.SessionFromConfig(cfg.Accounting)
	return &Assistant{
		store:      st,
		llm:        NewLLMClient(cfg, logger),
		dispatcher: NewDispatcher(st, accountingClient, session, mailSender, logger),
		config:     cfg,
		logger:     logger.With("component", "assistant"),
		locks:      map[string]*sync.Mutex{},
	}
}

func (a *Assistant) accountLock(accountID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		a.locks[accountID] = l
	}
	return l
}

// HandleMessage runs one full turn: snapshot, interpretation, dispatch, and
// reply synthesis. Every turn persists the user and assistant message pair,
// including turns that end in a parse failure or clarification.
func (a *Assistant) HandleMessage(ctx context.Context, req *Request) (*Reply, error) {
	lock := a.accountLock(req.AccountID)
	lock.Lock()
	defer lock.Unlock()

	account, err := a.store.GetAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, errNotFound("account")
	}

	conv, err := a.store.GetOrCreateConversation(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	history, err := a.store.ListMessages(ctx, conv.ID, a.config.HistoryLimit)
	if err != nil {
		return nil, err
	}

	reply := a.runTurn(ctx, account, history, req)

	if err := a.persistTurn(ctx, conv, account.ID, req.Text, reply.Text); err != nil {
		a.logger.Error("could not persist turn", "account", account.ID, "error", err)
	}
	return reply, nil
}

// runTurn produces the reply for one utterance. It never returns an error:
// interpretation failures become apologetic replies so the conversation can
// continue.
func (a *Assistant) runTurn(ctx context.Context, account *store.Account, history []*store.Message, req *Request) *Reply {
	intent, clarification, err := a.interpret(ctx, account, history, req.Text)
	if err != nil {
		a.logger.Warn("interpretation failed", "account", account.ID, "error", err)
		return a.withVoice(req, &Reply{
			Text: "Sorry, I couldn't work out what to do with that (" + err.Error() + "). Could you rephrase?",
		})
	}
	if clarification != nil {
		return a.withVoice(req, &Reply{Text: clarificationReply(clarification)})
	}

	clarification, err = a.prepareIntent(ctx, account, history, intent)
	if err != nil {
		var derr *DomainError
		if errors.As(err, &derr) {
			return a.withVoice(req, &Reply{Text: "I couldn't complete that action: " + derr.Message})
		}
		return a.withVoice(req, &Reply{Text: "I couldn't complete that action: " + err.Error()})
	}
	if clarification != nil {
		return a.withVoice(req, &Reply{Text: clarificationReply(clarification)})
	}

	if intent.Action == ActionGeneralChat {
		text := intent.Response
		if text == "" {
			text = "How can I help with your tasks, schedule, or invoices?"
		}
		return a.withVoice(req, &Reply{Text: text})
	}

	env := a.dispatcher.Dispatch(ctx, account.ID, intent)
	reply := &Reply{Text: synthesize(intent, env)}

	if env.Success && intent.Action == ActionSendInvoice {
		if inv, ok := env.Data.(*store.Invoice); ok && docgen.Complete(inv) {
			if doc, err := docgen.RenderInvoice(inv, account); err == nil {
				reply.SideEffects = append(reply.SideEffects, SideEffect{
					Kind:     EffectSendDocument,
					Filename: "invoice.html",
					MIME:     docgen.DocumentMIME,
					Content:  doc,
				})
			}
		}
	}
	return a.withVoice(req, reply)
}

func (a *Assistant) withVoice(req *Request, reply *Reply) *Reply {
	if req.Voice {
		reply.SideEffects = append(reply.SideEffects, SideEffect{Kind: EffectSpeakReply})
	}
	return reply
}

func (a *Assistant) persistTurn(ctx context.Context, conv *store.Conversation, accountID, userText, assistantText string) error {
	userMsg := &store.Message{
		ConversationID: conv.ID,
		AccountID:      accountID,
		Role:           store.RoleUser,
		Text:           userText,
	}
	if err := a.store.AppendMessage(ctx, userMsg); err != nil {
		return err
	}
	return a.store.AppendMessage(ctx, &store.Message{
		ConversationID: conv.ID,
		AccountID:      accountID,
		Role:           store.RoleAssistant,
		Text:           assistantText,
	})
}

// Store exposes the backing store for channels and schedulers that share it.
func (a *Assistant) Store() *store.Store {
	return a.store
}
