// Package telegram delivers chat commands from the Telegram Bot API to
// the faucet and sends the replies back.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ImbueNetwork/imbue-faucet/internal/faucet"
	"github.com/ImbueNetwork/imbue-faucet/internal/ratelimit"
	"github.com/ImbueNetwork/imbue-faucet/internal/workflow"
)

const pollTimeout = 60

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Handler answers commands.
type Handler interface {
	Help() faucet.Reply
	ChooseToken() faucet.Reply
	HandleRequest(ctx context.Context, user ratelimit.UserID, rawText string, now time.Time) faucet.Reply
	HandleWorkflowCommand(ctx context.Context, kind workflow.Kind, rawText string) faucet.Reply
}

// Option configures a Bot.
type Option func(*Bot)

// WithMaxConcurrent bounds how many commands are handled at once.
func WithMaxConcurrent(n int) Option {
	return func(b *Bot) {
		if n > 0 {
			b.sem = make(chan struct{}, n)
		}
	}
}

// WithLogger sets the logger used for dispatch diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bot) { b.log = l }
}

// WithClock replaces time.Now for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Bot) { b.now = now }
}

// Bot polls for updates and dispatches each command on its own goroutine.
type Bot struct {
	api     API
	handler Handler
	sem     chan struct{}
	log     *slog.Logger
	now     func() time.Time
	wg      sync.WaitGroup
}

// New returns a Bot reading from api.
func New(api API, h Handler, opts ...Option) *Bot {
	b := &Bot{
		api:     api,
		handler: h,
		sem:     make(chan struct{}, 16),
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run polls until ctx is cancelled or the update channel closes, then
// waits for in-flight commands to finish.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := b.api.GetUpdatesChan(u)
	defer b.wg.Wait()

	b.log.Info("polling for updates")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if upd.Message == nil || !upd.Message.IsCommand() {
				continue
			}
			select {
			case b.sem <- struct{}{}:
			case <-ctx.Done():
				b.api.StopReceivingUpdates()
				return nil
			}
			b.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer b.wg.Done()
				defer func() { <-b.sem }()
				b.handle(ctx, msg)
			}(upd.Message)
		}
	}
}

func (b *Bot) handle(ctx context.Context, msg *tgbotapi.Message) {
	log := b.log.With("command", msg.Command(), "update_message_id", msg.MessageID)
	defer func() {
		if r := recover(); r != nil {
			log.Error("command panic", "panic", fmt.Sprint(r))
		}
	}()

	reply, ok := b.route(ctx, msg)
	if !ok || reply.Silent || reply.Text == "" {
		return
	}
	if msg.Chat == nil {
		log.Warn("message without chat, reply dropped")
		return
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(msg.Chat.ID, reply.Text)); err != nil {
		log.Error("send reply", "err", err)
	}
}

// route maps a command message to its reply. Unknown commands report
// false.
func (b *Bot) route(ctx context.Context, msg *tgbotapi.Message) (faucet.Reply, bool) {
	command := msg.Command()
	// Rebuild the text without any @botname suffix on the command.
	text := strings.TrimSpace("/" + command + " " + msg.CommandArguments())

	switch command {
	case "start", "help":
		return b.handler.Help(), true
	case "type":
		return b.handler.ChooseToken(), true
	case "request":
		if msg.From == nil {
			return faucet.Reply{}, false
		}
		user := ratelimit.UserID(strconv.FormatInt(msg.From.ID, 10))
		return b.handler.HandleRequest(ctx, user, text, b.now()), true
	case "schedule":
		return b.handler.HandleWorkflowCommand(ctx, workflow.Schedule, text), true
	case "approve":
		return b.handler.HandleWorkflowCommand(ctx, workflow.Approve, text), true
	case "milestone":
		return b.handler.HandleWorkflowCommand(ctx, workflow.ApproveMilestone, text), true
	}
	return faucet.Reply{}, false
}
