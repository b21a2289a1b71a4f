// Package notify delivers short operator alerts about sessions.
package notify

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	logx "konan/pkg/logx"
)

// ErrDropped is returned when an alert exceeds the configured rate.
var ErrDropped = errors.New("notification dropped: over rate")

type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Nop discards every alert.
type Nop struct{}

func (Nop) Notify(context.Context, string) error { return nil }

type TelegramConfig struct {
	Token      string
	ChatID     int64
	ThreadID   int
	RatePerSec float64
}

// sender is the part of *tele.Bot used here.
type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Telegram posts alerts to one chat (and optional forum thread). Alerts
// over the rate are dropped rather than queued: a stale alert is noise.
type Telegram struct {
	bot     sender
	chat    *tele.Chat
	thread  int
	limiter *rate.Limiter
	log     logx.Logger
}

func NewTelegram(cfg TelegramConfig, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token, Offline: true})
	if err != nil {
		return nil, err
	}
	return newTelegram(b, cfg, log), nil
}

func newTelegram(bot sender, cfg TelegramConfig, log logx.Logger) *Telegram {
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Telegram{
		bot:     bot,
		chat:    &tele.Chat{ID: cfg.ChatID},
		thread:  cfg.ThreadID,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     log.With(logx.String("comp", "notify.telegram")),
	}
}

func (t *Telegram) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !t.limiter.Allow() {
		t.log.Debug("alert dropped", logx.Int("len", len(text)))
		return ErrDropped
	}
	_, err := t.bot.Send(t.chat, text, &tele.SendOptions{
		ThreadID:              t.thread,
		DisableWebPagePreview: true,
	})
	if err != nil {
		t.log.Warn("alert send failed", logx.Err(err))
	}
	return err
}
