package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	tele "gopkg.in/telebot.v4"

	logx "konan/pkg/logx"
)

type fakeBot struct {
	mu    sync.Mutex
	texts []string
	chats []int64
	opts  []*tele.SendOptions
	err   error
}

func (f *fakeBot) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.texts = append(f.texts, what.(string))
	f.chats = append(f.chats, to.(*tele.Chat).ID)
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			f.opts = append(f.opts, so)
		}
	}
	return &tele.Message{ID: len(f.texts)}, nil
}

func TestTelegramSendsToChatAndThread(t *testing.T) {
	t.Parallel()
	bot := &fakeBot{}
	tg := newTelegram(bot, TelegramConfig{ChatID: -100123, ThreadID: 7, RatePerSec: 10}, logx.Nop())

	if err := tg.Notify(context.Background(), "open_day fired"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(bot.texts) != 1 || bot.texts[0] != "open_day fired" || bot.chats[0] != -100123 {
		t.Fatalf("sent %v to %v", bot.texts, bot.chats)
	}
	if len(bot.opts) != 1 || bot.opts[0].ThreadID != 7 {
		t.Fatalf("opts = %+v", bot.opts)
	}
}

func TestTelegramDropsOverRate(t *testing.T) {
	t.Parallel()
	bot := &fakeBot{}
	tg := newTelegram(bot, TelegramConfig{ChatID: 1, RatePerSec: 0.001}, logx.Nop())
	ctx := context.Background()
	if err := tg.Notify(ctx, "first"); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := tg.Notify(ctx, "second"); !errors.Is(err, ErrDropped) {
		t.Fatalf("second err = %v", err)
	}
	if len(bot.texts) != 1 {
		t.Fatalf("sent %d", len(bot.texts))
	}
}

func TestTelegramErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	tg := newTelegram(&fakeBot{err: boom}, TelegramConfig{ChatID: 1, RatePerSec: 100}, logx.Nop())
	if err := tg.Notify(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tg.Notify(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled err = %v", err)
	}
	if _, err := NewTelegram(TelegramConfig{}, logx.Nop()); err == nil {
		t.Fatal("expected empty token error")
	}
	if err := (Nop{}).Notify(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
}
