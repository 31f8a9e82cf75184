package channel

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"coldchat/internal/bus"
	"coldchat/internal/domain"
	"coldchat/internal/session"
)

const telegramPhotoFetchTimeout = 15 * time.Second

// Telegram surfaces the persona over a Telegram bot. The session is a
// single conversation, so the channel relays its events to whichever
// allowed chat spoke last; the pacing simulator's typing phases map onto
// Telegram's "typing…" chat action.
type Telegram struct {
	token     string
	allowFrom []int64 // allowed chat IDs (empty = allow all)
	session   *session.Session
	logger    *slog.Logger

	bot        *tgbotapi.BotAPI
	activeChat atomic.Int64
}

type TelegramConfig struct {
	Token     string
	AllowFrom []string // chat IDs as strings
	Session   *session.Session
	Logger    *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	var allowed []int64
	for _, s := range cfg.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			allowed = append(allowed, id)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Telegram{
		token:     cfg.Token,
		allowFrom: allowed,
		session:   cfg.Session,
		logger:    cfg.Logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram and begins polling for updates.
func (t *Telegram) Start(ctx context.Context) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	t.session.Bus().On("*", t.relay)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(ctx, update)
		}
	}
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil {
		return
	}
	msg := update.Message
	if !t.allowed(msg.Chat.ID) {
		t.logger.Warn("telegram message from disallowed chat", "chat", msg.Chat.ID)
		return
	}
	t.activeChat.Store(msg.Chat.ID)

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	if strings.TrimSpace(text) == "/reset" {
		t.session.Reset()
		t.send(msg.Chat.ID, "(conversation cleared)")
		return
	}
	if strings.TrimSpace(text) == "/score" {
		t.send(msg.Chat.ID, fmt.Sprintf("affinity %d/100 (%s)", t.session.Score(), t.session.Tier()))
		return
	}

	image := t.fetchPhoto(ctx, msg)
	if !t.session.Submit(text, image) {
		t.logger.Debug("empty telegram submission ignored", "chat", msg.Chat.ID)
	}
}

// fetchPhoto downloads the largest attached photo, if any, and converts
// it to the data-URL payload the oracle expects.
func (t *Telegram) fetchPhoto(ctx context.Context, msg *tgbotapi.Message) string {
	if len(msg.Photo) == 0 {
		return ""
	}
	largest := msg.Photo[len(msg.Photo)-1]
	url, err := t.bot.GetFileDirectURL(largest.FileID)
	if err != nil {
		t.logger.Warn("cannot resolve telegram photo", "err", err)
		return ""
	}

	fetchCtx, cancel := context.WithTimeout(ctx, telegramPhotoFetchTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(fetchCtx, "GET", url, nil)
	if err != nil {
		return ""
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.logger.Warn("cannot download telegram photo", "err", err)
		return ""
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil || len(data) == 0 {
		return ""
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
}

// relay forwards session events to the active chat.
func (t *Telegram) relay(e bus.Event) {
	chatID := t.activeChat.Load()
	if chatID == 0 || t.bot == nil {
		return
	}

	switch e.Type {
	case bus.EventMessageAppended:
		if e.Message.Sender == domain.SenderUser {
			return
		}
		text := e.Message.Text
		if e.Message.Sender == domain.SenderSystem {
			// read-but-ignored placeholder; deliver it as an italic aside
			text = "_" + text + "_"
		}
		t.send(chatID, text)
	case bus.EventTypingStarted:
		action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
		if _, err := t.bot.Request(action); err != nil {
			t.logger.Debug("chat action failed", "err", err)
		}
	case bus.EventTierUp:
		t.send(chatID, fmt.Sprintf("♥ affinity rose to %d/100 (%s)", e.Score, e.Tier))
	}
}

func (t *Telegram) send(chatID int64, text string) {
	m := tgbotapi.NewMessage(chatID, text)
	m.ParseMode = "Markdown"
	if _, err := t.bot.Send(m); err != nil {
		t.logger.Error("telegram send failed", "err", err)
	}
}

func (t *Telegram) allowed(chatID int64) bool {
	if len(t.allowFrom) == 0 {
		return true
	}
	for _, id := range t.allowFrom {
		if id == chatID {
			return true
		}
	}
	return false
}
