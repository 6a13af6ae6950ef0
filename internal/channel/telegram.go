// Package channel implements the chat-protocol boundary on the Telegram Bot
// API: update polling, status replies, message deletion, attachment download,
// and deep-link message fetching.
package channel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"fetchbot/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	telegramPollTimeout   = 30
	downloadHTTPTimeout   = 10 * time.Minute
	telegramMaxSendLength = 4000
)

// Telegram implements domain.ChatClient and feeds inbound messages to the bus.
type Telegram struct {
	token       string
	allowFrom   []int64 // allowed user IDs (empty = allow all)
	parseMode   string
	fetchChatID int64 // scratch chat for materializing deep-linked posts

	bot        *tgbotapi.BotAPI
	httpClient *http.Client
	logger     *slog.Logger
}

type TelegramConfig struct {
	Token     string
	AllowFrom []string // user IDs as strings
	ParseMode string
	FetchChat string // chat id; empty falls back to first AllowFrom entry
	Logger    *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	var allowed []int64
	for _, s := range cfg.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			allowed = append(allowed, id)
		}
	}
	if cfg.ParseMode == "" {
		cfg.ParseMode = "Markdown"
	}

	fetchChatID, _ := strconv.ParseInt(cfg.FetchChat, 10, 64)
	if fetchChatID == 0 && len(allowed) > 0 {
		fetchChatID = allowed[0]
	}

	return &Telegram{
		token:       cfg.Token,
		allowFrom:   allowed,
		parseMode:   cfg.ParseMode,
		fetchChatID: fetchChatID,
		httpClient:  &http.Client{Timeout: downloadHTTPTimeout},
		logger:      cfg.Logger,
	}
}

// Start connects to Telegram and polls for updates until ctx is cancelled.
// Each accepted message is published to the bus; delivery order within a
// single chat follows Telegram's own update ordering.
func (t *Telegram) Start(ctx context.Context, bus domain.MessageBus) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = telegramPollTimeout
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
			t.handleUpdate(update, bus)
		}
	}
}

func (t *Telegram) handleUpdate(update tgbotapi.Update, bus domain.MessageBus) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}

	if !t.isAllowed(msg.From.ID) {
		t.logger.Warn("unauthorized telegram user",
			"user_id", msg.From.ID,
			"username", msg.From.UserName,
		)
		return
	}

	inbound := toInbound(msg)
	if inbound.Text == "" && inbound.Media == nil {
		return
	}

	t.logger.Info("telegram message received",
		"chat_id", inbound.ChatID,
		"message_id", inbound.MessageID,
		"has_media", inbound.Media != nil,
		"text_len", len(inbound.Text),
	)
	bus.Publish(inbound)
}

// toInbound converts a Telegram message into the core's message shape.
// Caption stands in for text on media-only messages.
func toInbound(msg *tgbotapi.Message) domain.InboundMessage {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		text = strings.TrimSpace(msg.Caption)
	}
	var senderID int64
	if msg.From != nil {
		senderID = msg.From.ID
	}
	return domain.InboundMessage{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		SenderID:  senderID,
		Text:      text,
		Media:     mediaRef(msg),
		Timestamp: time.Unix(int64(msg.Date), 0),
	}
}

// mediaRef extracts the downloadable attachment, if any. Video is checked
// first as the common case; documents cover videos sent as files.
func mediaRef(msg *tgbotapi.Message) *domain.MediaRef {
	switch {
	case msg.Video != nil:
		v := msg.Video
		return &domain.MediaRef{
			FileID:       v.FileID,
			FileUniqueID: v.FileUniqueID,
			FileName:     v.FileName,
			MimeType:     v.MimeType,
			Size:         int64(v.FileSize),
		}
	case msg.Document != nil:
		d := msg.Document
		return &domain.MediaRef{
			FileID:       d.FileID,
			FileUniqueID: d.FileUniqueID,
			FileName:     d.FileName,
			MimeType:     d.MimeType,
			Size:         int64(d.FileSize),
		}
	case msg.Animation != nil:
		a := msg.Animation
		return &domain.MediaRef{
			FileID:       a.FileID,
			FileUniqueID: a.FileUniqueID,
			FileName:     a.FileName,
			MimeType:     a.MimeType,
			Size:         int64(a.FileSize),
		}
	case msg.Audio != nil:
		a := msg.Audio
		return &domain.MediaRef{
			FileID:       a.FileID,
			FileUniqueID: a.FileUniqueID,
			FileName:     a.FileName,
			MimeType:     a.MimeType,
			Size:         int64(a.FileSize),
		}
	}
	return nil
}

// SendText delivers a status line. Falls back to plain text when the parse
// mode rejects the content.
func (t *Telegram) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(text) > telegramMaxSendLength {
		text = text[:telegramMaxSendLength]
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = t.parseMode
	if _, err := t.bot.Send(msg); err != nil {
		if strings.Contains(err.Error(), "can't parse entities") {
			plain := tgbotapi.NewMessage(chatID, text)
			if _, err2 := t.bot.Send(plain); err2 == nil {
				return nil
			}
		}
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func (t *Telegram) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("telegram delete %d/%d: %w", chatID, messageID, err)
	}
	return nil
}

// DownloadFile streams attachment bytes to destPath via the bot file API.
func (t *Telegram) DownloadFile(ctx context.Context, fileID, destPath string) (string, error) {
	url, err := t.bot.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("resolve file %s: %w", fileID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download file %s: unexpected status %s", fileID, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}
	out, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", destPath, err)
	}
	defer out.Close()

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		os.Remove(destPath)
		return "", fmt.Errorf("write %s: %w", destPath, err)
	}

	t.logger.Info("attachment downloaded", "path", destPath, "bytes", n)
	return destPath, nil
}

// FetchMessage materializes a referenced post by forwarding it into the
// configured scratch chat; the Bot API has no direct message lookup. The
// forwarded copy is removed again once its media reference is read.
func (t *Telegram) FetchMessage(ctx context.Context, chat domain.ChatRef, messageID int) (*domain.InboundMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.fetchChatID == 0 {
		return nil, fmt.Errorf("no fetch chat configured")
	}

	fwd := tgbotapi.ForwardConfig{
		BaseChat:  tgbotapi.BaseChat{ChatID: t.fetchChatID},
		MessageID: messageID,
	}
	if chat.Username != "" {
		fwd.FromChannelUsername = "@" + chat.Username
	} else {
		fwd.FromChatID = chat.ID
	}

	forwarded, err := t.bot.Send(fwd)
	if err != nil {
		return nil, fmt.Errorf("forward %s/%d: %w", chat, messageID, err)
	}

	inbound := toInbound(&forwarded)

	// The forwarded copy served its purpose; keep the scratch chat clean.
	if _, err := t.bot.Request(tgbotapi.NewDeleteMessage(t.fetchChatID, forwarded.MessageID)); err != nil {
		t.logger.Warn("cannot remove forwarded copy", "message_id", forwarded.MessageID, "err", err)
	}

	return &inbound, nil
}

func (t *Telegram) isAllowed(userID int64) bool {
	if len(t.allowFrom) == 0 {
		return true // empty list = allow all
	}
	for _, id := range t.allowFrom {
		if id == userID {
			return true
		}
	}
	return false
}
