package channel

import (
	"io"
	"log/slog"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewTelegram_AllowFromParsing(t *testing.T) {
	tg := NewTelegram(TelegramConfig{
		AllowFrom: []string{"1001", " 1002 ", "notanumber", ""},
		Logger:    testLogger(),
	})
	if len(tg.allowFrom) != 2 || tg.allowFrom[0] != 1001 || tg.allowFrom[1] != 1002 {
		t.Fatalf("unexpected allow list: %v", tg.allowFrom)
	}
	// First allowed user doubles as the fetch chat when none is configured.
	if tg.fetchChatID != 1001 {
		t.Fatalf("fetch chat must default to first allowed user, got %d", tg.fetchChatID)
	}
}

func TestNewTelegram_ExplicitFetchChat(t *testing.T) {
	tg := NewTelegram(TelegramConfig{
		AllowFrom: []string{"1001"},
		FetchChat: "-100200300",
		Logger:    testLogger(),
	})
	if tg.fetchChatID != -100200300 {
		t.Fatalf("explicit fetch chat ignored, got %d", tg.fetchChatID)
	}
}

func TestIsAllowed(t *testing.T) {
	open := NewTelegram(TelegramConfig{Logger: testLogger()})
	if !open.isAllowed(42) {
		t.Fatal("empty allow list must allow everyone")
	}

	restricted := NewTelegram(TelegramConfig{AllowFrom: []string{"1001"}, Logger: testLogger()})
	if !restricted.isAllowed(1001) {
		t.Fatal("listed user must be allowed")
	}
	if restricted.isAllowed(42) {
		t.Fatal("unlisted user must be rejected")
	}
}

func TestToInbound_CaptionFallback(t *testing.T) {
	msg := &tgbotapi.Message{
		MessageID: 5,
		Date:      1700000000,
		Chat:      &tgbotapi.Chat{ID: 99},
		From:      &tgbotapi.User{ID: 1001},
		Caption:   "  https://youtu.be/abc  ",
		Video:     &tgbotapi.Video{FileID: "f1", FileUniqueID: "u1", MimeType: "video/mp4", FileSize: 1024},
	}
	in := toInbound(msg)
	if in.Text != "https://youtu.be/abc" {
		t.Fatalf("caption must stand in for text, got %q", in.Text)
	}
	if in.ChatID != 99 || in.MessageID != 5 || in.SenderID != 1001 {
		t.Fatalf("unexpected envelope: %+v", in)
	}
	if in.Media == nil || in.Media.FileUniqueID != "u1" || in.Media.Size != 1024 {
		t.Fatalf("unexpected media: %+v", in.Media)
	}
}

func TestToInbound_NoSender(t *testing.T) {
	msg := &tgbotapi.Message{
		MessageID: 5,
		Chat:      &tgbotapi.Chat{ID: 99},
		Text:      "channel post",
	}
	in := toInbound(msg)
	if in.SenderID != 0 {
		t.Fatalf("missing sender must map to 0, got %d", in.SenderID)
	}
}

func TestMediaRef_Priority(t *testing.T) {
	msg := &tgbotapi.Message{
		Video:    &tgbotapi.Video{FileUniqueID: "vid"},
		Document: &tgbotapi.Document{FileUniqueID: "doc"},
	}
	ref := mediaRef(msg)
	if ref == nil || ref.FileUniqueID != "vid" {
		t.Fatalf("video must win over document, got %+v", ref)
	}
}

func TestMediaRef_Kinds(t *testing.T) {
	cases := map[string]*tgbotapi.Message{
		"video":     {Video: &tgbotapi.Video{FileUniqueID: "x"}},
		"document":  {Document: &tgbotapi.Document{FileUniqueID: "x"}},
		"animation": {Animation: &tgbotapi.Animation{FileUniqueID: "x"}},
		"audio":     {Audio: &tgbotapi.Audio{FileUniqueID: "x"}},
	}
	for name, msg := range cases {
		if ref := mediaRef(msg); ref == nil || ref.FileUniqueID != "x" {
			t.Fatalf("%s: expected media ref, got %+v", name, ref)
		}
	}
	if ref := mediaRef(&tgbotapi.Message{Text: "plain"}); ref != nil {
		t.Fatalf("text-only message must have no media, got %+v", ref)
	}
}
