package loop

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"fetchbot/internal/bus"
	"fetchbot/internal/classify"
	"fetchbot/internal/domain"
	"fetchbot/internal/fetch"
)

type recordingChat struct {
	mu      sync.Mutex
	sent    []string
	deleted []int
}

func (c *recordingChat) SendText(ctx context.Context, chatID int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return nil
}

func (c *recordingChat) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, messageID)
	return nil
}

func (c *recordingChat) DownloadFile(ctx context.Context, fileID, destPath string) (string, error) {
	return destPath, nil
}

func (c *recordingChat) FetchMessage(ctx context.Context, chat domain.ChatRef, messageID int) (*domain.InboundMessage, error) {
	return nil, context.Canceled
}

func (c *recordingChat) snapshot() (sent []string, deleted []int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...), append([]int(nil), c.deleted...)
}

type stubStore struct {
	mu      sync.Mutex
	records map[string]bool
}

func (s *stubStore) Exists(ctx context.Context, identity string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[identity], nil
}

func (s *stubStore) Record(ctx context.Context, rec domain.VideoRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		s.records = make(map[string]bool)
	}
	if s.records[rec.Identity] {
		return domain.ErrDuplicateIdentity
	}
	s.records[rec.Identity] = true
	return nil
}

func (s *stubStore) Count(ctx context.Context) (int64, error) { return 0, nil }

func (s *stubStore) Recent(ctx context.Context, n int) ([]domain.VideoRecord, error) {
	return nil, nil
}

func (s *stubStore) Close() error { return nil }

// gatedRetriever blocks every probe until the gate closes, stalling its
// chat's queue.
type gatedRetriever struct {
	gate <-chan struct{}
}

func (r gatedRetriever) Probe(ctx context.Context, url string) (*domain.Metadata, error) {
	<-r.gate
	return &domain.Metadata{ID: url, Title: "stub"}, nil
}

func (r gatedRetriever) Download(ctx context.Context, url, destDir string) error { return nil }

type stubRetriever struct{}

func (stubRetriever) Probe(ctx context.Context, url string) (*domain.Metadata, error) {
	return &domain.Metadata{ID: url, Title: "stub"}, nil
}

func (stubRetriever) Download(ctx context.Context, url, destDir string) error { return nil }

// runLoop publishes msgs, closes the bus, and runs the loop to completion.
func runLoop(t *testing.T, chat *recordingChat, msgs ...domain.InboundMessage) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	b := bus.New(len(msgs)+1, logger)
	orch := fetch.NewOrchestrator(fetch.OrchestratorConfig{
		Store:       &stubStore{},
		Engine:      stubRetriever{},
		Chat:        chat,
		DownloadDir: t.TempDir(),
		Logger:      logger,
	})
	l := New(LoopConfig{
		Bus:          b,
		Classifier:   classify.NewClassifier(classify.DefaultRules()),
		Orchestrator: orch,
		Chat:         chat,
		Logger:       logger,
		Concurrency:  2,
	})

	for _, m := range msgs {
		b.Publish(m)
	}
	b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("loop did not stop after bus close")
	}
}

func TestProcess_UnrecognizedStillDeleted(t *testing.T) {
	chat := &recordingChat{}
	runLoop(t, chat, domain.InboundMessage{ChatID: 1, MessageID: 10, Text: "hello there"})

	sent, deleted := chat.snapshot()
	if len(sent) != 0 {
		t.Fatalf("unrecognized message must not get a reply, got %v", sent)
	}
	if len(deleted) != 1 || deleted[0] != 10 {
		t.Fatalf("message must be deleted regardless, got %v", deleted)
	}
}

func TestProcess_CommandGreeting(t *testing.T) {
	chat := &recordingChat{}
	runLoop(t, chat, domain.InboundMessage{ChatID: 1, MessageID: 11, Text: "/start"})

	sent, deleted := chat.snapshot()
	if len(sent) != 1 || !strings.Contains(sent[0], "Hello") {
		t.Fatalf("expected greeting reply, got %v", sent)
	}
	if len(deleted) != 1 {
		t.Fatalf("command message must be deleted, got %v", deleted)
	}
}

func TestProcess_FetchReportsOutcome(t *testing.T) {
	chat := &recordingChat{}
	runLoop(t, chat, domain.InboundMessage{
		ChatID:    1,
		MessageID: 12,
		Text:      "https://youtube.com/watch?v=abc",
	})

	sent, deleted := chat.snapshot()
	if len(sent) != 1 || !strings.HasPrefix(sent[0], "Done") {
		t.Fatalf("expected completion status line, got %v", sent)
	}
	if len(deleted) != 1 || deleted[0] != 12 {
		t.Fatalf("trigger message must be deleted, got %v", deleted)
	}
}

// A chat backlog beyond the queue buffer must never lose a message without
// its cleanup: abandoned messages are still deleted.
func TestRun_BacklogNeverSilentlyDropped(t *testing.T) {
	chat := &recordingChat{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gate := make(chan struct{})

	total := perChatQueueBuffer + 8
	b := bus.New(total, logger)
	orch := fetch.NewOrchestrator(fetch.OrchestratorConfig{
		Store:       &stubStore{},
		Engine:      gatedRetriever{gate: gate},
		Chat:        chat,
		DownloadDir: t.TempDir(),
		Logger:      logger,
	})
	l := New(LoopConfig{
		Bus:          b,
		Classifier:   classify.NewClassifier(classify.DefaultRules()),
		Orchestrator: orch,
		Chat:         chat,
		Logger:       logger,
		Concurrency:  1,
	})
	l.enqueueWait = 20 * time.Millisecond

	for i := 0; i < total; i++ {
		b.Publish(domain.InboundMessage{
			ChatID:    1,
			MessageID: 1000 + i,
			Text:      "https://youtube.com/watch?v=abc",
		})
	}
	b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	// One message is stalled in the retriever and the queue holds the next
	// perChatQueueBuffer; the rest must be abandoned with their deletes.
	overflow := total - perChatQueueBuffer - 1
	for {
		_, deleted := chat.snapshot()
		if len(deleted) >= overflow {
			break
		}
		select {
		case <-ctx.Done():
			t.Fatal("abandoned messages were not cleaned up")
		case <-time.After(5 * time.Millisecond):
		}
	}

	close(gate)
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("loop did not stop after bus close")
	}

	_, deleted := chat.snapshot()
	if len(deleted) != total {
		t.Fatalf("published %d messages, %d deleted: %d lost",
			total, len(deleted), total-len(deleted))
	}
	seen := make(map[int]bool)
	for _, id := range deleted {
		if seen[id] {
			t.Fatalf("message %d deleted twice", id)
		}
		seen[id] = true
	}
}

func TestRun_EveryMessageDeletedOnce(t *testing.T) {
	chat := &recordingChat{}
	var msgs []domain.InboundMessage
	for i := 0; i < 6; i++ {
		msgs = append(msgs, domain.InboundMessage{
			ChatID:    int64(i % 3), // spread across chats
			MessageID: 100 + i,
			Text:      "https://youtube.com/watch?v=abc", // same URL: later ones dedup
		})
	}
	runLoop(t, chat, msgs...)

	_, deleted := chat.snapshot()
	if len(deleted) != len(msgs) {
		t.Fatalf("expected %d deletions, got %d", len(msgs), len(deleted))
	}
	seen := make(map[int]bool)
	for _, id := range deleted {
		if seen[id] {
			t.Fatalf("message %d deleted twice", id)
		}
		seen[id] = true
	}
}
