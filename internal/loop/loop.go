// Package loop consumes inbound messages, runs them through the classifier
// and orchestrator, reports a status line, and cleans up the triggering
// message. Each message is processed exactly once; order is preserved per
// chat while fetches across chats run concurrently.
package loop

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fetchbot/internal/classify"
	"fetchbot/internal/domain"
	"fetchbot/internal/fetch"
	"fetchbot/internal/metrics"

	"github.com/google/uuid"
)

const (
	defaultConcurrency = 3
	perChatQueueBuffer = 32
	defaultEnqueueWait = 10 * time.Second
	greetingReply      = "Hello! Send me a video link or forward me a video and I'll fetch it."
)

// Loop is the per-message state machine driver.
type Loop struct {
	bus         domain.MessageBus
	classifier  *classify.Classifier
	orch        *fetch.Orchestrator
	chat        domain.ChatClient
	logger      *slog.Logger
	concurrency int
	enqueueWait time.Duration // how long a full chat queue blocks dispatch
}

type LoopConfig struct {
	Bus          domain.MessageBus
	Classifier   *classify.Classifier
	Orchestrator *fetch.Orchestrator
	Chat         domain.ChatClient
	Logger       *slog.Logger
	Concurrency  int // max concurrent fetches across chats
}

func New(cfg LoopConfig) *Loop {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Loop{
		bus:         cfg.Bus,
		classifier:  cfg.Classifier,
		orch:        cfg.Orchestrator,
		chat:        cfg.Chat,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
		enqueueWait: defaultEnqueueWait,
	}
}

// Run consumes inbound messages until ctx is cancelled or the bus closes.
// Messages are fanned out to one queue per chat so receipt order holds
// within a chat; a shared semaphore bounds concurrent fetch work globally.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("message loop started", "concurrency", l.concurrency)

	sem := make(chan struct{}, l.concurrency)
	queues := make(map[int64]chan domain.InboundMessage)
	var wg sync.WaitGroup
	inbound := l.bus.Subscribe()

	defer func() {
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
		l.logger.Info("message loop stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-inbound:
			if !ok {
				l.logger.Info("inbound channel closed, message loop stopping")
				return
			}
			metrics.MessagesTotal.Inc()

			q, ok := queues[msg.ChatID]
			if !ok {
				q = make(chan domain.InboundMessage, perChatQueueBuffer)
				queues[msg.ChatID] = q
				wg.Add(1)
				go func() {
					defer wg.Done()
					l.drain(ctx, q, sem)
				}()
			}

			l.enqueue(ctx, q, msg)
		}
	}
}

// enqueue hands a message to its chat queue, blocking dispatch while the
// queue is full so receipt order holds. A message the queue cannot take
// within enqueueWait is abandoned with its cleanup still performed; it is
// never dropped without a trace.
func (l *Loop) enqueue(ctx context.Context, q chan<- domain.InboundMessage, msg domain.InboundMessage) {
	select {
	case q <- msg:
		return
	default:
	}

	l.logger.Warn("chat queue full, waiting",
		"chat_id", msg.ChatID, "message_id", msg.MessageID)
	timer := time.NewTimer(l.enqueueWait)
	defer timer.Stop()

	select {
	case q <- msg:
	case <-ctx.Done():
	case <-timer.C:
		l.logger.Error("chat queue full, abandoning message",
			"chat_id", msg.ChatID, "message_id", msg.MessageID)
		if err := l.chat.DeleteMessage(ctx, msg.ChatID, msg.MessageID); err != nil {
			l.logger.Warn("cleanup delete failed", "err", err)
		}
	}
}

// drain processes one chat's messages strictly in order.
func (l *Loop) drain(ctx context.Context, q <-chan domain.InboundMessage, sem chan struct{}) {
	for msg := range q {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		l.process(ctx, msg)
		<-sem
	}
}

// process runs one message through classify → orchestrate → report → cleanup.
// Cleanup always runs, including for unrecognized messages.
func (l *Loop) process(ctx context.Context, msg domain.InboundMessage) {
	taskID := uuid.NewString()
	logger := l.logger.With("task", taskID, "chat_id", msg.ChatID, "message_id", msg.MessageID)

	defer func() {
		if err := l.chat.DeleteMessage(ctx, msg.ChatID, msg.MessageID); err != nil {
			logger.Warn("cleanup delete failed", "err", err)
		}
	}()

	req := l.classifier.Classify(msg)
	logger.Info("message classified", "kind", req.Kind.String())

	switch req.Kind {
	case classify.KindUnrecognized:
		logger.Info("invalid request, nothing to do")
		return
	case classify.KindCommand:
		if err := l.chat.SendText(ctx, msg.ChatID, greetingReply); err != nil {
			logger.Warn("greeting reply failed", "err", err)
		}
		return
	}

	metrics.InflightFetches.Inc()
	outcome := l.orch.Handle(ctx, req)
	metrics.InflightFetches.Dec()
	countOutcome(outcome)

	logger.Info("request finished",
		"kind", req.Kind.String(),
		"status", outcome.Status.String(),
		"reason", outcome.Reason,
	)

	if err := l.chat.SendText(ctx, msg.ChatID, outcome.Message()); err != nil {
		logger.Warn("status reply failed", "err", err)
	}
}

func countOutcome(o fetch.Outcome) {
	switch o.Status {
	case fetch.StatusCompleted:
		metrics.FetchesTotal.Inc()
	case fetch.StatusSkipped:
		metrics.SkipsTotal.Inc()
	default:
		metrics.FailuresTotal.Inc()
	}
}
