// Package fetch drives the dedup-check → retrieve → record sequence for each
// classified request and reports a uniform Outcome. All failures are absorbed
// here; nothing escapes to the message loop.
package fetch

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"fetchbot/internal/classify"
	"fetchbot/internal/domain"
)

// Orchestrator turns a classified request into at most one fetch-and-record
// operation.
type Orchestrator struct {
	store       domain.IdentityStore
	engine      domain.Retriever
	chat        domain.ChatClient
	downloadDir string
	logger      *slog.Logger
}

type OrchestratorConfig struct {
	Store       domain.IdentityStore
	Engine      domain.Retriever
	Chat        domain.ChatClient
	DownloadDir string
	Logger      *slog.Logger
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		store:       cfg.Store,
		engine:      cfg.Engine,
		chat:        cfg.Chat,
		downloadDir: cfg.DownloadDir,
		logger:      cfg.Logger,
	}
}

// Handle dispatches a classified request to its kind-specific path.
// Unrecognized and command requests are not fetchable and must not reach it.
func (o *Orchestrator) Handle(ctx context.Context, req classify.Request) Outcome {
	switch req.Kind {
	case classify.KindExternalURL:
		return o.handleExternalURL(ctx, req.URL, req.Platform)
	case classify.KindForwardedMedia:
		return o.handleForwardedMedia(ctx, req.Message)
	case classify.KindDeepLink:
		return o.handleDeepLink(ctx, req.Link)
	default:
		return failedf("request kind %s is not fetchable", req.Kind)
	}
}

// handleExternalURL probes metadata first so the identity is known before
// committing to the expensive download.
func (o *Orchestrator) handleExternalURL(ctx context.Context, url string, platform domain.Platform) Outcome {
	meta, err := o.engine.Probe(ctx, url)
	if err != nil {
		return failedf("metadata probe: %s", err)
	}

	exists, err := o.store.Exists(ctx, meta.ID)
	if err != nil {
		return failedf("dedup check: %s", err)
	}
	if exists {
		o.logger.Info("skipping known video", "identity", meta.ID, "platform", platform)
		return skippedDuplicate(meta.Title)
	}

	if err := o.engine.Download(ctx, url, o.downloadDir); err != nil {
		// No record is written: a later message with the same URL may retry.
		return failedf("%s", err)
	}

	return o.record(ctx, domain.VideoRecord{
		Identity: meta.ID,
		Platform: platform,
		Title:    meta.Title,
	})
}

// handleForwardedMedia uses the attachment's stable file id as identity and
// title; no metadata probe is needed.
func (o *Orchestrator) handleForwardedMedia(ctx context.Context, msg domain.InboundMessage) Outcome {
	if msg.Media == nil {
		return failedf("message carries no media")
	}

	identity := msg.Media.FileUniqueID
	title := identity

	exists, err := o.store.Exists(ctx, identity)
	if err != nil {
		return failedf("dedup check: %s", err)
	}
	if exists {
		o.logger.Info("skipping known attachment", "identity", identity)
		return skippedDuplicate(title)
	}

	destPath := filepath.Join(o.downloadDir, title+mediaExt(msg.Media.MimeType))
	if _, err := o.chat.DownloadFile(ctx, msg.Media.FileID, destPath); err != nil {
		return failedf("%s", err)
	}

	return o.record(ctx, domain.VideoRecord{
		Identity: identity,
		Platform: domain.PlatformTelegram,
		Title:    title,
	})
}

// handleDeepLink fetches the referenced message from its chat, then downloads
// its media when present.
//
// TODO: dedup-check against the fetched attachment's file id before the
// download, the way the forwarded path does.
func (o *Orchestrator) handleDeepLink(ctx context.Context, link classify.DeepLink) Outcome {
	msg, err := o.chat.FetchMessage(ctx, link.Chat, link.MessageID)
	if err != nil {
		return failedf("fetch %s/%d: %s", link.Chat, link.MessageID, err)
	}
	if msg == nil || msg.Media == nil {
		return failedf("message %s/%d carries no media", link.Chat, link.MessageID)
	}

	title := msg.Media.FileUniqueID
	destPath := filepath.Join(o.downloadDir, title+mediaExt(msg.Media.MimeType))
	if _, err := o.chat.DownloadFile(ctx, msg.Media.FileID, destPath); err != nil {
		return failedf("%s", err)
	}

	return completed(title)
}

// record persists the fetch. A duplicate-key failure means another fetch of
// the same identity won a concurrent race: the download was redundant but
// succeeded, so it surfaces as skipped, not as an error.
func (o *Orchestrator) record(ctx context.Context, rec domain.VideoRecord) Outcome {
	if err := o.store.Record(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrDuplicateIdentity) {
			o.logger.Info("lost record race, treating as duplicate", "identity", rec.Identity)
			return skippedDuplicate(rec.Title)
		}
		return failedf("record %s: %s", rec.Identity, err)
	}

	o.logger.Info("recorded video",
		"identity", rec.Identity,
		"platform", rec.Platform,
		"title", rec.Title,
	)
	return completed(rec.Title)
}

// mediaExt maps a mime type to a file extension, e.g. video/mp4 → .mp4.
func mediaExt(mimeType string) string {
	if i := strings.LastIndex(mimeType, "/"); i >= 0 && i < len(mimeType)-1 {
		return "." + mimeType[i+1:]
	}
	return ".bin"
}
