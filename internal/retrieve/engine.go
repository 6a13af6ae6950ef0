package retrieve

import (
	"context"
	"log/slog"

	"fetchbot/internal/domain"
)

// Engine implements domain.Retriever: yt-dlp for probes and downloads, with
// an optional browser probe fallback when yt-dlp cannot read the page.
type Engine struct {
	ytdlp   *Ytdlp
	browser *BrowserProbe // nil when disabled
	logger  *slog.Logger
}

func NewEngine(ytdlp *Ytdlp, browser *BrowserProbe, logger *slog.Logger) *Engine {
	return &Engine{ytdlp: ytdlp, browser: browser, logger: logger}
}

func (e *Engine) Probe(ctx context.Context, url string) (*domain.Metadata, error) {
	meta, err := e.ytdlp.Probe(ctx, url)
	if err == nil {
		return meta, nil
	}
	if e.browser == nil {
		return nil, err
	}

	e.logger.Warn("yt-dlp probe failed, trying browser", "url", url, "err", err)
	return e.browser.Probe(ctx, url)
}

func (e *Engine) Download(ctx context.Context, url, destDir string) error {
	return e.ytdlp.Download(ctx, url, destDir)
}
