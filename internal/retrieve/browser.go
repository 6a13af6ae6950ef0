package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fetchbot/internal/domain"

	"github.com/chromedp/chromedp"
)

const browserProbeTimeout = 60 * time.Second

// BrowserProbe extracts OpenGraph metadata with headless Chrome. Used as a
// fallback for pages yt-dlp cannot inspect without a logged-in session.
type BrowserProbe struct {
	profileDir string
	logger     *slog.Logger
}

type BrowserProbeConfig struct {
	ProfileDir string // Chrome user data directory (persists cookies/sessions)
	Logger     *slog.Logger
}

func NewBrowserProbe(cfg BrowserProbeConfig) *BrowserProbe {
	if cfg.ProfileDir == "" {
		home, _ := os.UserHomeDir()
		cfg.ProfileDir = filepath.Join(home, ".fetchbot", "chrome-profile")
	}
	return &BrowserProbe{
		profileDir: cfg.ProfileDir,
		logger:     cfg.Logger,
	}
}

// Probe loads the page headless and reads og:title and og:url meta tags.
// The native id is the last path segment of the canonical URL.
func (b *BrowserProbe) Probe(ctx context.Context, pageURL string) (*domain.Metadata, error) {
	if err := os.MkdirAll(b.profileDir, 0o755); err != nil {
		b.logger.Error("failed to create profile dir", "dir", b.profileDir, "err", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(b.profileDir),
		chromedp.Headless,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	taskCtx, timeoutCancel := context.WithTimeout(taskCtx, browserProbeTimeout)
	defer timeoutCancel()

	var title, canonical string
	var okTitle, okURL bool
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(pageURL),
		chromedp.AttributeValue(`meta[property="og:title"]`, "content", &title, &okTitle, chromedp.ByQuery),
		chromedp.AttributeValue(`meta[property="og:url"]`, "content", &canonical, &okURL, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("browser probe %s: %w", pageURL, err)
	}

	if !okURL || canonical == "" {
		canonical = pageURL
	}
	id := lastPathSegment(canonical)
	if id == "" {
		return nil, fmt.Errorf("browser probe %s: no usable canonical URL", pageURL)
	}
	if !okTitle || title == "" {
		title = id
	}

	b.logger.Debug("browser probe succeeded", "url", pageURL, "id", id)
	return &domain.Metadata{ID: id, Title: title}, nil
}

func lastPathSegment(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return ""
	}
	parts := strings.Split(path, "/")
	return parts[len(parts)-1]
}
