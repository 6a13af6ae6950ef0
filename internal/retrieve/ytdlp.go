// Package retrieve resolves external video URLs into metadata and media
// files. The heavy lifting is delegated to the yt-dlp binary; a headless
// browser probe covers pages yt-dlp cannot inspect.
package retrieve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"fetchbot/internal/domain"
)

const (
	defaultProbeTimeout    = 60 * time.Second
	defaultDownloadTimeout = 900 * time.Second
	maxErrOutputBytes      = 2048
)

// Ytdlp drives the yt-dlp binary for metadata probes and downloads.
type Ytdlp struct {
	binPath   string
	rateLimit string
	timeout   time.Duration
	logger    *slog.Logger
}

type YtdlpConfig struct {
	BinPath   string // binary name or absolute path (default "yt-dlp")
	RateLimit string // e.g. "500K"; empty disables throttling
	Timeout   time.Duration
	Logger    *slog.Logger
}

func NewYtdlp(cfg YtdlpConfig) *Ytdlp {
	if cfg.BinPath == "" {
		cfg.BinPath = "yt-dlp"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultDownloadTimeout
	}
	return &Ytdlp{
		binPath:   cfg.BinPath,
		rateLimit: cfg.RateLimit,
		timeout:   cfg.Timeout,
		logger:    cfg.Logger,
	}
}

// probeOutput is the slice of yt-dlp's JSON dump the probe needs.
type probeOutput struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Probe runs yt-dlp in metadata-only mode and returns the provider's native
// id and title without downloading anything.
func (y *Ytdlp) Probe(ctx context.Context, url string) (*domain.Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, y.binPath,
		"--dump-single-json", "--no-download", "--no-playlist", url)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("yt-dlp probe: %w", execDetail(err))
	}

	meta, err := parseProbeOutput(out)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp probe output: %w", err)
	}

	y.logger.Debug("probed metadata", "url", url, "id", meta.ID, "title", meta.Title)
	return meta, nil
}

func parseProbeOutput(out []byte) (*domain.Metadata, error) {
	var p probeOutput
	if err := json.Unmarshal(out, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, fmt.Errorf("no id in metadata dump")
	}
	if p.Title == "" {
		p.Title = p.ID
	}
	return &domain.Metadata{ID: p.ID, Title: p.Title}, nil
}

// Download fetches the media behind url into destDir, merging streams to mp4.
func (y *Ytdlp) Download(ctx context.Context, url, destDir string) error {
	ctx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()

	args := y.downloadArgs(url, destDir)
	cmd := exec.CommandContext(ctx, y.binPath, args...)

	start := time.Now()
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("yt-dlp download timed out or cancelled")
		}
		return fmt.Errorf("yt-dlp download: %s", tail(out, maxErrOutputBytes))
	}

	y.logger.Info("download finished", "url", url, "elapsed", time.Since(start))
	return nil
}

func (y *Ytdlp) downloadArgs(url, destDir string) []string {
	args := []string{
		"-f", "bestvideo+bestaudio/best",
		"--merge-output-format", "mp4",
		"--no-playlist",
		"-o", filepath.Join(destDir, "%(title)s.%(ext)s"),
	}
	if y.rateLimit != "" {
		args = append(args, "--limit-rate", y.rateLimit)
	}
	return append(args, url)
}

// execDetail surfaces stderr from a failed exec, which yt-dlp uses for its
// actual error message.
func execDetail(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return fmt.Errorf("%s", tail(exitErr.Stderr, maxErrOutputBytes))
	}
	return err
}

func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		s = "..." + s[len(s)-n:]
	}
	return s
}
