package domain

import "context"

// Metadata is the result of a metadata-only probe: enough to decide whether
// a download is worth doing, without doing it.
type Metadata struct {
	ID    string // provider's native id
	Title string
}

// Retriever resolves external video URLs into downloadable media.
type Retriever interface {
	// Probe extracts the native id and title without downloading.
	Probe(ctx context.Context, url string) (*Metadata, error)

	// Download fetches the media behind url into destDir.
	Download(ctx context.Context, url, destDir string) error
}
