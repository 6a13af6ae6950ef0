package domain

import (
	"context"
	"errors"
	"time"
)

// Platform is the namespace a resource identity belongs to.
type Platform string

const (
	PlatformYouTube   Platform = "YouTube"
	PlatformInstagram Platform = "Instagram"
	PlatformTelegram  Platform = "Telegram"
)

// ErrDuplicateIdentity is returned by IdentityStore.Record when the identity
// is already persisted. It signals a lost race with another successful fetch,
// not a failure.
var ErrDuplicateIdentity = errors.New("identity already recorded")

// VideoRecord is the persisted proof that a resource was fetched once.
// Records are append-only: there is no update or delete path.
type VideoRecord struct {
	Identity  string // primary key, unique per platform namespace
	Platform  Platform
	Title     string
	CreatedAt time.Time
}

// IdentityStore is the single source of truth for dedup state.
// Exists and Record must be safe to call concurrently; the backing
// primary-key constraint is the only race guard.
type IdentityStore interface {
	Exists(ctx context.Context, identity string) (bool, error)
	Record(ctx context.Context, rec VideoRecord) error
	Count(ctx context.Context) (int64, error)
	Recent(ctx context.Context, limit int) ([]VideoRecord, error)
	Close() error
}
