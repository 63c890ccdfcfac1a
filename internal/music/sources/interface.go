package sources

import (
	"context"
	"time"
)

type VideoInfo struct {
	ID        string
	Title     string
	Duration  time.Duration
	Thumbnail string
}

type SearchHit struct {
	VideoID   string
	Title     string
	Thumbnail string
}

type PlaylistInfo struct {
	ID        string
	Title     string
	ItemCount int
}

type PlaylistItem struct {
	VideoID   string
	Title     string
	Thumbnail string
}

// VideoInfoProvider looks up a single video by id.
type VideoInfoProvider interface {
	VideoInfo(ctx context.Context, id string) (*VideoInfo, error)
}

// DurationProvider looks up durations in bulk. Unknown ids are omitted.
type DurationProvider interface {
	Durations(ctx context.Context, ids []string) (map[string]time.Duration, error)
}

type SearchProvider interface {
	DurationProvider
	// SearchFirst returns the best music-category match for query.
	SearchFirst(ctx context.Context, query string) (*SearchHit, error)
}

type PlaylistProvider interface {
	DurationProvider
	PlaylistInfo(ctx context.Context, id string) (*PlaylistInfo, error)
	PlaylistItems(ctx context.Context, id string, limit int) ([]PlaylistItem, error)
}
