// Package source_resolver turns user input into playable tracks.
package source_resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/internal/music/sources/youtube"
	"github.com/keshon/jukebox/pkg/retrylimit"
)

const (
	defaultMaxAttempts    = 3
	defaultBaseDelay      = time.Second
	defaultAttemptTimeout = 15 * time.Second
	defaultPlaylistLimit  = 50
)

var skippedPlaylistTitles = map[string]struct{}{
	"Private video": {},
	"Deleted video": {},
}

type Options struct {
	MaxAttempts int
	// BaseDelay is scaled by 2^attempt between video lookups (2s, 4s by default).
	BaseDelay      time.Duration
	AttemptTimeout time.Duration
	PlaylistLimit  int
	// Limiter throttles video lookups; nil disables throttling.
	Limiter *retrylimit.AdaptiveLimiter
	Logger  zerolog.Logger
}

// DefaultOptions mirrors the provider's retry policy.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:    defaultMaxAttempts,
		BaseDelay:      defaultBaseDelay,
		AttemptTimeout: defaultAttemptTimeout,
		PlaylistLimit:  defaultPlaylistLimit,
		Logger:         zerolog.Nop(),
	}
}

type Resolver struct {
	videos    sources.VideoInfoProvider
	search    sources.SearchProvider
	playlists sources.PlaylistProvider
	opts      Options
	log       zerolog.Logger
}

// Playlist is a resolved playlist with its surviving tracks.
type Playlist struct {
	Info   sources.PlaylistOrigin
	Tracks []sources.Track
}

// Result is what the command layer enqueues.
type Result struct {
	Kind     sources.Kind
	Tracks   []sources.Track
	Playlist *sources.PlaylistOrigin
}

func New(videos sources.VideoInfoProvider, search sources.SearchProvider, playlists sources.PlaylistProvider, opts Options) *Resolver {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BaseDelay < 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = defaultAttemptTimeout
	}
	if opts.PlaylistLimit <= 0 || opts.PlaylistLimit > defaultPlaylistLimit {
		opts.PlaylistLimit = defaultPlaylistLimit
	}
	return &Resolver{
		videos:    videos,
		search:    search,
		playlists: playlists,
		opts:      opts,
		log:       opts.Logger.With().Str("component", "resolver").Logger(),
	}
}

// Resolve classifies input, dispatches it and stamps every track with the
// requester.
func (r *Resolver) Resolve(ctx context.Context, raw, requestedBy string) (*Result, error) {
	in := Classify(raw)
	res := &Result{Kind: in.Kind}

	switch in.Kind {
	case sources.KindPlaylist:
		pl, err := r.ResolvePlaylist(ctx, in.ID)
		if err != nil {
			return nil, err
		}
		info := pl.Info
		res.Playlist = &info
		res.Tracks = pl.Tracks
	case sources.KindVideo:
		t, err := r.ResolveVideo(ctx, in.ID)
		if err != nil {
			return nil, err
		}
		res.Tracks = []sources.Track{*t}
	default:
		t, err := r.ResolveSearch(ctx, in.Query)
		if err != nil {
			return nil, err
		}
		res.Tracks = []sources.Track{*t}
	}

	for i := range res.Tracks {
		res.Tracks[i] = res.Tracks[i].WithRequester(requestedBy)
	}
	return res, nil
}

// ResolveVideo looks a video up with bounded retries. Permanent provider
// errors end the loop on the spot. Every failure is reported as
// sources.ErrNotFound.
func (r *Resolver) ResolveVideo(ctx context.Context, id string) (*sources.Track, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: %w", sources.ErrNotFound, sources.ErrInvalidURL)
	}

	var (
		mu   sync.Mutex
		info *sources.VideoInfo
	)

	cfg := retrylimit.RetryConfig{
		MaxAttempts:    r.opts.MaxAttempts,
		InitialDelay:   2 * r.opts.BaseDelay,
		Multiplier:     2,
		AttemptTimeout: r.opts.AttemptTimeout,
		OnRetry: func(attempt int, err error) {
			r.log.Warn().Err(err).Str("video_id", id).Int("attempt", attempt).Int("max_attempts", r.opts.MaxAttempts).Msg("video lookup failed")
		},
		Logger: &r.log,
	}

	err := retrylimit.WithRetryConfig(ctx, func(ctx context.Context) error {
		v, err := r.videos.VideoInfo(ctx, id)
		if err != nil {
			if errors.Is(err, sources.ErrUnavailable) || errors.Is(err, sources.ErrInvalidURL) {
				return retrylimit.Fatal(err)
			}
			return err
		}
		mu.Lock()
		info = v
		mu.Unlock()
		return nil
	}, r.opts.Limiter, cfg)

	mu.Lock()
	defer mu.Unlock()
	if err != nil || info == nil {
		if retrylimit.IsFatal(err) {
			r.log.Info().Str("video_id", id).Msg("video is unavailable, not retrying")
		} else {
			r.log.Error().Err(err).Str("video_id", id).Msg("video lookup gave up")
		}
		return nil, fmt.Errorf("%w: video %s: %w", sources.ErrNotFound, id, err)
	}

	title := info.Title
	if title == "" {
		title = "Unknown Title"
	}
	return &sources.Track{
		Title:     title,
		URL:       youtube.WatchURL(id),
		Duration:  info.Duration.Truncate(time.Second),
		Thumbnail: info.Thumbnail,
	}, nil
}

// ResolveSearch makes a single search call followed by a duration lookup.
func (r *Resolver) ResolveSearch(ctx context.Context, query string) (*sources.Track, error) {
	if r.search == nil || query == "" {
		return nil, sources.ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.AttemptTimeout)
	defer cancel()

	hit, err := r.search.SearchFirst(ctx, query)
	if err != nil {
		if errors.Is(err, sources.ErrNotConfigured) {
			r.log.Warn().Msg("search requested but the Data API key is not configured")
		} else {
			r.log.Error().Err(err).Str("query", query).Msg("search failed")
		}
		return nil, fmt.Errorf("%w: search %q: %w", sources.ErrNotFound, query, err)
	}

	durations, err := r.search.Durations(ctx, []string{hit.VideoID})
	if err != nil {
		r.log.Error().Err(err).Str("video_id", hit.VideoID).Msg("duration lookup failed")
		return nil, fmt.Errorf("%w: search %q: %w", sources.ErrNotFound, query, err)
	}

	title := hit.Title
	if title == "" {
		title = "Unknown Title"
	}
	return &sources.Track{
		Title:     title,
		URL:       youtube.WatchURL(hit.VideoID),
		Duration:  durations[hit.VideoID],
		Thumbnail: hit.Thumbnail,
	}, nil
}

// ResolvePlaylist loads up to PlaylistLimit items, drops private and deleted
// entries and fills durations in one bulk lookup.
func (r *Resolver) ResolvePlaylist(ctx context.Context, id string) (*Playlist, error) {
	if r.playlists == nil || id == "" {
		return nil, sources.ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.AttemptTimeout)
	defer cancel()

	meta, err := r.playlists.PlaylistInfo(ctx, id)
	if err != nil {
		r.log.Error().Err(err).Str("playlist_id", id).Msg("playlist metadata lookup failed")
		return nil, fmt.Errorf("%w: playlist %s: %w", sources.ErrNotFound, id, err)
	}

	items, err := r.playlists.PlaylistItems(ctx, id, r.opts.PlaylistLimit)
	if err != nil {
		r.log.Error().Err(err).Str("playlist_id", id).Msg("playlist items lookup failed")
		return nil, fmt.Errorf("%w: playlist %s: %w", sources.ErrNotFound, id, err)
	}
	if len(items) > r.opts.PlaylistLimit {
		items = items[:r.opts.PlaylistLimit]
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.VideoID != "" {
			ids = append(ids, it.VideoID)
		}
	}

	durations := map[string]time.Duration{}
	if len(ids) > 0 {
		durations, err = r.playlists.Durations(ctx, ids)
		if err != nil {
			r.log.Error().Err(err).Str("playlist_id", id).Msg("playlist duration lookup failed")
			return nil, fmt.Errorf("%w: playlist %s: %w", sources.ErrNotFound, id, err)
		}
	}

	name := meta.Title
	if name == "" {
		name = "Unknown Playlist"
	}
	origin := sources.PlaylistOrigin{
		Name:       name,
		URL:        youtube.PlaylistURL(id),
		TotalCount: len(items),
	}

	tracks := make([]sources.Track, 0, len(items))
	for _, it := range items {
		if it.VideoID == "" {
			continue
		}
		if _, skip := skippedPlaylistTitles[it.Title]; skip {
			continue
		}
		o := origin
		tracks = append(tracks, sources.Track{
			Title:     it.Title,
			URL:       youtube.WatchURL(it.VideoID),
			Duration:  durations[it.VideoID],
			Thumbnail: it.Thumbnail,
			Playlist:  &o,
		})
	}

	if len(tracks) == 0 {
		r.log.Warn().Str("playlist_id", id).Msg("playlist has no playable items")
		return nil, fmt.Errorf("%w: playlist %s is empty", sources.ErrNotFound, id)
	}

	r.log.Info().Str("playlist", name).Int("tracks", len(tracks)).Msg("loaded playlist")
	return &Playlist{Info: origin, Tracks: tracks}, nil
}
