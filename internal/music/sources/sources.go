// Package sources holds the track model and the provider contracts the
// resolver talks to.
package sources

import (
	"errors"
	"time"
)

type Kind string

const (
	KindVideo    Kind = "video"
	KindPlaylist Kind = "playlist"
	KindSearch   Kind = "search"
)

var (
	// ErrNotFound is the only failure the resolver reports to its callers.
	ErrNotFound = errors.New("no playable media found")
	// ErrUnavailable marks permanent provider failures (private, removed).
	ErrUnavailable = errors.New("media is unavailable")
	// ErrNotConfigured is returned by providers lacking credentials.
	ErrNotConfigured = errors.New("provider is not configured")
	ErrInvalidURL    = errors.New("invalid media URL")
)

// PlaylistOrigin is attached to every track that came from a playlist.
type PlaylistOrigin struct {
	Name       string
	URL        string
	TotalCount int
}

// Track is a resolved, playable item. Treat it as immutable once built.
type Track struct {
	Title       string
	URL         string
	Duration    time.Duration // whole seconds
	Thumbnail   string
	RequestedBy string
	Playlist    *PlaylistOrigin
}

// Playable reports whether the URL can be handed to the transport.
func (t *Track) Playable() bool {
	return t != nil && t.URL != "" && t.URL != "undefined"
}

// WithRequester returns a copy stamped with the requesting user.
func (t Track) WithRequester(user string) Track {
	t.RequestedBy = user
	return t
}
