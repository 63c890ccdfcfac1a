// Package transport declares what the playback controller needs from a voice
// backend. internal/music/stream implements it on top of discordgo.
package transport

import (
	"context"
	"io"
)

// AudioStream yields signed 16-bit little-endian PCM, 48 kHz stereo.
type AudioStream interface {
	io.ReadCloser
}

type Transport interface {
	// OpenSession joins a voice channel and waits until it is ready.
	OpenSession(ctx context.Context, guildID, channelID string) (Session, error)
	// OpenAudioStream starts decoding uri.
	OpenAudioStream(ctx context.Context, uri string) (AudioStream, error)
}

// Session is a live voice connection owned by exactly one queue.
type Session interface {
	ID() string
	GuildID() string
	ChannelID() string
	// Player returns the session's player, creating it on first use.
	Player() AudioPlayer
	Close() error
}

// Playback identifies one Play call on a player. Zero is never issued.
type Playback uint64

type AudioPlayer interface {
	// Play replaces whatever is playing with stream. The replaced stream
	// reports nothing.
	Play(stream AudioStream) (Playback, error)
	Pause() bool
	Resume() bool
	// Stop ends the current stream; the player then reports finished.
	Stop() bool
	// SetVolume takes a 0..100 level.
	SetVolume(volume int)
	Subscribe(l Listener)
}

// Listener receives player events on the player's own goroutine, tagged with
// the playback they belong to.
type Listener interface {
	OnFinished(pb Playback)
	OnError(pb Playback, err error)
}
