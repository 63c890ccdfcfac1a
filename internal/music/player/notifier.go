package player

import "github.com/keshon/jukebox/internal/music/sources"

// Notifier reports playback progress to a guild's text channel. TrackFailed
// is called after the failed track left the queue.
type Notifier interface {
	NowPlaying(guildID, channelID string, t sources.Track)
	TrackFailed(guildID, channelID string, t sources.Track, err error)
	QueueEnded(guildID, channelID string)
}

// Recorder remembers tracks that started playing.
type Recorder interface {
	RecordPlayed(guildID string, t sources.Track)
}

type nopNotifier struct{}

func (nopNotifier) NowPlaying(string, string, sources.Track)         {}
func (nopNotifier) TrackFailed(string, string, sources.Track, error) {}
func (nopNotifier) QueueEnded(string, string)                        {}
