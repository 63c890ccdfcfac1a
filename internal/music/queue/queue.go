// Package queue is the in-memory, per-guild playback queue store.
package queue

import (
	"sync"

	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/internal/music/transport"
)

const DefaultVolume = 50

// Binding is where a queue reads commands from and plays into.
type Binding struct {
	TextChannelID  string
	VoiceChannelID string
	Volume         int
}

// Queue is one guild's playback state. All methods are safe for concurrent
// use.
type Queue struct {
	mu sync.Mutex

	guildID string
	tracks  []sources.Track
	current *sources.Track
	playing bool

	session transport.Session
	player  transport.AudioPlayer

	textChannelID  string
	voiceChannelID string
	volume         int
}

func newQueue(guildID string, b Binding) *Queue {
	volume := b.Volume
	if volume < 0 || volume > 100 {
		volume = DefaultVolume
	}
	return &Queue{
		guildID:        guildID,
		textChannelID:  b.TextChannelID,
		voiceChannelID: b.VoiceChannelID,
		volume:         volume,
	}
}

func (q *Queue) GuildID() string { return q.guildID }

func (q *Queue) TextChannelID() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.textChannelID
}

func (q *Queue) SetTextChannelID(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.textChannelID = id
}

func (q *Queue) VoiceChannelID() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.voiceChannelID
}

func (q *Queue) Session() transport.Session {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.session
}

// AttachSession binds s to the queue. It reports false if a session is
// already attached.
func (q *Queue) AttachSession(s transport.Session) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.session != nil {
		return false
	}
	q.session = s
	return true
}

// DetachSession clears and returns the session and its player.
func (q *Queue) DetachSession() transport.Session {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.session
	q.session = nil
	q.player = nil
	q.playing = false
	q.current = nil
	return s
}

func (q *Queue) Player() transport.AudioPlayer {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.player
}

// SetPlayer records the player the controller subscribed to. It reports
// false if that player is already recorded.
func (q *Queue) SetPlayer(p transport.AudioPlayer) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.player == p {
		return false
	}
	q.player = p
	return true
}

func (q *Queue) Volume() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.volume
}

func (q *Queue) SetVolume(v int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.volume = max(0, min(100, v))
}

func (q *Queue) Playing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing
}

// MarkPlaying sets the playing flag and pins current to the head. It
// reports false when the head no longer matches t.
func (q *Queue) MarkPlaying(t sources.Track) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tracks) == 0 || q.tracks[0] != t {
		return false
	}
	head := q.tracks[0]
	q.current = &head
	q.playing = true
	return true
}

func (q *Queue) SetPlaying(playing bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.playing = playing
}

// Current is the track last marked playing; nil before the first start.
func (q *Queue) Current() *sources.Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return nil
	}
	c := *q.current
	return &c
}

func (q *Queue) enqueue(tracks ...sources.Track) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tracks = append(q.tracks, tracks...)
	return len(q.tracks)
}

// clearKeepingCurrent keeps the head only while it is the current track.
func (q *Queue) clearKeepingCurrent() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current != nil && len(q.tracks) > 0 && q.tracks[0] == *q.current {
		q.tracks = q.tracks[:1:1]
		return
	}
	q.tracks = nil
}

func (q *Queue) advance() *sources.Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tracks) == 0 {
		return nil
	}
	head := q.tracks[0]
	q.tracks[0] = sources.Track{}
	q.tracks = q.tracks[1:]
	// the head is gone, so nothing is playing until the next start
	q.playing = false
	return &head
}

func (q *Queue) head() *sources.Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tracks) == 0 {
		return nil
	}
	h := q.tracks[0]
	return &h
}

func (q *Queue) length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tracks)
}

func (q *Queue) upcoming(limit int) []sources.Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tracks) <= 1 || limit <= 0 {
		return nil
	}
	end := min(len(q.tracks), limit+1)
	out := make([]sources.Track, end-1)
	copy(out, q.tracks[1:end])
	return out
}

// Snapshot is a consistent, detached view of a queue for rendering.
type Snapshot struct {
	GuildID        string
	Tracks         []sources.Track
	Current        *sources.Track
	Playing        bool
	Volume         int
	TextChannelID  string
	VoiceChannelID string
	SessionID      string
}

func (q *Queue) snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := Snapshot{
		GuildID:        q.guildID,
		Tracks:         append([]sources.Track(nil), q.tracks...),
		Playing:        q.playing,
		Volume:         q.volume,
		TextChannelID:  q.textChannelID,
		VoiceChannelID: q.voiceChannelID,
	}
	if q.current != nil {
		c := *q.current
		s.Current = &c
	}
	if q.session != nil {
		s.SessionID = q.session.ID()
	}
	return s
}
