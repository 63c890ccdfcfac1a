package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/internal/music/transport"
)

type fakeStream struct {
	url    string
	closed atomic.Bool
}

func (s *fakeStream) Read(p []byte) (int, error) { return 0, errors.New("not readable") }
func (s *fakeStream) Close() error               { s.closed.Store(true); return nil }

type fakePlayer struct {
	mu            sync.Mutex
	listeners     []transport.Listener
	gen           transport.Playback
	current       *fakeStream
	paused        bool
	volume        int
	played        []string
	subscriptions int
}

func (p *fakePlayer) Play(s transport.AudioStream) (transport.Playback, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fs := s.(*fakeStream)
	p.gen++
	p.current = fs
	p.paused = false
	p.played = append(p.played, fs.url)
	return p.gen, nil
}

// Playback is the run the next end will report.
func (p *fakePlayer) Playback() transport.Playback {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

func (p *fakePlayer) Pause() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || p.paused {
		return false
	}
	p.paused = true
	return true
}

func (p *fakePlayer) Resume() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || !p.paused {
		return false
	}
	p.paused = false
	return true
}

func (p *fakePlayer) Stop() bool {
	return p.end(nil)
}

// end finishes the current stream and reports it on a separate goroutine,
// the way a real player's dispatcher does.
func (p *fakePlayer) end(err error) bool {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return false
	}
	p.current = nil
	pb := p.gen
	ls := append([]transport.Listener(nil), p.listeners...)
	p.mu.Unlock()

	go func() {
		for _, l := range ls {
			if err != nil {
				l.OnError(pb, err)
			} else {
				l.OnFinished(pb)
			}
		}
	}()
	return true
}

func (p *fakePlayer) SetVolume(v int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = v
}

func (p *fakePlayer) Subscribe(l transport.Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
	p.subscriptions++
}

func (p *fakePlayer) Played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...)
}

func (p *fakePlayer) Subscriptions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subscriptions
}

type fakeSession struct {
	id        string
	guildID   string
	channelID string
	closed    atomic.Bool

	once   sync.Once
	player *fakePlayer
}

func (s *fakeSession) ID() string        { return s.id }
func (s *fakeSession) GuildID() string   { return s.guildID }
func (s *fakeSession) ChannelID() string { return s.channelID }
func (s *fakeSession) Close() error      { s.closed.Store(true); return nil }

func (s *fakeSession) Player() transport.AudioPlayer {
	s.once.Do(func() { s.player = &fakePlayer{} })
	return s.player
}

type fakeTransport struct {
	mu       sync.Mutex
	sessions []*fakeSession
	failing  map[string]bool
	joinErr  error
	// gates hold OpenAudioStream for a URL until closed; opening reports
	// the URL once the call is waiting.
	gates   map[string]chan struct{}
	opening chan string
}

func newFakeTransport(failing ...string) *fakeTransport {
	f := &fakeTransport{failing: map[string]bool{}}
	for _, u := range failing {
		f.failing[u] = true
	}
	return f
}

func (f *fakeTransport) OpenSession(ctx context.Context, guildID, channelID string) (transport.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joinErr != nil {
		return nil, f.joinErr
	}
	s := &fakeSession{id: fmt.Sprintf("session-%d", len(f.sessions)+1), guildID: guildID, channelID: channelID}
	f.sessions = append(f.sessions, s)
	return s, nil
}

// gate makes the next OpenAudioStream for uri wait for release.
func (f *fakeTransport) gate(uri string) (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gates == nil {
		f.gates = map[string]chan struct{}{}
	}
	ch := make(chan struct{})
	f.gates[uri] = ch
	f.opening = make(chan string, 1)
	return func() { close(ch) }
}

func (f *fakeTransport) OpenAudioStream(ctx context.Context, uri string) (transport.AudioStream, error) {
	f.mu.Lock()
	gate, opening := f.gates[uri], f.opening
	delete(f.gates, uri)
	f.mu.Unlock()
	if gate != nil {
		opening <- uri
		<-gate
	}

	if f.failing[uri] {
		return nil, errors.New("stream refused")
	}
	return &fakeStream{url: uri}, nil
}

func (f *fakeTransport) session(i int) *fakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[i]
}

type recordingNotifier struct {
	mu      sync.Mutex
	playing []string
	failed  []string
	ended   int
}

func (n *recordingNotifier) NowPlaying(guildID, channelID string, t sources.Track) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.playing = append(n.playing, t.Title)
}

func (n *recordingNotifier) TrackFailed(guildID, channelID string, t sources.Track, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, t.Title)
}

func (n *recordingNotifier) QueueEnded(guildID, channelID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ended++
}

func (n *recordingNotifier) snapshot() (playing, failed []string, ended int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.playing...), append([]string(nil), n.failed...), n.ended
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func track(name string) sources.Track {
	return sources.Track{Title: name, URL: "https://www.youtube.com/watch?v=" + name, Duration: time.Minute}
}
