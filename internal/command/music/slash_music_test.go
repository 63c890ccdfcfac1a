package music

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/queue"
	"github.com/keshon/jukebox/internal/music/source_resolver"
	"github.com/keshon/jukebox/internal/music/sources"
)

type fakeController struct {
	store    *queue.Store
	bindings []queue.Binding
	calls    []string
	volumes  map[string]int
	refuse   bool
}

func newFakeController() *fakeController {
	return &fakeController{store: queue.NewStore(), volumes: map[string]int{}}
}

func (f *fakeController) Submit(_ context.Context, guildID string, b queue.Binding, tracks []sources.Track) (player.SubmitResult, error) {
	f.bindings = append(f.bindings, b)
	_, created := f.store.GetOrCreate(guildID, b)
	before := f.store.Len(guildID)
	f.store.Enqueue(guildID, tracks...)
	return player.SubmitResult{Created: created, FirstPosition: before + 1, LastPosition: before + len(tracks)}, nil
}

func (f *fakeController) record(call, guildID string) bool {
	f.calls = append(f.calls, call+":"+guildID)
	return !f.refuse
}

func (f *fakeController) Pause(guildID string) bool    { return f.record("pause", guildID) }
func (f *fakeController) Resume(guildID string) bool   { return f.record("resume", guildID) }
func (f *fakeController) Skip(guildID string) bool     { return f.record("skip", guildID) }
func (f *fakeController) Shutdown(guildID string) bool { return f.record("shutdown", guildID) }
func (f *fakeController) Store() *queue.Store          { return f.store }

func (f *fakeController) Clear(guildID string) (int, bool) {
	f.record("clear", guildID)
	before := f.store.Len(guildID)
	if !f.store.ClearKeepingCurrent(guildID) {
		return 0, false
	}
	return before - f.store.Len(guildID), true
}

func (f *fakeController) SetVolume(guildID string, v int) bool {
	f.volumes[guildID] = v
	return true
}

type fakeResolver struct {
	res         *source_resolver.Result
	err         error
	hadDeadline bool
}

func (r *fakeResolver) Resolve(ctx context.Context, raw, requestedBy string) (*source_resolver.Result, error) {
	_, r.hadDeadline = ctx.Deadline()
	if r.err != nil {
		return nil, r.err
	}
	out := *r.res
	out.Tracks = make([]sources.Track, len(r.res.Tracks))
	for i, t := range r.res.Tracks {
		out.Tracks[i] = t.WithRequester(requestedBy)
	}
	return &out, nil
}

type fakeVoice map[string]string

func (v fakeVoice) UserVoiceChannel(_, userID string) (string, error) {
	if ch, ok := v[userID]; ok {
		return ch, nil
	}
	return "", errors.New("user not in any voice channel")
}

type fakePrefs struct {
	volume map[string]int
}

func (p *fakePrefs) GetVolume(guildID string) (int, bool, error) {
	v, ok := p.volume[guildID]
	return v, ok, nil
}

func (p *fakePrefs) SetVolume(guildID string, v int) error {
	p.volume[guildID] = v
	return nil
}

func track(title string, d time.Duration) sources.Track {
	return sources.Track{Title: title, URL: "https://www.youtube.com/watch?v=" + title, Duration: d}
}

func newTestCommand() (*MusicCommand, *fakeController, *fakeResolver) {
	ctrl := newFakeController()
	res := &fakeResolver{res: &source_resolver.Result{Kind: sources.KindVideo, Tracks: []sources.Track{track("a", time.Minute)}}}
	c := &MusicCommand{
		Player:        ctrl,
		Resolver:      res,
		Voice:         fakeVoice{"u1": "voice-1", "u2": "voice-2"},
		Prefs:         &fakePrefs{volume: map[string]int{}},
		DefaultVolume: 50,
		Logger:        zerolog.Nop(),
	}
	return c, ctrl, res
}

func req(sub string) request {
	return request{guildID: "g1", textChannelID: "text-1", userID: "u1", userName: "alice", sub: sub}
}

// seed creates a queue in voice-1 with tracks, the first one playing.
func seed(ctrl *fakeController, tracks ...sources.Track) {
	q, _ := ctrl.store.GetOrCreate("g1", queue.Binding{TextChannelID: "text-1", VoiceChannelID: "voice-1", Volume: 50})
	ctrl.store.Enqueue("g1", tracks...)
	if len(tracks) > 0 {
		q.MarkPlaying(tracks[0])
	}
}

func TestPlay(t *testing.T) {
	t.Run("requires a voice channel", func(t *testing.T) {
		c, ctrl, _ := newTestCommand()
		r := req("play")
		r.query = "lofi"
		r.userID = "nobody"
		got := c.play(context.Background(), r)
		if !got.ephemeral || !strings.Contains(got.embed.Description, "voice channel") {
			t.Errorf("unexpected reply %+v", got.embed)
		}
		if len(ctrl.bindings) != 0 {
			t.Error("nothing should be submitted")
		}
	})

	t.Run("first track creates the queue without a position", func(t *testing.T) {
		c, ctrl, _ := newTestCommand()
		r := req("play")
		r.query = "https://youtu.be/a"
		got := c.play(context.Background(), r)
		if got.embed.Title != "✅ Added to Queue" {
			t.Fatalf("unexpected title %q", got.embed.Title)
		}
		if len(got.embed.Fields) != 1 {
			t.Errorf("expected only the duration field, got %d fields", len(got.embed.Fields))
		}
		b := ctrl.bindings[0]
		if b.VoiceChannelID != "voice-1" || b.TextChannelID != "text-1" || b.Volume != 50 {
			t.Errorf("unexpected binding %+v", b)
		}
		head := ctrl.store.PeekCurrent("g1")
		if head == nil || head.RequestedBy != "<@u1>" {
			t.Errorf("expected requester mention, got %+v", head)
		}
	})

	t.Run("reports the position when appending", func(t *testing.T) {
		c, ctrl, _ := newTestCommand()
		seed(ctrl, track("x", time.Minute))
		r := req("play")
		r.query = "https://youtu.be/a"
		got := c.play(context.Background(), r)
		last := got.embed.Fields[len(got.embed.Fields)-1]
		if last.Name != "Queue Position" || last.Value != "2" {
			t.Errorf("unexpected position field %+v", last)
		}
	})

	t.Run("playlist reports a range", func(t *testing.T) {
		c, ctrl, res := newTestCommand()
		seed(ctrl, track("x", time.Minute))
		res.res = &source_resolver.Result{
			Kind:     sources.KindPlaylist,
			Tracks:   []sources.Track{track("a", time.Minute), track("b", time.Minute)},
			Playlist: &sources.PlaylistOrigin{Name: "Mix", URL: "https://www.youtube.com/playlist?list=PL1", TotalCount: 2},
		}
		r := req("play")
		r.query = "https://www.youtube.com/playlist?list=PL1"
		got := c.play(context.Background(), r)
		if got.embed.Title != "📋 Playlist Added" || !strings.Contains(got.embed.Description, "Added 2 songs") {
			t.Errorf("unexpected embed %+v", got.embed)
		}
		if got.embed.Fields[0].Value != "2-3" {
			t.Errorf("expected range 2-3, got %q", got.embed.Fields[0].Value)
		}
	})

	t.Run("explains a missing api key", func(t *testing.T) {
		c, _, res := newTestCommand()
		res.err = fmt.Errorf("%w: %w", sources.ErrNotFound, sources.ErrNotConfigured)
		r := req("play")
		r.query = "lofi"
		got := c.play(context.Background(), r)
		if !strings.Contains(got.embed.Description, "API key") {
			t.Errorf("unexpected message %q", got.embed.Description)
		}
	})

	t.Run("leaves retry timing to the resolver", func(t *testing.T) {
		c, _, res := newTestCommand()
		r := req("play")
		r.query = "https://youtu.be/a"
		c.play(context.Background(), r)
		if res.hadDeadline {
			t.Error("play must not cut the resolver's retries short with its own deadline")
		}
	})

	t.Run("unavailable reads like not found", func(t *testing.T) {
		c, _, res := newTestCommand()
		r := req("play")
		r.query = "https://youtu.be/a"

		res.err = fmt.Errorf("%w: %w", sources.ErrNotFound, sources.ErrUnavailable)
		unavailable := c.play(context.Background(), r).embed.Description
		res.err = sources.ErrNotFound
		notFound := c.play(context.Background(), r).embed.Description

		if unavailable != notFound {
			t.Errorf("messages differ:\n%q\n%q", unavailable, notFound)
		}
	})

	t.Run("uses the stored volume preference", func(t *testing.T) {
		c, ctrl, _ := newTestCommand()
		c.Prefs.(*fakePrefs).volume["g1"] = 80
		r := req("play")
		r.query = "https://youtu.be/a"
		c.play(context.Background(), r)
		if ctrl.bindings[0].Volume != 80 {
			t.Errorf("expected volume 80, got %d", ctrl.bindings[0].Volume)
		}
	})
}

func TestControlCommands(t *testing.T) {
	t.Run("no queue", func(t *testing.T) {
		c, _, _ := newTestCommand()
		got := c.dispatch(req("skip"))
		if got.embed.Title != "📭 No Active Queue" {
			t.Errorf("unexpected title %q", got.embed.Title)
		}
	})

	t.Run("other voice channel is refused", func(t *testing.T) {
		c, ctrl, _ := newTestCommand()
		seed(ctrl, track("a", time.Minute))
		r := req("pause")
		r.userID = "u2"
		got := c.dispatch(r)
		if !got.ephemeral || !strings.Contains(got.embed.Description, "same voice channel") {
			t.Errorf("unexpected reply %+v", got.embed)
		}
		if len(ctrl.calls) != 0 {
			t.Errorf("controller must not be called, got %v", ctrl.calls)
		}
	})

	t.Run("pause needs playing", func(t *testing.T) {
		c, ctrl, _ := newTestCommand()
		seed(ctrl, track("a", time.Minute))
		if got := c.dispatch(req("pause")); got.embed.Title != "⏸️ Music Paused" {
			t.Errorf("unexpected title %q", got.embed.Title)
		}
		ctrl.store.Get("g1").SetPlaying(false)
		if got := c.dispatch(req("pause")); got.embed.Title != "⏸️ Already Paused" {
			t.Errorf("unexpected title %q", got.embed.Title)
		}
		if got := c.dispatch(req("resume")); got.embed.Title != "▶️ Music Resumed" {
			t.Errorf("unexpected title %q", got.embed.Title)
		}
	})

	t.Run("skip names the current track", func(t *testing.T) {
		c, ctrl, _ := newTestCommand()
		seed(ctrl, track("a", time.Minute), track("b", time.Minute))
		got := c.dispatch(req("skip"))
		if !strings.Contains(got.embed.Description, "**a**") {
			t.Errorf("unexpected description %q", got.embed.Description)
		}
		if ctrl.calls[0] != "skip:g1" {
			t.Errorf("unexpected calls %v", ctrl.calls)
		}
	})

	t.Run("stop shuts the guild down", func(t *testing.T) {
		c, ctrl, _ := newTestCommand()
		seed(ctrl, track("a", time.Minute), track("b", time.Minute), track("c", time.Minute))
		got := c.dispatch(req("stop"))
		if !strings.Contains(got.embed.Description, "cleared 3 songs") {
			t.Errorf("unexpected description %q", got.embed.Description)
		}
		if ctrl.calls[0] != "shutdown:g1" {
			t.Errorf("unexpected calls %v", ctrl.calls)
		}
	})

	t.Run("clear keeps the current track", func(t *testing.T) {
		c, ctrl, _ := newTestCommand()
		seed(ctrl, track("a", time.Minute), track("b", time.Minute), track("c", time.Minute))
		got := c.dispatch(req("clear"))
		if !strings.Contains(got.embed.Description, "cleared 2 songs") {
			t.Errorf("unexpected description %q", got.embed.Description)
		}
		if ctrl.store.Len("g1") != 1 {
			t.Errorf("expected only the current track left, got %d", ctrl.store.Len("g1"))
		}
		if ctrl.calls[0] != "clear:g1" {
			t.Errorf("clear must go through the controller, got %v", ctrl.calls)
		}
		if got := c.dispatch(req("clear")); got.embed.Title != "📭 Queue Already Empty" {
			t.Errorf("unexpected title %q", got.embed.Title)
		}
	})

	t.Run("volume applies and persists", func(t *testing.T) {
		c, ctrl, _ := newTestCommand()
		seed(ctrl, track("a", time.Minute))
		r := req("volume")
		r.volume = 30
		if got := c.dispatch(r); got.embed.Title != "🔊 Volume Set" {
			t.Fatalf("unexpected title %q", got.embed.Title)
		}
		if ctrl.volumes["g1"] != 30 {
			t.Errorf("expected controller volume 30, got %d", ctrl.volumes["g1"])
		}
		if c.Prefs.(*fakePrefs).volume["g1"] != 30 {
			t.Error("expected volume preference to be stored")
		}
	})
}

func TestQueueEmbed(t *testing.T) {
	c, ctrl, _ := newTestCommand()
	if got := c.dispatch(req("queue")); got.embed.Title != "📭 Queue Empty" {
		t.Errorf("unexpected title %q", got.embed.Title)
	}

	tracks := make([]sources.Track, 12)
	for i := range tracks {
		tracks[i] = track(fmt.Sprintf("t%d", i), 10*time.Minute)
	}
	seed(ctrl, tracks...)

	got := c.dispatch(req("queue"))
	fields := got.embed.Fields
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(fields))
	}
	if !strings.Contains(fields[0].Value, "t0") {
		t.Errorf("now playing should be t0, got %q", fields[0].Value)
	}
	if fields[1].Name != "📋 Up Next (10/11 shown)" {
		t.Errorf("unexpected upcoming header %q", fields[1].Name)
	}
	if !strings.Contains(fields[2].Value, "2:00:00") || !strings.Contains(fields[2].Value, "12") {
		t.Errorf("unexpected stats %q", fields[2].Value)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[time.Duration]string{
		0:                             "0:00",
		59 * time.Second:              "0:59",
		4*time.Minute + 5*time.Second: "4:05",
		time.Hour + 2*time.Minute + 3*time.Second: "1:02:03",
	}
	for d, want := range cases {
		if got := FormatDuration(d); got != want {
			t.Errorf("FormatDuration(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestTruncateField(t *testing.T) {
	long := strings.Repeat("é", 800)
	got := truncateField(long)
	if len(got) > fieldValueLimit || !strings.HasSuffix(got, "...") {
		t.Errorf("bad truncation, len=%d", len(got))
	}
	if short := truncateField("ok"); short != "ok" {
		t.Errorf("short values must pass through, got %q", short)
	}
}
