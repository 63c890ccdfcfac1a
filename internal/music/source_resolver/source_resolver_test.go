package source_resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/keshon/jukebox/internal/music/sources"
)

type fakeVideos struct {
	calls atomic.Int32
	fn    func(call int) (*sources.VideoInfo, error)
}

func (f *fakeVideos) VideoInfo(ctx context.Context, id string) (*sources.VideoInfo, error) {
	n := int(f.calls.Add(1))
	return f.fn(n)
}

type fakeData struct {
	hit       *sources.SearchHit
	searchErr error
	info      *sources.PlaylistInfo
	items     []sources.PlaylistItem
	durations map[string]time.Duration
	lastLimit int
}

func (f *fakeData) SearchFirst(ctx context.Context, query string) (*sources.SearchHit, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hit, nil
}

func (f *fakeData) Durations(ctx context.Context, ids []string) (map[string]time.Duration, error) {
	out := map[string]time.Duration{}
	for _, id := range ids {
		if d, ok := f.durations[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

func (f *fakeData) PlaylistInfo(ctx context.Context, id string) (*sources.PlaylistInfo, error) {
	if f.info == nil {
		return nil, sources.ErrNotFound
	}
	return f.info, nil
}

func (f *fakeData) PlaylistItems(ctx context.Context, id string, limit int) ([]sources.PlaylistItem, error) {
	f.lastLimit = limit
	return f.items, nil
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.BaseDelay = 0
	opts.AttemptTimeout = time.Second
	return opts
}

func TestResolveVideo(t *testing.T) {
	ctx := context.Background()

	t.Run("retries transient errors", func(t *testing.T) {
		videos := &fakeVideos{fn: func(call int) (*sources.VideoInfo, error) {
			if call < 3 {
				return nil, errors.New("connection reset")
			}
			return &sources.VideoInfo{ID: "abc", Title: "Song", Duration: 213500 * time.Millisecond}, nil
		}}
		r := New(videos, nil, nil, testOptions())

		track, err := r.ResolveVideo(ctx, "abc")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := videos.calls.Load(); got != 3 {
			t.Errorf("expected 3 calls, got %d", got)
		}
		if track.URL != "https://www.youtube.com/watch?v=abc" {
			t.Errorf("unexpected url %q", track.URL)
		}
		if track.Duration != 213*time.Second {
			t.Errorf("duration should be whole seconds, got %v", track.Duration)
		}
	})

	t.Run("stops on private video", func(t *testing.T) {
		videos := &fakeVideos{fn: func(int) (*sources.VideoInfo, error) {
			return nil, fmt.Errorf("%w: Private video", sources.ErrUnavailable)
		}}
		r := New(videos, nil, nil, testOptions())

		_, err := r.ResolveVideo(ctx, "abc")
		if !errors.Is(err, sources.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if got := videos.calls.Load(); got != 1 {
			t.Errorf("expected a single call, got %d", got)
		}
	})

	t.Run("gives up after three attempts", func(t *testing.T) {
		videos := &fakeVideos{fn: func(int) (*sources.VideoInfo, error) {
			return nil, errors.New("timeout")
		}}
		r := New(videos, nil, nil, testOptions())

		_, err := r.ResolveVideo(ctx, "abc")
		if !errors.Is(err, sources.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if got := videos.calls.Load(); got != 3 {
			t.Errorf("expected 3 calls, got %d", got)
		}
	})

	t.Run("empty id", func(t *testing.T) {
		videos := &fakeVideos{fn: func(int) (*sources.VideoInfo, error) { return nil, nil }}
		r := New(videos, nil, nil, testOptions())
		if _, err := r.ResolveVideo(ctx, ""); !errors.Is(err, sources.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if videos.calls.Load() != 0 {
			t.Error("provider should not be called for an empty id")
		}
	})
}

func TestResolveVideoRetryTiming(t *testing.T) {
	ctx := context.Background()

	t.Run("backoff doubles and ends with the last attempt", func(t *testing.T) {
		const base = 25 * time.Millisecond
		var (
			mu    sync.Mutex
			calls []time.Time
		)
		videos := &fakeVideos{fn: func(int) (*sources.VideoInfo, error) {
			mu.Lock()
			calls = append(calls, time.Now())
			mu.Unlock()
			return nil, errors.New("connection reset")
		}}
		opts := testOptions()
		opts.BaseDelay = base
		r := New(videos, nil, nil, opts)

		_, err := r.ResolveVideo(ctx, "abc")
		returned := time.Now()
		if !errors.Is(err, sources.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}

		mu.Lock()
		defer mu.Unlock()
		if len(calls) != 3 {
			t.Fatalf("expected 3 calls, got %d", len(calls))
		}
		first, second := calls[1].Sub(calls[0]), calls[2].Sub(calls[1])
		if first < 2*base || first >= 4*base {
			t.Errorf("first wait should be about %v, got %v", 2*base, first)
		}
		if second < 4*base || second >= 8*base {
			t.Errorf("second wait should be about %v, got %v", 4*base, second)
		}
		if tail := returned.Sub(calls[2]); tail >= 2*base {
			t.Errorf("no wait expected after the last attempt, got %v", tail)
		}
	})

	t.Run("hung attempt times out and is retried", func(t *testing.T) {
		videos := &fakeVideos{}
		videos.fn = func(call int) (*sources.VideoInfo, error) {
			if call == 1 {
				time.Sleep(time.Second)
				return nil, errors.New("too late")
			}
			return &sources.VideoInfo{ID: "abc", Title: "Song"}, nil
		}
		opts := testOptions()
		opts.BaseDelay = time.Millisecond
		opts.AttemptTimeout = 30 * time.Millisecond
		r := New(videos, nil, nil, opts)

		start := time.Now()
		track, err := r.ResolveVideo(ctx, "abc")
		if err != nil {
			t.Fatalf("expected the retry to succeed, got %v", err)
		}
		if track.Title != "Song" {
			t.Errorf("unexpected track %+v", track)
		}
		if got := videos.calls.Load(); got != 2 {
			t.Errorf("expected 2 calls, got %d", got)
		}
		if elapsed := time.Since(start); elapsed >= time.Second {
			t.Errorf("the hung attempt was not cut off, took %v", elapsed)
		}
	})
}

func TestResolveSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("single hit with duration", func(t *testing.T) {
		data := &fakeData{
			hit:       &sources.SearchHit{VideoID: "v1", Title: "Found"},
			durations: map[string]time.Duration{"v1": 90 * time.Second},
		}
		r := New(nil, data, data, testOptions())

		track, err := r.ResolveSearch(ctx, "found")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if track.Title != "Found" || track.Duration != 90*time.Second {
			t.Errorf("unexpected track %+v", track)
		}
	})

	t.Run("unconfigured backend", func(t *testing.T) {
		data := &fakeData{searchErr: sources.ErrNotConfigured}
		r := New(nil, data, data, testOptions())
		if _, err := r.ResolveSearch(ctx, "x"); !errors.Is(err, sources.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestResolvePlaylist(t *testing.T) {
	ctx := context.Background()

	t.Run("drops private and deleted items", func(t *testing.T) {
		data := &fakeData{
			info: &sources.PlaylistInfo{ID: "PL1", Title: "Mix", ItemCount: 5},
			items: []sources.PlaylistItem{
				{VideoID: "a", Title: "A"},
				{VideoID: "b", Title: "B"},
				{VideoID: "c", Title: "Private video"},
				{VideoID: "d", Title: "D"},
				{VideoID: "e", Title: "E"},
			},
			durations: map[string]time.Duration{"a": time.Minute, "b": 2 * time.Minute},
		}
		r := New(nil, data, data, testOptions())

		pl, err := r.ResolvePlaylist(ctx, "PL1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(pl.Tracks) != 4 {
			t.Fatalf("expected 4 tracks, got %d", len(pl.Tracks))
		}
		for _, tr := range pl.Tracks {
			if tr.Title == "Private video" {
				t.Error("private item leaked into the result")
			}
			if tr.Playlist == nil || tr.Playlist.Name != "Mix" || tr.Playlist.TotalCount != 5 {
				t.Errorf("missing playlist origin on %q", tr.Title)
			}
		}
		if pl.Tracks[2].Duration != 0 {
			t.Errorf("unmatched duration should be 0, got %v", pl.Tracks[2].Duration)
		}
		if data.lastLimit != 50 {
			t.Errorf("expected a 50 item cap, got %d", data.lastLimit)
		}
		if pl.Info.URL != "https://www.youtube.com/playlist?list=PL1" {
			t.Errorf("unexpected playlist url %q", pl.Info.URL)
		}
	})

	t.Run("nothing survives filtering", func(t *testing.T) {
		data := &fakeData{
			info:  &sources.PlaylistInfo{ID: "PL2", Title: "Gone"},
			items: []sources.PlaylistItem{{VideoID: "x", Title: "Deleted video"}, {Title: "no id"}},
		}
		r := New(nil, data, data, testOptions())
		if _, err := r.ResolvePlaylist(ctx, "PL2"); !errors.Is(err, sources.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("metadata failure", func(t *testing.T) {
		data := &fakeData{}
		r := New(nil, data, data, testOptions())
		if _, err := r.ResolvePlaylist(ctx, "PL3"); !errors.Is(err, sources.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestResolveStampsRequester(t *testing.T) {
	data := &fakeData{
		info:  &sources.PlaylistInfo{ID: "PL1", Title: "Mix"},
		items: []sources.PlaylistItem{{VideoID: "a", Title: "A"}, {VideoID: "b", Title: "B"}},
	}
	r := New(nil, data, data, testOptions())

	res, err := r.Resolve(context.Background(), "https://www.youtube.com/playlist?list=PL1", "<@42>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != sources.KindPlaylist || res.Playlist == nil {
		t.Fatalf("unexpected result %+v", res)
	}
	for _, tr := range res.Tracks {
		if tr.RequestedBy != "<@42>" {
			t.Errorf("track %q not stamped, got %q", tr.Title, tr.RequestedBy)
		}
	}
}
