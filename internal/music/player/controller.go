// Package player drives per-guild playback: it turns queue mutations into
// transport actions and reacts to player events.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/music/queue"
	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/internal/music/transport"
)

var (
	ErrNoQueue        = errors.New("no queue for this guild")
	ErrNoSession      = errors.New("queue has no voice session")
	ErrNothingToStart = errors.New("no tracks to play")
)

const defaultStreamTimeout = 90 * time.Second

type Options struct {
	Notifier Notifier
	Recorder Recorder
	// StreamTimeout bounds opening a single audio stream.
	StreamTimeout time.Duration
	Logger        zerolog.Logger
}

type guildState struct {
	mu    sync.Mutex
	state State
	// playback is the player run whose end advances the queue; zero when
	// no event should.
	playback transport.Playback
}

// Controller owns the queue store and is the only caller of the transport.
type Controller struct {
	store     *queue.Store
	transport transport.Transport
	notifier  Notifier
	recorder  Recorder
	opts      Options
	log       zerolog.Logger

	// ctx backs transitions triggered by player events.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	guilds map[string]*guildState
}

func New(store *queue.Store, t transport.Transport, opts Options) *Controller {
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.StreamTimeout <= 0 {
		opts.StreamTimeout = defaultStreamTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		store:     store,
		transport: t,
		notifier:  opts.Notifier,
		recorder:  opts.Recorder,
		opts:      opts,
		log:       opts.Logger.With().Str("component", "player").Logger(),
		ctx:       ctx,
		cancel:    cancel,
		guilds:    make(map[string]*guildState),
	}
}

// Store exposes the queue store for read-only rendering.
func (c *Controller) Store() *queue.Store {
	return c.store
}

// State reports the guild's current state.
func (c *Controller) State(guildID string) State {
	g := c.lockGuild(guildID)
	defer g.mu.Unlock()
	return g.state
}

func (c *Controller) lockGuild(guildID string) *guildState {
	c.mu.Lock()
	g, ok := c.guilds[guildID]
	if !ok {
		g = &guildState{}
		c.guilds[guildID] = g
	}
	c.mu.Unlock()
	g.mu.Lock()
	return g
}

func (c *Controller) transition(guildID string, g *guildState, ev Event) bool {
	next, ok := Next(g.state, ev)
	if !ok {
		c.log.Debug().Str("guild_id", guildID).Stringer("state", g.state).Stringer("event", ev).Msg("ignored event")
		return false
	}
	if next != g.state {
		c.log.Debug().Str("guild_id", guildID).Stringer("from", g.state).Stringer("to", next).Stringer("event", ev).Msg("transition")
	}
	g.state = next
	return true
}

// SubmitResult tells the caller what happened to its tracks.
type SubmitResult struct {
	// Created is true when this call made the queue and started playback.
	Created bool
	// FirstPosition and LastPosition are 1-based positions in the queue.
	FirstPosition int
	LastPosition  int
}

// Submit appends tracks to the guild's queue, creating it (and joining the
// voice channel) when absent, and starts playback when nothing is playing.
func (c *Controller) Submit(ctx context.Context, guildID string, b queue.Binding, tracks []sources.Track) (SubmitResult, error) {
	if len(tracks) == 0 {
		return SubmitResult{}, ErrNothingToStart
	}

	g := c.lockGuild(guildID)
	defer g.mu.Unlock()

	q, created := c.store.GetOrCreate(guildID, b)
	if created {
		sess, err := c.transport.OpenSession(ctx, guildID, b.VoiceChannelID)
		if err != nil {
			c.store.DeleteIf(guildID, q)
			c.log.Error().Err(err).Str("guild_id", guildID).Str("channel_id", b.VoiceChannelID).Msg("failed to join voice channel")
			return SubmitResult{}, fmt.Errorf("failed to join voice channel: %w", err)
		}
		q.AttachSession(sess)
		c.log.Info().Str("guild_id", guildID).Str("session_id", sess.ID()).Msg("queue created")
	} else if b.TextChannelID != "" {
		q.SetTextChannelID(b.TextChannelID)
	}

	before := c.store.Len(guildID)
	c.store.Enqueue(guildID, tracks...)
	res := SubmitResult{
		Created:       created,
		FirstPosition: before + 1,
		LastPosition:  before + len(tracks),
	}
	c.log.Info().Str("guild_id", guildID).Int("added", len(tracks)).Int("queue_len", res.LastPosition).Msg("tracks enqueued")

	switch g.state {
	case StateIdle, StateStopped, StateRecovering:
		c.startOrAdvance(ctx, guildID, g)
	}
	return res, nil
}

// StartOrAdvance plays the head of the queue, dropping unplayable tracks
// until one starts or the queue runs dry.
func (c *Controller) StartOrAdvance(ctx context.Context, guildID string) {
	g := c.lockGuild(guildID)
	defer g.mu.Unlock()
	c.startOrAdvance(ctx, guildID, g)
}

// startOrAdvance must be called with g.mu held.
func (c *Controller) startOrAdvance(ctx context.Context, guildID string, g *guildState) {
	q := c.store.Get(guildID)
	if q == nil {
		g.state = StateIdle
		return
	}

	// each failed attempt drops one track, so the queue length bounds the loop
	for budget := c.store.Len(guildID); budget >= 0; budget-- {
		head := c.store.PeekCurrent(guildID)
		if head == nil {
			c.teardown(guildID, q, g)
			c.notifier.QueueEnded(guildID, q.TextChannelID())
			return
		}

		c.transition(guildID, g, EventStart)

		pb, err := c.startTrack(ctx, q, *head)
		if errors.Is(err, errHeadMoved) {
			c.log.Warn().Str("guild_id", guildID).Str("title", head.Title).Msg("queue head changed while starting")
			continue
		}
		if err == nil {
			g.playback = pb
			c.transition(guildID, g, EventStreamOpened)
			c.log.Info().Str("guild_id", guildID).Str("title", head.Title).Str("url", head.URL).Int("queue_len", c.store.Len(guildID)).Msg("now playing")
			c.notifier.NowPlaying(guildID, q.TextChannelID(), *head)
			if c.recorder != nil {
				c.recorder.RecordPlayed(guildID, *head)
			}
			return
		}

		c.log.Warn().Err(err).Str("guild_id", guildID).Str("title", head.Title).Msg("skipping track that failed to start")
		c.transition(guildID, g, EventStreamFailed)
		c.store.Advance(guildID)
		c.notifier.TrackFailed(guildID, q.TextChannelID(), *head, err)
	}

	c.log.Error().Str("guild_id", guildID).Int("queue_len", c.store.Len(guildID)).Msg("gave up starting playback")
}

// errHeadMoved means the queue head was no longer the track being started.
var errHeadMoved = errors.New("queue head changed while starting")

func (c *Controller) startTrack(ctx context.Context, q *queue.Queue, t sources.Track) (transport.Playback, error) {
	if !t.Playable() {
		return 0, fmt.Errorf("%w: %q", sources.ErrInvalidURL, t.URL)
	}
	sess := q.Session()
	if sess == nil {
		return 0, ErrNoSession
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.StreamTimeout)
	defer cancel()

	stream, err := c.transport.OpenAudioStream(ctx, t.URL)
	if err != nil {
		return 0, fmt.Errorf("failed to open audio stream: %w", err)
	}

	if !q.MarkPlaying(t) {
		stream.Close()
		return 0, errHeadMoved
	}

	p := sess.Player()
	if q.SetPlayer(p) {
		p.Subscribe(&playerListener{c: c, guildID: q.GuildID(), player: p})
	}
	p.SetVolume(q.Volume())

	pb, err := p.Play(stream)
	if err != nil {
		stream.Close()
		q.SetPlaying(false)
		return 0, fmt.Errorf("failed to start player: %w", err)
	}
	return pb, nil
}

// teardown releases the session and deletes q. Must be called with g.mu held.
func (c *Controller) teardown(guildID string, q *queue.Queue, g *guildState) {
	g.playback = 0
	if p := q.Player(); p != nil {
		p.Stop()
	}
	if sess := q.DetachSession(); sess != nil {
		if err := sess.Close(); err != nil {
			c.log.Warn().Err(err).Str("guild_id", guildID).Msg("failed to close voice session")
		}
	}
	c.store.DeleteIf(guildID, q)
	c.transition(guildID, g, EventQueueEmpty)
	c.log.Info().Str("guild_id", guildID).Msg("queue finished, session released")
}

// handlePlayerEvent advances the queue after the player finished or failed.
// Events from a player that no longer belongs to the guild's queue, or from a
// playback other than the one the guild is waiting on, are dropped.
func (c *Controller) handlePlayerEvent(guildID string, p transport.AudioPlayer, pb transport.Playback, playErr error) {
	g := c.lockGuild(guildID)
	defer g.mu.Unlock()

	q := c.store.Get(guildID)
	if q == nil || q.Player() != p {
		c.log.Debug().Str("guild_id", guildID).Msg("dropping event from a stale player")
		return
	}
	if pb == 0 || pb != g.playback {
		c.log.Debug().Str("guild_id", guildID).Uint64("playback", uint64(pb)).Msg("dropping event from a stale playback")
		return
	}
	g.playback = 0

	ev := EventFinished
	if playErr != nil {
		ev = EventError
	}
	if !c.transition(guildID, g, ev) {
		return
	}

	finished := c.store.Advance(guildID)
	if playErr != nil && finished != nil {
		c.log.Warn().Err(playErr).Str("guild_id", guildID).Str("title", finished.Title).Msg("playback error, moving on")
		c.notifier.TrackFailed(guildID, q.TextChannelID(), *finished, playErr)
	}

	c.startOrAdvance(c.ctx, guildID, g)
}

// Pause pauses a playing guild.
func (c *Controller) Pause(guildID string) bool {
	g := c.lockGuild(guildID)
	defer g.mu.Unlock()

	q := c.store.Get(guildID)
	if q == nil || g.state != StatePlaying {
		return false
	}
	p := q.Player()
	if p == nil || !p.Pause() {
		return false
	}
	c.transition(guildID, g, EventPause)
	q.SetPlaying(false)
	return true
}

// Resume resumes a paused guild.
func (c *Controller) Resume(guildID string) bool {
	g := c.lockGuild(guildID)
	defer g.mu.Unlock()

	q := c.store.Get(guildID)
	if q == nil || g.state != StatePaused {
		return false
	}
	p := q.Player()
	if p == nil || !p.Resume() {
		return false
	}
	c.transition(guildID, g, EventResume)
	q.SetPlaying(true)
	return true
}

// Stop halts the player and clears the playing flag. The queue and session
// stay; see Shutdown for a full teardown. Calling it again is harmless.
func (c *Controller) Stop(guildID string) bool {
	g := c.lockGuild(guildID)
	defer g.mu.Unlock()

	q := c.store.Get(guildID)
	if q == nil {
		return false
	}
	c.transition(guildID, g, EventStop)
	g.playback = 0
	if p := q.Player(); p != nil {
		p.Stop()
	}
	q.SetPlaying(false)
	return true
}

// Clear drops every queued track except the one playing and reports how many
// were removed.
func (c *Controller) Clear(guildID string) (int, bool) {
	g := c.lockGuild(guildID)
	defer g.mu.Unlock()

	before := c.store.Len(guildID)
	if !c.store.ClearKeepingCurrent(guildID) {
		return 0, false
	}
	removed := before - c.store.Len(guildID)
	c.log.Info().Str("guild_id", guildID).Int("removed", removed).Msg("queue cleared")
	return removed, true
}

// Skip stops the current track; the player's finished event advances the
// queue.
func (c *Controller) Skip(guildID string) bool {
	g := c.lockGuild(guildID)
	defer g.mu.Unlock()

	q := c.store.Get(guildID)
	if q == nil {
		return false
	}
	p := q.Player()
	if p == nil || !c.transition(guildID, g, EventSkip) {
		return false
	}
	return p.Stop()
}

// Shutdown clears the queue, stops the player, closes the session and
// deletes the queue.
func (c *Controller) Shutdown(guildID string) bool {
	g := c.lockGuild(guildID)
	defer g.mu.Unlock()

	q := c.store.Get(guildID)
	if q == nil {
		g.state = StateIdle
		return false
	}

	c.store.ClearKeepingCurrent(guildID)
	g.playback = 0
	if p := q.Player(); p != nil {
		p.Stop()
	}
	if sess := q.DetachSession(); sess != nil {
		if err := sess.Close(); err != nil {
			c.log.Warn().Err(err).Str("guild_id", guildID).Msg("failed to close voice session")
		}
	}
	c.store.DeleteIf(guildID, q)
	c.transition(guildID, g, EventShutdown)
	c.log.Info().Str("guild_id", guildID).Msg("playback shut down")
	return true
}

// SetVolume applies a 0..100 volume to the guild's queue and player.
func (c *Controller) SetVolume(guildID string, volume int) bool {
	g := c.lockGuild(guildID)
	defer g.mu.Unlock()

	q := c.store.Get(guildID)
	if q == nil {
		return false
	}
	q.SetVolume(volume)
	if p := q.Player(); p != nil {
		p.SetVolume(q.Volume())
	}
	return true
}

// Close shuts every guild down.
func (c *Controller) Close() {
	for _, guildID := range c.store.Guilds() {
		c.Shutdown(guildID)
	}
	c.cancel()
}

// playerListener is subscribed once per player instance.
type playerListener struct {
	c       *Controller
	guildID string
	player  transport.AudioPlayer
}

func (l *playerListener) OnFinished(pb transport.Playback) {
	l.c.handlePlayerEvent(l.guildID, l.player, pb, nil)
}

func (l *playerListener) OnError(pb transport.Playback, err error) {
	if err == nil {
		err = errors.New("unknown playback error")
	}
	l.c.handlePlayerEvent(l.guildID, l.player, pb, err)
}
