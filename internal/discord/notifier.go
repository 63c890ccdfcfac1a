package discord

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/command/music"
	"github.com/keshon/jukebox/internal/music/queue"
	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/internal/storage"
)

const notifyBuffer = 64

type outgoing struct {
	guildID   string
	channelID string
	embed     *discordgo.MessageEmbed
}

// Notifier posts playback updates to text channels from a single goroutine,
// so the controller never blocks on Discord and messages keep their order.
type Notifier struct {
	send  func(channelID string, embed *discordgo.MessageEmbed) error
	store *queue.Store
	log   zerolog.Logger

	mu     sync.RWMutex
	closed bool
	ch     chan outgoing
	done   chan struct{}
}

func NewNotifier(dg *discordgo.Session, store *queue.Store, logger zerolog.Logger) *Notifier {
	send := func(channelID string, embed *discordgo.MessageEmbed) error {
		_, err := dg.ChannelMessageSendEmbed(channelID, embed)
		return err
	}
	return newNotifier(send, store, logger)
}

func newNotifier(send func(string, *discordgo.MessageEmbed) error, store *queue.Store, logger zerolog.Logger) *Notifier {
	n := &Notifier{
		send:  send,
		store: store,
		log:   logger.With().Str("component", "notifier").Logger(),
		ch:    make(chan outgoing, notifyBuffer),
		done:  make(chan struct{}),
	}
	go n.loop()
	return n
}

func (n *Notifier) NowPlaying(guildID, channelID string, t sources.Track) {
	n.enqueue(guildID, channelID, music.NowPlayingEmbed(t))
}

func (n *Notifier) TrackFailed(guildID, channelID string, t sources.Track, err error) {
	n.log.Debug().Err(err).Str("guild_id", guildID).Str("title", t.Title).Msg("reporting failed track")
	n.enqueue(guildID, channelID, music.TrackFailedEmbed(t, n.store.Len(guildID) > 0))
}

func (n *Notifier) QueueEnded(guildID, channelID string) {
	n.enqueue(guildID, channelID, music.QueueEndedEmbed())
}

func (n *Notifier) enqueue(guildID, channelID string, embed *discordgo.MessageEmbed) {
	if channelID == "" {
		return
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	select {
	case n.ch <- outgoing{guildID: guildID, channelID: channelID, embed: embed}:
	default:
		n.log.Warn().Str("guild_id", guildID).Str("title", embed.Title).Msg("notification dropped (buffer full)")
	}
}

func (n *Notifier) loop() {
	defer close(n.done)
	for msg := range n.ch {
		if err := n.send(msg.channelID, msg.embed); err != nil {
			n.log.Warn().Err(err).Str("guild_id", msg.guildID).Str("channel_id", msg.channelID).Msg("failed to send notification")
		}
	}
}

// Close flushes pending messages, waiting at most until ctx ends.
func (n *Notifier) Close(ctx context.Context) {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.ch)
	}
	n.mu.Unlock()

	select {
	case <-n.done:
	case <-ctx.Done():
	}
}

// HistoryRecorder keeps the guild's recently played tracks in storage.
type HistoryRecorder struct {
	storage *storage.Storage
	log     zerolog.Logger
}

func NewHistoryRecorder(s *storage.Storage, logger zerolog.Logger) *HistoryRecorder {
	return &HistoryRecorder{storage: s, log: logger}
}

func (r *HistoryRecorder) RecordPlayed(guildID string, t sources.Track) {
	err := r.storage.AppendTrackToHistory(guildID, storage.TrackHistory{
		Title:       t.Title,
		URL:         t.URL,
		Duration:    int(t.Duration / time.Second),
		RequestedBy: t.RequestedBy,
		PlayedAt:    time.Now(),
	})
	if err != nil {
		r.log.Warn().Err(err).Str("guild_id", guildID).Msg("failed to record played track")
	}
}
