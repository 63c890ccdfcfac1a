package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/music/transport"
)

const (
	defaultReadyTimeout = 30 * time.Second
	readyPollInterval   = 100 * time.Millisecond
)

var ErrVoiceNotReady = errors.New("voice connection did not become ready")

// Transport joins voice channels through a discordgo session and opens
// audio through an Opener.
type Transport struct {
	dg           *discordgo.Session
	opener       *Opener
	readyTimeout time.Duration
	log          zerolog.Logger
}

func NewTransport(dg *discordgo.Session, opener *Opener, readyTimeout time.Duration, logger zerolog.Logger) *Transport {
	if readyTimeout <= 0 {
		readyTimeout = defaultReadyTimeout
	}
	return &Transport{
		dg:           dg,
		opener:       opener,
		readyTimeout: readyTimeout,
		log:          logger.With().Str("component", "voice").Logger(),
	}
}

func (t *Transport) OpenSession(ctx context.Context, guildID, channelID string) (transport.Session, error) {
	if channelID == "" {
		return nil, errors.New("voice channel ID is not set")
	}

	vc, err := t.dg.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("failed to join voice channel: %w", err)
	}

	if err := waitReady(ctx, vc, t.readyTimeout); err != nil {
		_ = vc.Disconnect()
		return nil, err
	}

	s := &voiceSession{
		id:        uuid.NewString(),
		guildID:   guildID,
		channelID: channelID,
		vc:        vc,
	}
	s.log = t.log.With().Str("session", s.id).Str("guild_id", guildID).Logger()
	s.log.Info().Str("channel_id", channelID).Msg("joined voice channel")
	return s, nil
}

func (t *Transport) OpenAudioStream(ctx context.Context, uri string) (transport.AudioStream, error) {
	return t.opener.Open(ctx, uri)
}

func waitReady(ctx context.Context, vc *discordgo.VoiceConnection, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		vc.RLock()
		ready := vc.Ready
		vc.RUnlock()
		if ready {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrVoiceNotReady, ctx.Err())
		case <-ticker.C:
		}
	}
}

type voiceSession struct {
	id        string
	guildID   string
	channelID string
	vc        *discordgo.VoiceConnection
	log       zerolog.Logger

	once   sync.Once
	player *audioPlayer

	closeOnce sync.Once
	closeErr  error
}

func (s *voiceSession) ID() string        { return s.id }
func (s *voiceSession) GuildID() string   { return s.guildID }
func (s *voiceSession) ChannelID() string { return s.channelID }

func (s *voiceSession) Player() transport.AudioPlayer {
	s.once.Do(func() {
		s.player = newAudioPlayer(s.vc, newOpusEncoder, s.log)
	})
	return s.player
}

func (s *voiceSession) Close() error {
	s.closeOnce.Do(func() {
		// a player requested after Close is already shut down
		s.Player()
		s.player.Shutdown()
		if err := s.vc.Disconnect(); err != nil {
			s.closeErr = fmt.Errorf("failed to leave voice channel: %w", err)
		}
		s.log.Info().Msg("left voice channel")
	})
	return s.closeErr
}
