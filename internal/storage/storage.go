// /internal/storage/storage.go
package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/keshon/jukebox/internal/datastore"
	"github.com/rs/zerolog"
)

const (
	commandHistoryLimit int = 20
	tracksHistoryLimit  int = 12
)

type Storage struct {
	// mu serializes read-modify-write cycles on guild records
	mu sync.Mutex
	ds *datastore.DataStore
}

type CommandHistory struct {
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	GuildName   string    `json:"guild_name"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Command     string    `json:"command"`
	Param       string    `json:"param"`
	Datetime    time.Time `json:"datetime"`
}

type TrackHistory struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Duration    int       `json:"duration_seconds"`
	RequestedBy string    `json:"requested_by"`
	PlayedAt    time.Time `json:"played_at"`
}

type Record struct {
	CommandsHistory []CommandHistory `json:"cmd_history"`
	TracksHistory   []TrackHistory   `json:"tracks_history"`
	// Volume is nil until someone sets a guild preference.
	Volume *int `json:"volume,omitempty"`
	// CommandHashes fingerprints the slash commands last registered.
	CommandHashes map[string]string `json:"command_hashes,omitempty"`
}

func New(filePath string, logger zerolog.Logger) (*Storage, error) {
	cfg := datastore.DefaultConfig(filePath)
	cfg.Logger = logger
	ds, err := datastore.NewWithConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

// getOrCreateGuildRecord must be called with s.mu held.
func (s *Storage) getOrCreateGuildRecord(guildID string) (*Record, error) {
	var record Record
	exists, err := s.ds.Get(guildID, &record)
	if err != nil {
		return nil, fmt.Errorf("error reading guild record: %w", err)
	}
	if !exists {
		return &Record{
			CommandsHistory: []CommandHistory{},
			TracksHistory:   []TrackHistory{},
		}, nil
	}

	if len(record.CommandsHistory) > commandHistoryLimit {
		record.CommandsHistory = record.CommandsHistory[len(record.CommandsHistory)-commandHistoryLimit:]
	}
	if len(record.TracksHistory) > tracksHistoryLimit {
		record.TracksHistory = record.TracksHistory[len(record.TracksHistory)-tracksHistoryLimit:]
	}

	return &record, nil
}

func (s *Storage) update(guildID string, fn func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}
	fn(record)
	return s.ds.Put(guildID, record)
}

func (s *Storage) read(guildID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateGuildRecord(guildID)
}
