package storage

import "fmt"

// SetVolume persists the guild's preferred playback volume.
func (s *Storage) SetVolume(guildID string, volume int) error {
	if volume < 0 || volume > 100 {
		return fmt.Errorf("volume out of range: %d", volume)
	}
	return s.update(guildID, func(r *Record) {
		v := volume
		r.Volume = &v
	})
}

// GetVolume returns the stored preference; ok is false when none was set.
func (s *Storage) GetVolume(guildID string) (volume int, ok bool, err error) {
	record, err := s.read(guildID)
	if err != nil {
		return 0, false, err
	}
	if record.Volume == nil {
		return 0, false, nil
	}
	return *record.Volume, true, nil
}

func (s *Storage) AppendTrackToHistory(guildID string, track TrackHistory) error {
	return s.update(guildID, func(r *Record) {
		r.TracksHistory = append(r.TracksHistory, track)
		if len(r.TracksHistory) > tracksHistoryLimit {
			r.TracksHistory = r.TracksHistory[len(r.TracksHistory)-tracksHistoryLimit:]
		}
	})
}

// GetTracksHistory returns played tracks, oldest first.
func (s *Storage) GetTracksHistory(guildID string) ([]TrackHistory, error) {
	record, err := s.read(guildID)
	if err != nil {
		return nil, err
	}
	return record.TracksHistory, nil
}
