package storage

// AppendCommandToHistory appends a command history record for a guild
func (s *Storage) AppendCommandToHistory(guildID string, command CommandHistory) error {
	return s.update(guildID, func(r *Record) {
		r.CommandsHistory = append(r.CommandsHistory, command)
		if len(r.CommandsHistory) > commandHistoryLimit {
			r.CommandsHistory = r.CommandsHistory[len(r.CommandsHistory)-commandHistoryLimit:]
		}
	})
}

func (s *Storage) GetCommandsHistory(guildID string) ([]CommandHistory, error) {
	record, err := s.read(guildID)
	if err != nil {
		return nil, err
	}
	return record.CommandsHistory, nil
}

// GetCommandHashes returns a copy of the registered command fingerprints.
func (s *Storage) GetCommandHashes(guildID string) (map[string]string, error) {
	record, err := s.read(guildID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(record.CommandHashes))
	for k, v := range record.CommandHashes {
		out[k] = v
	}
	return out, nil
}

// SetCommandHashes replaces the fingerprints wholesale.
func (s *Storage) SetCommandHashes(guildID string, hashes map[string]string) error {
	return s.update(guildID, func(r *Record) {
		r.CommandHashes = hashes
	})
}
