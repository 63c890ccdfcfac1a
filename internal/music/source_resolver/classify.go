package source_resolver

import (
	"strings"

	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/internal/music/sources/youtube"
)

// Input is a classified user request.
type Input struct {
	Kind  sources.Kind
	ID    string // video or playlist id; empty for searches
	Query string // original text for searches
}

// Classify decides what a user typed. A list= parameter wins over a video
// marker, so a watch URL inside a playlist queues the whole playlist.
func Classify(raw string) Input {
	input := strings.TrimSpace(raw)

	if strings.Contains(input, "list=") {
		if id, ok := youtube.ExtractPlaylistID(input); ok {
			return Input{Kind: sources.KindPlaylist, ID: id}
		}
	}

	if isVideoURL(input) {
		id, _ := youtube.ExtractVideoID(input)
		return Input{Kind: sources.KindVideo, ID: id}
	}

	return Input{Kind: sources.KindSearch, Query: input}
}

func isVideoURL(s string) bool {
	return strings.Contains(s, "youtube.com/watch") || strings.Contains(s, "youtu.be/")
}
