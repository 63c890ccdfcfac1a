package youtube

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var isoDurationPattern = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// WatchURL is the canonical playable URL for a video id.
func WatchURL(id string) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", id)
}

func PlaylistURL(id string) string {
	return fmt.Sprintf("https://www.youtube.com/playlist?list=%s", id)
}

// ParseISODuration converts the Data API's PT#H#M#S form. Anything else
// (including P1D style values used for live streams) yields 0.
func ParseISODuration(s string) time.Duration {
	m := isoDurationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	var total time.Duration
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0
		}
		total += time.Duration(n) * unit
	}
	return total
}

// ExtractVideoID pulls the id out of watch, short and music URLs.
func ExtractVideoID(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}

	switch strings.TrimPrefix(u.Hostname(), "www.") {
	case "youtu.be":
		id := strings.Trim(u.Path, "/")
		return id, id != ""
	case "youtube.com", "music.youtube.com", "m.youtube.com":
		if u.Path == "/watch" {
			id := u.Query().Get("v")
			return id, id != ""
		}
	}
	return "", false
}

// ExtractPlaylistID returns the list= parameter, wherever it appears.
func ExtractPlaylistID(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	id := u.Query().Get("list")
	return id, id != ""
}

// CleanVideoURL drops every query parameter except v.
func CleanVideoURL(raw string) string {
	if id, ok := ExtractVideoID(raw); ok {
		return WatchURL(id)
	}
	return raw
}
