package stream

import (
	"context"
	"errors"
	"testing"

	kkdai "github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/music/sources"
)

func TestPickFormat(t *testing.T) {
	t.Run("prefers itag 251", func(t *testing.T) {
		formats := kkdai.FormatList{
			{ItagNo: 140, MimeType: "audio/mp4", Bitrate: 130000, AudioChannels: 2},
			{ItagNo: 251, MimeType: `audio/webm; codecs="opus"`, Bitrate: 120000, AudioChannels: 2},
		}
		if f := pickFormat(formats); f == nil || f.ItagNo != 251 {
			t.Errorf("expected itag 251, got %+v", f)
		}
	})

	t.Run("falls back to opus mime type", func(t *testing.T) {
		formats := kkdai.FormatList{
			{ItagNo: 140, MimeType: "audio/mp4", AudioChannels: 2},
			{ItagNo: 250, MimeType: `audio/webm; codecs="opus"`, AudioChannels: 2},
		}
		if f := pickFormat(formats); f == nil || f.ItagNo != 250 {
			t.Errorf("expected itag 250, got %+v", f)
		}
	})

	t.Run("empty list", func(t *testing.T) {
		if f := pickFormat(nil); f != nil {
			t.Errorf("expected nil, got %+v", f)
		}
	})
}

func TestStreamURLRejectsInvalidInput(t *testing.T) {
	o := NewOpener(OpenerOptions{Logger: zerolog.Nop()})
	for _, uri := range []string{"", "undefined", "https://example.com/nothing"} {
		if _, err := o.StreamURL(context.Background(), uri); !errors.Is(err, sources.ErrInvalidURL) {
			t.Errorf("%q: expected ErrInvalidURL, got %v", uri, err)
		}
	}
}
