package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	kkdai "github.com/kkdai/youtube/v2"
	"github.com/lrstanley/go-ytdlp"
	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/internal/music/sources/youtube"
	"github.com/keshon/jukebox/internal/music/transport"
	"github.com/keshon/jukebox/pkg/retrylimit"
)

// opusItag is YouTube's 160kbps Opus audio format.
const opusItag = 251

// Opener resolves a playable URL to a direct media link and starts ffmpeg
// on it. kkdai is tried first; yt-dlp is the fallback.
type Opener struct {
	client     *kkdai.Client
	proxy      string
	ffmpegPath string
	retry      retrylimit.RetryConfig
	log        zerolog.Logger
}

type OpenerOptions struct {
	// Client is shared with the video resolver; nil builds a default one.
	Client     *kkdai.Client
	Proxy      string
	FFmpegPath string
	Logger     zerolog.Logger
}

func NewOpener(opts OpenerOptions) *Opener {
	if opts.Client == nil {
		opts.Client = &kkdai.Client{}
	}
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	log := opts.Logger.With().Str("component", "stream").Logger()
	return &Opener{
		client:     opts.Client,
		proxy:      opts.Proxy,
		ffmpegPath: opts.FFmpegPath,
		retry: retrylimit.RetryConfig{
			MaxAttempts:    3,
			InitialDelay:   2 * time.Second,
			Multiplier:     2,
			AttemptTimeout: 15 * time.Second,
			Logger:         &log,
		},
		log: log,
	}
}

// Open returns a PCM stream for uri.
func (o *Opener) Open(ctx context.Context, uri string) (transport.AudioStream, error) {
	link, err := o.StreamURL(ctx, uri)
	if err != nil {
		return nil, err
	}

	log := o.log.With().Str("url", uri).Logger()
	return newPCMStream(func(seekSec float64) (process, error) {
		return startFFmpeg(o.ffmpegPath, link, seekSec)
	}, log)
}

// StreamURL finds a direct audio link for a YouTube watch URL.
func (o *Opener) StreamURL(ctx context.Context, uri string) (string, error) {
	if uri == "" || uri == "undefined" {
		return "", fmt.Errorf("%w: %q", sources.ErrInvalidURL, uri)
	}
	id, ok := youtube.ExtractVideoID(uri)
	if !ok {
		return "", fmt.Errorf("%w: %q", sources.ErrInvalidURL, uri)
	}

	var (
		mu   sync.Mutex
		link string
	)
	err := retrylimit.WithRetryConfig(ctx, func(ctx context.Context) error {
		l, err := o.kkdaiLink(ctx, id)
		if err != nil {
			err = youtube.ClassifyError(err)
			if errors.Is(err, sources.ErrUnavailable) {
				return retrylimit.Fatal(err)
			}
			return err
		}
		mu.Lock()
		link = l
		mu.Unlock()
		return nil
	}, nil, o.retry)

	mu.Lock()
	found := link
	mu.Unlock()
	if err == nil && found != "" {
		return found, nil
	}
	if errors.Is(err, sources.ErrUnavailable) {
		return "", err
	}

	o.log.Warn().Err(err).Str("video_id", id).Msg("kkdai failed, falling back to yt-dlp")
	return o.ytdlpLink(ctx, uri)
}

func (o *Opener) kkdaiLink(ctx context.Context, id string) (string, error) {
	video, err := o.client.GetVideoContext(ctx, id)
	if err != nil {
		return "", err
	}

	format := pickFormat(video.Formats.WithAudioChannels())
	if format == nil {
		return "", errors.New("no audio formats found for video")
	}

	link, err := o.client.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return "", fmt.Errorf("get stream URL error: %w", err)
	}
	return link, nil
}

func (o *Opener) ytdlpLink(ctx context.Context, uri string) (string, error) {
	cmd := ytdlp.New().
		Format("bestaudio").
		Print("%(url)s").
		NoPlaylist().
		NoWarnings().
		IgnoreConfig()
	if o.proxy != "" {
		cmd.Proxy(o.proxy)
	}

	res, err := cmd.Run(ctx, uri)
	if err != nil {
		if res != nil && youtube.IsPermanentMessage(res.Stderr) {
			return "", fmt.Errorf("%w: %w", sources.ErrUnavailable, err)
		}
		return "", fmt.Errorf("yt-dlp error: %w", err)
	}

	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		if strings.HasPrefix(line, "http") {
			return strings.TrimSpace(line), nil
		}
	}
	return "", errors.New("yt-dlp returned no stream URL")
}

// pickFormat prefers Opus, then the best remaining audio format.
func pickFormat(formats kkdai.FormatList) *kkdai.Format {
	if len(formats) == 0 {
		return nil
	}
	for i := range formats {
		if formats[i].ItagNo == opusItag {
			return &formats[i]
		}
	}
	for i := range formats {
		if strings.Contains(formats[i].MimeType, "opus") {
			return &formats[i]
		}
	}
	formats.Sort()
	return &formats[0]
}
