package youtube

import (
	"context"
	"net/http"
	"time"

	kkdai "github.com/kkdai/youtube/v2"

	"github.com/keshon/jukebox/internal/music/sources"
)

// VideoClient resolves single videos through the innertube API.
type VideoClient struct {
	client *kkdai.Client
}

func NewVideoClient(httpClient *http.Client) *VideoClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: httpTimeout}
	}
	return &VideoClient{client: &kkdai.Client{HTTPClient: httpClient}}
}

// Client exposes the underlying client so the stream opener can reuse its
// cipher cache for stream URLs.
func (c *VideoClient) Client() *kkdai.Client {
	return c.client
}

func (c *VideoClient) VideoInfo(ctx context.Context, id string) (*sources.VideoInfo, error) {
	video, err := c.client.GetVideoContext(ctx, id)
	if err != nil {
		return nil, ClassifyError(err)
	}

	info := &sources.VideoInfo{
		ID:       video.ID,
		Title:    video.Title,
		Duration: video.Duration.Truncate(time.Second),
	}
	if n := len(video.Thumbnails); n > 0 {
		// innertube lists thumbnails smallest first
		info.Thumbnail = video.Thumbnails[n-1].URL
	}
	if info.ID == "" {
		info.ID = id
	}
	return info, nil
}

var _ sources.VideoInfoProvider = (*VideoClient)(nil)
