package youtube

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	"github.com/keshon/jukebox/internal/music/sources"
)

const (
	musicCategoryID = "10"
	// maxPageSize is the Data API's cap for a single list call.
	maxPageSize = 50
)

// DataClient talks to the YouTube Data API v3. A client built without an API
// key answers every call with sources.ErrNotConfigured.
type DataClient struct {
	svc *ytapi.Service
}

// NewDataClient builds a client; extra options are appended after the API
// key (tests pass option.WithEndpoint).
func NewDataClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (*DataClient, error) {
	if apiKey == "" {
		return &DataClient{}, nil
	}
	svc, err := ytapi.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube Data API service: %w", err)
	}
	return &DataClient{svc: svc}, nil
}

func (c *DataClient) Configured() bool {
	return c != nil && c.svc != nil
}

func (c *DataClient) SearchFirst(ctx context.Context, query string) (*sources.SearchHit, error) {
	if !c.Configured() {
		return nil, sources.ErrNotConfigured
	}

	resp, err := c.svc.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		VideoCategoryId(musicCategoryID).
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", ClassifyError(err))
	}

	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		return &sources.SearchHit{
			VideoID:   item.Id.VideoId,
			Title:     item.Snippet.Title,
			Thumbnail: bestThumbnail(item.Snippet.Thumbnails),
		}, nil
	}
	return nil, sources.ErrNotFound
}

func (c *DataClient) Durations(ctx context.Context, ids []string) (map[string]time.Duration, error) {
	if !c.Configured() {
		return nil, sources.ErrNotConfigured
	}

	out := make(map[string]time.Duration, len(ids))
	for start := 0; start < len(ids); start += maxPageSize {
		end := min(start+maxPageSize, len(ids))
		resp, err := c.svc.Videos.List([]string{"contentDetails"}).
			Id(ids[start:end]...).
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("videos request failed: %w", ClassifyError(err))
		}
		for _, v := range resp.Items {
			if v.ContentDetails == nil {
				continue
			}
			out[v.Id] = ParseISODuration(v.ContentDetails.Duration)
		}
	}
	return out, nil
}

func (c *DataClient) PlaylistInfo(ctx context.Context, id string) (*sources.PlaylistInfo, error) {
	if !c.Configured() {
		return nil, sources.ErrNotConfigured
	}

	resp, err := c.svc.Playlists.List([]string{"snippet", "contentDetails"}).
		Id(id).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("playlist request failed: %w", ClassifyError(err))
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return nil, sources.ErrNotFound
	}

	p := resp.Items[0]
	info := &sources.PlaylistInfo{ID: id, Title: p.Snippet.Title}
	if p.ContentDetails != nil {
		info.ItemCount = int(p.ContentDetails.ItemCount)
	}
	return info, nil
}

// PlaylistItems returns at most limit items from the first page.
func (c *DataClient) PlaylistItems(ctx context.Context, id string, limit int) ([]sources.PlaylistItem, error) {
	if !c.Configured() {
		return nil, sources.ErrNotConfigured
	}
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	resp, err := c.svc.PlaylistItems.List([]string{"snippet"}).
		PlaylistId(id).
		MaxResults(int64(limit)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("playlist items request failed: %w", ClassifyError(err))
	}

	items := make([]sources.PlaylistItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.Snippet == nil {
			continue
		}
		item := sources.PlaylistItem{
			Title:     it.Snippet.Title,
			Thumbnail: bestThumbnail(it.Snippet.Thumbnails),
		}
		if it.Snippet.ResourceId != nil {
			item.VideoID = it.Snippet.ResourceId.VideoId
		}
		items = append(items, item)
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func bestThumbnail(t *ytapi.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*ytapi.Thumbnail{t.Maxres, t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

var (
	_ sources.SearchProvider   = (*DataClient)(nil)
	_ sources.PlaylistProvider = (*DataClient)(nil)
)
