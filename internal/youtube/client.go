// Package youtube looks up live status of videos through the YouTube Data API.
package youtube

import (
	"context"
	"fmt"

	"github.com/streamania/backend/internal/apperr"
	"github.com/streamania/backend/internal/models"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

var lookupParts = []string{"snippet", "liveStreamingDetails", "statistics"}

type Client struct {
	svc *yt.Service
}

// NewClient builds a client authenticated with an API key. Extra options
// override the endpoint or HTTP client, mostly for tests.
func NewClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// Lookup fetches the current status of a video. A video with live
// details reports concurrent viewers, anything else its total views.
func (c *Client) Lookup(ctx context.Context, videoRef string) (*models.StreamStatus, error) {
	resp, err := c.svc.Videos.List(lookupParts).Id(videoRef).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrVideoLookupFailed, err)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("%w: video %s not found", apperr.ErrVideoLookupFailed, videoRef)
	}

	video := resp.Items[0]
	status := &models.StreamStatus{}

	if live := video.LiveStreamingDetails; live != nil && live.ConcurrentViewers > 0 {
		status.IsLive = true
		status.ViewerCount = int64(live.ConcurrentViewers)
	} else if video.Statistics != nil {
		status.ViewerCount = int64(video.Statistics.ViewCount)
	}

	if sn := video.Snippet; sn != nil {
		status.Title = sn.Title
		status.ThumbnailURL = thumbnail(sn.Thumbnails)
	}

	return status, nil
}

func thumbnail(t *yt.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*yt.Thumbnail{t.Maxres, t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

// Unconfigured is used when no API key is set. Every lookup fails so
// callers keep the last known status.
type Unconfigured struct{}

func (Unconfigured) Lookup(ctx context.Context, videoRef string) (*models.StreamStatus, error) {
	return nil, fmt.Errorf("%w: no YouTube API key configured", apperr.ErrVideoLookupFailed)
}
