package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const PlatformYouTube = "youtube"

type StreamConfig struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	Title           string     `json:"title" db:"title"`
	Platform        string     `json:"platform" db:"platform"`
	VideoRef        string     `json:"stream_id" db:"video_ref"`
	IsActive        bool       `json:"is_active" db:"is_active"`
	IsLive          bool       `json:"is_live" db:"is_live"`
	ViewerCount     int64      `json:"viewer_count" db:"viewer_count"`
	ThumbnailURL    string     `json:"thumbnail_url,omitempty" db:"thumbnail_url"`
	StatusCheckedAt *time.Time `json:"status_checked_at,omitempty" db:"status_checked_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// EmbedURL is the player URL for the configured video
func (s *StreamConfig) EmbedURL() string {
	return EmbedURL(s.VideoRef)
}

// StreamStatus is what the video API reports for a reference
type StreamStatus struct {
	IsLive       bool   `json:"is_live"`
	ViewerCount  int64  `json:"viewer_count"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// StatusResult carries either a status or the reason it is unavailable
type StatusResult struct {
	StreamID  uuid.UUID     `json:"stream_id"`
	Available bool          `json:"available"`
	Status    *StreamStatus `json:"status,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
}

type CreateStreamRequest struct {
	Title string `json:"title" binding:"required"`
	Input string `json:"stream_input" binding:"required"`
}

type StreamView struct {
	StreamConfig
	EmbedURL string `json:"embed_url"`
}

var (
	bareVideoRef     = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
	videoRefPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/|youtube\.com/live/)([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`youtube\.com/.*[?&]v=([a-zA-Z0-9_-]{11})`),
	}
)

// ExtractVideoRef pulls the 11 character video reference out of a bare id or
// any of the common YouTube URL shapes.
func ExtractVideoRef(input string) (string, error) {
	input = strings.TrimSpace(input)
	if bareVideoRef.MatchString(input) {
		return input, nil
	}
	for _, p := range videoRefPatterns {
		if m := p.FindStringSubmatch(input); m != nil {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("invalid YouTube URL or video ID")
}

func EmbedURL(videoRef string) string {
	return fmt.Sprintf("https://www.youtube.com/embed/%s?autoplay=1&mute=1", videoRef)
}
