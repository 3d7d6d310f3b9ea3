package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/streamania/backend/internal/apperr"
	"github.com/streamania/backend/internal/events"
	"github.com/streamania/backend/internal/models"
)

// StreamService is the stream registry plus live status lookups
type StreamService struct {
	*Registry[models.StreamConfig]
	store StreamStore
	video VideoStatusClient
	log   *logrus.Logger
}

func NewStreamService(store StreamStore, video VideoStatusClient, bus events.Bus, log *logrus.Logger) *StreamService {
	return &StreamService{
		Registry: NewRegistry[models.StreamConfig]("stream", store, bus, events.TopicStreamActive, nil, log),
		store:    store,
		video:    video,
		log:      log,
	}
}

// Create stores an inactive stream for a YouTube URL or bare video id
func (s *StreamService) Create(ctx context.Context, req models.CreateStreamRequest) (*models.StreamConfig, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	ref, err := models.ExtractVideoRef(req.Input)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}

	now := time.Now().UTC()
	st := &models.StreamConfig{
		ID:        uuid.New(),
		Title:     title,
		Platform:  models.PlatformYouTube,
		VideoRef:  ref,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateStream(ctx, st); err != nil {
		return nil, apperr.WriteFailed("create stream", err)
	}

	s.log.WithFields(logrus.Fields{"stream_id": st.ID, "video_ref": ref}).Info("stream created")
	return st, nil
}

func (s *StreamService) Delete(ctx context.Context, id uuid.UUID) error {
	st, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteStream(ctx, id); err != nil {
		return apperr.WriteFailed("delete stream", err)
	}
	if st.IsActive {
		s.PublishActive(ctx)
	}
	return nil
}

// CheckStatus asks the video API about a stream and stores the answer. A
// failed lookup is reported as unavailable, never as made-up numbers.
func (s *StreamService) CheckStatus(ctx context.Context, id uuid.UUID) (*models.StatusResult, error) {
	st, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result := &models.StatusResult{StreamID: id, CheckedAt: now}

	status, err := s.video.Lookup(ctx, st.VideoRef)
	if err != nil {
		s.log.WithError(err).WithField("stream_id", id).Warn("stream status lookup failed")
		result.Reason = err.Error()
		return result, nil
	}

	if err := s.store.UpdateLiveStatus(ctx, id, *status, now); err != nil {
		return nil, apperr.WriteFailed("update live status", err)
	}
	if st.IsActive && (status.IsLive != st.IsLive || status.ViewerCount != st.ViewerCount) {
		s.PublishActive(ctx)
	}

	result.Available = true
	result.Status = status
	return result, nil
}

// RefreshActive updates the live fields of the active stream. On lookup
// failure the stored values are left as they were.
func (s *StreamService) RefreshActive(ctx context.Context) error {
	active, err := s.store.Active(ctx)
	if err != nil {
		return err
	}
	if active == nil {
		return nil
	}

	status, err := s.video.Lookup(ctx, active.VideoRef)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", active.VideoRef, err)
	}

	if err := s.store.UpdateLiveStatus(ctx, active.ID, *status, time.Now().UTC()); err != nil {
		return apperr.WriteFailed("update live status", err)
	}

	if status.IsLive != active.IsLive || status.ViewerCount != active.ViewerCount {
		s.PublishActive(ctx)
	}
	return nil
}

// View adds the embed URL for clients
func View(st models.StreamConfig) models.StreamView {
	return models.StreamView{StreamConfig: st, EmbedURL: st.EmbedURL()}
}
