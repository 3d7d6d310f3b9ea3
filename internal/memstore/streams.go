package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/streamania/backend/internal/apperr"
	"github.com/streamania/backend/internal/models"
)

// StreamStore is the stream_configs collection of a Store
type StreamStore struct {
	s *Store
}

func (v *StreamStore) CreateStream(_ context.Context, st *models.StreamConfig) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.streams[st.ID]; ok {
		return apperr.ErrConflict
	}
	now := s.now()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = now
	}
	st.UpdatedAt = now
	st.IsActive = false
	s.streams[st.ID] = streamRow{seq: s.nextSeq(), StreamConfig: *st}
	return nil
}

func (v *StreamStore) List(_ context.Context) ([]models.StreamConfig, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]streamRow, 0, len(s.streams))
	for _, r := range s.streams {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})

	out := make([]models.StreamConfig, len(rows))
	for i, r := range rows {
		out[i] = r.StreamConfig
	}
	return out, nil
}

func (v *StreamStore) Get(_ context.Context, id uuid.UUID) (*models.StreamConfig, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.streams[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	st := r.StreamConfig
	return &st, nil
}

func (v *StreamStore) Activate(_ context.Context, id uuid.UUID, at time.Time) (*models.StreamConfig, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.streams[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	for otherID, r := range s.streams {
		if otherID != id && r.IsActive {
			r.IsActive = false
			r.UpdatedAt = at
			s.streams[otherID] = r
		}
	}
	target.IsActive = true
	target.UpdatedAt = at
	s.streams[id] = target

	st := target.StreamConfig
	return &st, nil
}

func (v *StreamStore) Deactivate(_ context.Context, id uuid.UUID) (*models.StreamConfig, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.streams[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	r.IsActive = false
	r.UpdatedAt = s.now()
	s.streams[id] = r

	st := r.StreamConfig
	return &st, nil
}

func (v *StreamStore) Active(_ context.Context) (*models.StreamConfig, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.streams {
		if r.IsActive {
			st := r.StreamConfig
			return &st, nil
		}
	}
	return nil, nil
}

func (v *StreamStore) UpdateLiveStatus(_ context.Context, id uuid.UUID, status models.StreamStatus, checkedAt time.Time) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.streams[id]
	if !ok {
		return apperr.ErrNotFound
	}
	r.IsLive = status.IsLive
	r.ViewerCount = status.ViewerCount
	if status.ThumbnailURL != "" {
		r.ThumbnailURL = status.ThumbnailURL
	}
	r.StatusCheckedAt = copyTime(&checkedAt)
	r.UpdatedAt = checkedAt
	s.streams[id] = r
	return nil
}

func (v *StreamStore) DeleteStream(_ context.Context, id uuid.UUID) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.streams[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(s.streams, id)
	for mid, m := range s.messages {
		if m.StreamID != nil && *m.StreamID == id {
			m.StreamID = nil
			s.messages[mid] = m
		}
	}
	return nil
}
