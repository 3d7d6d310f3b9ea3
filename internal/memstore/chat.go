package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/streamania/backend/internal/apperr"
	"github.com/streamania/backend/internal/models"
)

func (s *Store) CreateMessage(_ context.Context, m *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.Timestamp.IsZero() {
		m.Timestamp = s.now()
	}
	s.messages[m.ID] = messageRow{seq: s.nextSeq(), ChatMessage: *m}
	return nil
}

func (s *Store) GetMessage(_ context.Context, id uuid.UUID) (*models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.messages[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	m := r.ChatMessage
	return &m, nil
}

func (s *Store) sortedMessages(keep func(models.ChatMessage) bool) []models.ChatMessage {
	rows := []messageRow{}
	for _, r := range s.messages {
		if keep(r.ChatMessage) {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Timestamp.Equal(rows[j].Timestamp) {
			return rows[i].Timestamp.After(rows[j].Timestamp)
		}
		return rows[i].seq > rows[j].seq
	})
	out := make([]models.ChatMessage, len(rows))
	for i, r := range rows {
		out[i] = r.ChatMessage
	}
	return out
}

func (s *Store) ListMessages(_ context.Context, streamID *uuid.UUID, limit int) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.sortedMessages(func(m models.ChatMessage) bool {
		if m.IsDeleted {
			return false
		}
		return streamID == nil || (m.StreamID != nil && *m.StreamID == *streamID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SoftDeleteMessage(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.messages[id]
	if !ok {
		return apperr.ErrNotFound
	}
	r.IsDeleted = true
	s.messages[id] = r
	return nil
}

func (s *Store) SoftDeleteUserMessages(_ context.Context, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, r := range s.messages {
		if r.UserID == userID && !r.IsDeleted {
			r.IsDeleted = true
			s.messages[id] = r
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateAction(_ context.Context, a *models.ModerationAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	s.actions = append(s.actions, actionRow{seq: s.nextSeq(), ModerationAction: *a})
	return nil
}

func (s *Store) ListActions(_ context.Context, userID *uuid.UUID, limit int) ([]models.ModerationAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.ModerationAction{}
	for i := len(s.actions) - 1; i >= 0; i-- {
		a := s.actions[i].ModerationAction
		if userID != nil && a.UserID != *userID {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) GetStatus(_ context.Context, userID uuid.UUID) (*models.UserModerationStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statuses[userID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return copyStatus(st), nil
}

func (s *Store) PatchStatus(_ context.Context, userID uuid.UUID, patch models.ModerationStatusPatch) (*models.UserModerationStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statuses[userID]
	if !ok {
		st = models.UserModerationStatus{UserID: userID}
	}
	patch.Apply(&st)
	st.UpdatedAt = s.now()
	s.statuses[userID] = st
	return copyStatus(st), nil
}

func (s *Store) ListRestricted(_ context.Context) ([]models.UserModerationStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.UserModerationStatus{}
	for _, st := range s.statuses {
		if st.IsMuted || st.IsBanned {
			out = append(out, *copyStatus(st))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *Store) ListExpiredMutes(_ context.Context, now time.Time) ([]models.UserModerationStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.UserModerationStatus{}
	for _, st := range s.statuses {
		if st.IsMuted && st.MuteExpiresAt != nil && !now.Before(*st.MuteExpiresAt) {
			out = append(out, *copyStatus(st))
		}
	}
	return out, nil
}

func copyStatus(st models.UserModerationStatus) *models.UserModerationStatus {
	st.MuteExpiresAt = copyTime(st.MuteExpiresAt)
	st.LastMessageAt = copyTime(st.LastMessageAt)
	return &st
}

func (s *Store) GetSettings(_ context.Context) (*models.ChatSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settings == nil {
		return nil, apperr.ErrNotFound
	}
	out := *s.settings
	out.BannedKeywords = copyStrings(out.BannedKeywords)
	out.AutoDeleteKeywords = copyStrings(out.AutoDeleteKeywords)
	return &out, nil
}

func (s *Store) SaveSettings(_ context.Context, settings models.ChatSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings.BannedKeywords = copyStrings(settings.BannedKeywords)
	settings.AutoDeleteKeywords = copyStrings(settings.AutoDeleteKeywords)
	s.settings = &settings
	return nil
}
