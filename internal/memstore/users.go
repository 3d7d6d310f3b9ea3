package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/streamania/backend/internal/apperr"
	"github.com/streamania/backend/internal/auth"
	"github.com/streamania/backend/internal/models"
)

func (s *Store) CreateCredentials(_ context.Context, c *auth.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.credentials {
		if existing.Email == c.Email {
			return apperr.ErrConflict
		}
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	s.credentials[c.UserID] = *c
	return nil
}

func (s *Store) GetCredentials(_ context.Context, userID uuid.UUID) (*auth.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.credentials[userID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &c, nil
}

func (s *Store) GetCredentialsByEmail(_ context.Context, email string) (*auth.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.credentials {
		if c.Email == email {
			c := c
			return &c, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (s *Store) UpdateCredentials(_ context.Context, userID uuid.UUID, displayName, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.credentials[userID]
	if !ok {
		return apperr.ErrNotFound
	}
	for id, other := range s.credentials {
		if id != userID && other.Email == email {
			return apperr.ErrConflict
		}
	}
	c.DisplayName = displayName
	c.Email = email
	s.credentials[userID] = c
	return nil
}

func (s *Store) SetPasswordHash(_ context.Context, userID uuid.UUID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.credentials[userID]
	if !ok {
		return apperr.ErrNotFound
	}
	c.PasswordHash = hash
	s.credentials[userID] = c
	return nil
}

func (s *Store) DeleteCredentials(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.credentials[userID]; !ok {
		return apperr.ErrNotFound
	}
	delete(s.credentials, userID)
	return nil
}

func (s *Store) SaveResetToken(_ context.Context, token string, userID uuid.UUID, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetTokens[token] = resetToken{userID: userID, expires: s.now().Add(ttl)}
	return nil
}

func (s *Store) ConsumeResetToken(_ context.Context, token string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rt, ok := s.resetTokens[token]
	delete(s.resetTokens, token)
	if !ok || !s.now().Before(rt.expires) {
		return uuid.Nil, apperr.ErrNotFound
	}
	return rt.userID, nil
}

func (s *Store) CreateSession(_ context.Context, sessionID string, userID uuid.UUID, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sessionID] = session{userID: userID, expires: s.now().Add(ttl)}
	return nil
}

func (s *Store) SessionExists(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ss, ok := s.sessions[sessionID]
	if !ok {
		return false, nil
	}
	if !s.now().Before(ss.expires) {
		delete(s.sessions, sessionID)
		return false, nil
	}
	return true, nil
}

func (s *Store) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

func (s *Store) CreateProfile(_ context.Context, p *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.profiles {
		if existing.Username == p.Username {
			return apperr.ErrDuplicateUsername
		}
	}
	if _, ok := s.profiles[p.ID]; ok {
		return apperr.ErrConflict
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.profiles[p.ID] = *p
	return nil
}

func (s *Store) GetProfile(_ context.Context, id uuid.UUID) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &p, nil
}

func (s *Store) FindByUsername(_ context.Context, username string) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.profiles {
		if p.Username == username {
			p := p
			return &p, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (s *Store) UpdateProfile(_ context.Context, id uuid.UUID, username, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return apperr.ErrNotFound
	}
	for otherID, other := range s.profiles {
		if otherID != id && other.Username == username {
			return apperr.ErrDuplicateUsername
		}
	}
	p.Username = username
	p.Email = email
	s.profiles[id] = p
	return nil
}

func (s *Store) ListProfiles(_ context.Context) ([]models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.UserProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) IncrementWallet(_ context.Context, id uuid.UUID, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return 0, apperr.ErrNotFound
	}
	p.Wallet += delta
	s.profiles[id] = p
	return p.Wallet, nil
}
