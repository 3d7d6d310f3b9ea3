// Package memstore keeps every Streamania collection in process memory. It
// backs STORAGE_DRIVER=memory and the service tests.
package memstore

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streamania/backend/internal/auth"
	"github.com/streamania/backend/internal/models"
)

type session struct {
	userID  uuid.UUID
	expires time.Time
}

type resetToken struct {
	userID  uuid.UUID
	expires time.Time
}

// Store holds all collections behind one mutex, so multi-record operations
// such as wagers and settlement are atomic.
type Store struct {
	mu  sync.Mutex
	seq int64
	now func() time.Time

	credentials map[uuid.UUID]auth.Credentials
	profiles    map[uuid.UUID]models.UserProfile
	sessions    map[string]session
	resetTokens map[string]resetToken

	streams map[uuid.UUID]streamRow
	quizzes map[uuid.UUID]quizRow
	answers map[uuid.UUID]answerRow

	messages map[uuid.UUID]messageRow
	actions  []actionRow
	statuses map[uuid.UUID]models.UserModerationStatus
	settings *models.ChatSettings
}

type streamRow struct {
	seq int64
	models.StreamConfig
}

type quizRow struct {
	seq int64
	models.Quiz
}

type answerRow struct {
	seq int64
	models.QuizAnswer
}

type messageRow struct {
	seq int64
	models.ChatMessage
}

type actionRow struct {
	seq int64
	models.ModerationAction
}

func New() *Store {
	return &Store{
		now:         func() time.Time { return time.Now().UTC() },
		credentials: map[uuid.UUID]auth.Credentials{},
		profiles:    map[uuid.UUID]models.UserProfile{},
		sessions:    map[string]session{},
		resetTokens: map[string]resetToken{},
		streams:     map[uuid.UUID]streamRow{},
		quizzes:     map[uuid.UUID]quizRow{},
		answers:     map[uuid.UUID]answerRow{},
		messages:    map[uuid.UUID]messageRow{},
		statuses:    map[uuid.UUID]models.UserModerationStatus{},
	}
}

// SetClock replaces the time source used for expiries
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

// Streams returns the stream collection view
func (s *Store) Streams() *StreamStore {
	return &StreamStore{s: s}
}

// Quizzes returns the quiz collection view
func (s *Store) Quizzes() *QuizStore {
	return &QuizStore{s: s}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
