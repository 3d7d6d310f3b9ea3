package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/streamania/backend/internal/apperr"
	"github.com/streamania/backend/internal/models"
)

// QuizStore is the quizzes and quiz_answers collections of a Store
type QuizStore struct {
	s *Store
}

func copyQuiz(q models.Quiz) *models.Quiz {
	q.Options = append([]models.QuizOption(nil), q.Options...)
	q.ActivatedAt = copyTime(q.ActivatedAt)
	return &q
}

func (v *QuizStore) CreateQuiz(_ context.Context, q *models.Quiz) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.quizzes[q.ID]; ok {
		return apperr.ErrConflict
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = s.now()
	}
	q.IsActive = false
	q.ActivatedAt = nil
	s.quizzes[q.ID] = quizRow{seq: s.nextSeq(), Quiz: *copyQuiz(*q)}
	return nil
}

func (v *QuizStore) List(_ context.Context) ([]models.Quiz, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]quizRow, 0, len(s.quizzes))
	for _, r := range s.quizzes {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})

	out := make([]models.Quiz, len(rows))
	for i, r := range rows {
		out[i] = *copyQuiz(r.Quiz)
	}
	return out, nil
}

func (v *QuizStore) Get(_ context.Context, id uuid.UUID) (*models.Quiz, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.quizzes[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return copyQuiz(r.Quiz), nil
}

func (v *QuizStore) Activate(_ context.Context, id uuid.UUID, at time.Time) (*models.Quiz, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.quizzes[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	for otherID, r := range s.quizzes {
		if otherID != id && r.IsActive {
			r.IsActive = false
			s.quizzes[otherID] = r
		}
	}
	target.IsActive = true
	target.ActivatedAt = copyTime(&at)
	s.quizzes[id] = target
	return copyQuiz(target.Quiz), nil
}

func (v *QuizStore) Deactivate(_ context.Context, id uuid.UUID) (*models.Quiz, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.quizzes[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	r.IsActive = false
	s.quizzes[id] = r
	return copyQuiz(r.Quiz), nil
}

func (v *QuizStore) Active(_ context.Context) (*models.Quiz, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.quizzes {
		if r.IsActive {
			return copyQuiz(r.Quiz), nil
		}
	}
	return nil, nil
}

func (v *QuizStore) PlaceWager(_ context.Context, a *models.QuizAnswer) (int64, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quizzes[a.QuizID]
	if !ok {
		return 0, apperr.ErrNotFound
	}
	at := a.SubmittedAt
	if at.IsZero() {
		at = s.now()
	}
	if !q.AcceptsAnswersAt(at) {
		return 0, apperr.ErrQuizClosed
	}
	for _, existing := range s.answers {
		if existing.QuizID == a.QuizID && existing.UserID == a.UserID {
			return 0, apperr.ErrConflict
		}
	}
	p, ok := s.profiles[a.UserID]
	if !ok {
		return 0, apperr.ErrNotFound
	}
	if p.Wallet < a.BetAmount {
		return 0, apperr.ErrInsufficientFunds
	}

	p.Wallet -= a.BetAmount
	s.profiles[a.UserID] = p
	if a.SubmittedAt.IsZero() {
		a.SubmittedAt = s.now()
	}
	s.answers[a.ID] = answerRow{seq: s.nextSeq(), QuizAnswer: *a}
	return p.Wallet, nil
}

func (v *QuizStore) ListAnswers(_ context.Context, quizID uuid.UUID) ([]models.QuizAnswer, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	return v.answersFor(quizID), nil
}

// answersFor returns a quiz's answers newest first; callers hold the lock
func (v *QuizStore) answersFor(quizID uuid.UUID) []models.QuizAnswer {
	rows := []answerRow{}
	for _, r := range v.s.answers {
		if r.QuizID == quizID {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })

	out := make([]models.QuizAnswer, len(rows))
	for i, r := range rows {
		out[i] = r.QuizAnswer
	}
	return out
}

func (v *QuizStore) SettleAnswers(_ context.Context, quizID uuid.UUID, correctOptionID string, multiplier int64) (*models.Settlement, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.quizzes[quizID]; !ok {
		return nil, apperr.ErrNotFound
	}

	result := &models.Settlement{QuizID: quizID, Answers: []models.QuizAnswer{}}
	for id, r := range s.answers {
		if r.QuizID != quizID || r.IsCorrect != nil {
			continue
		}
		correct := r.SelectedOptionID == correctOptionID
		var won int64
		if correct {
			won = r.BetAmount * multiplier
			if p, ok := s.profiles[r.UserID]; ok {
				p.Wallet += won
				s.profiles[r.UserID] = p
			}
			result.Winners++
			result.TotalPayout += won
		}
		r.IsCorrect = &correct
		r.PointsWon = &won
		s.answers[id] = r
		result.Answers = append(result.Answers, r.QuizAnswer)
	}
	return result, nil
}
