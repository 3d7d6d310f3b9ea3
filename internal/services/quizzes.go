package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/streamania/backend/internal/apperr"
	"github.com/streamania/backend/internal/events"
	"github.com/streamania/backend/internal/models"
)

// QuizService is the quiz registry plus wagering and settlement
type QuizService struct {
	*Registry[models.Quiz]
	store      QuizStore
	profiles   ProfileStore
	bus        events.Bus
	multiplier int64
	now        func() time.Time
	log        *logrus.Logger
}

func NewQuizService(store QuizStore, profiles ProfileStore, bus events.Bus, multiplier int64, log *logrus.Logger) *QuizService {
	return &QuizService{
		Registry:   NewRegistry[models.Quiz]("quiz", store, bus, events.TopicQuizActive, models.Quiz.Public, log),
		store:      store,
		profiles:   profiles,
		bus:        bus,
		multiplier: multiplier,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
}

func (s *QuizService) Create(ctx context.Context, author *models.Identity, req models.CreateQuizRequest) (*models.Quiz, error) {
	if author == nil {
		return nil, apperr.ErrNotAuthenticated
	}

	options := make([]models.QuizOption, len(req.Options))
	for i, o := range req.Options {
		options[i] = models.QuizOption{ID: strings.TrimSpace(o.ID), Text: strings.TrimSpace(o.Text)}
	}

	q := &models.Quiz{
		ID:              uuid.New(),
		Question:        strings.TrimSpace(req.Question),
		Options:         options,
		CorrectOptionID: strings.TrimSpace(req.CorrectOptionID),
		TimeLimit:       req.TimeLimit,
		CreatedAt:       s.now(),
		CreatedBy:       author.UserID,
	}
	if q.TimeLimit == 0 {
		q.TimeLimit = models.DefaultQuizTimeLimit
	}
	if err := q.Validate(); err != nil {
		return nil, apperr.Validation("%v", err)
	}

	if err := s.store.CreateQuiz(ctx, q); err != nil {
		return nil, apperr.WriteFailed("create quiz", err)
	}
	return q, nil
}

// SetActive opens the quiz for answers. A quiz it replaces is settled.
func (s *QuizService) SetActive(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	previous, err := s.store.Active(ctx)
	if err != nil {
		return nil, err
	}

	q, err := s.Registry.SetActive(ctx, id)
	if err != nil {
		return nil, err
	}

	if previous != nil && previous.ID != id {
		if _, err := s.settle(ctx, previous); err != nil {
			s.log.WithError(err).WithField("quiz_id", previous.ID).Error("failed to settle replaced quiz")
		}
	}
	return q, nil
}

// Deactivate closes the quiz and settles its answers
func (s *QuizService) Deactivate(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	q, err := s.Registry.Deactivate(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, q)
}

func (s *QuizService) settle(ctx context.Context, q *models.Quiz) (*models.Settlement, error) {
	result, err := s.store.SettleAnswers(ctx, q.ID, q.CorrectOptionID, s.multiplier)
	if err != nil {
		return nil, apperr.WriteFailed("settle quiz", err)
	}

	for _, a := range result.Answers {
		if a.PointsWon == nil || *a.PointsWon == 0 {
			continue
		}
		balance := int64(0)
		if p, err := s.profiles.GetProfile(ctx, a.UserID); err == nil {
			balance = p.Wallet
		}
		publishWallet(ctx, s.bus, s.log, a.UserID, *a.PointsWon, balance, "quiz_payout")
	}

	s.log.WithFields(logrus.Fields{
		"quiz_id": q.ID,
		"answers": len(result.Answers),
		"winners": result.Winners,
		"payout":  result.TotalPayout,
	}).Info("quiz settled")
	return result, nil
}

// SubmitAnswer places the caller's wager on an option of an open quiz
func (s *QuizService) SubmitAnswer(ctx context.Context, id *models.Identity, quizID uuid.UUID, req models.SubmitAnswerRequest) (*models.QuizAnswer, error) {
	if id == nil {
		return nil, apperr.ErrNotAuthenticated
	}
	if req.BetAmount <= 0 {
		return nil, apperr.Validation("bet amount must be positive")
	}

	q, err := s.store.Get(ctx, quizID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !q.AcceptsAnswersAt(now) {
		return nil, apperr.ErrQuizClosed
	}
	if !q.HasOption(req.SelectedOptionID) {
		return nil, apperr.Validation("unknown option %q", req.SelectedOptionID)
	}

	profile, err := s.profiles.GetProfile(ctx, id.UserID)
	if err != nil {
		return nil, err
	}

	answer := &models.QuizAnswer{
		ID:               uuid.New(),
		QuizID:           quizID,
		UserID:           id.UserID,
		Username:         profile.Username,
		SelectedOptionID: req.SelectedOptionID,
		BetAmount:        req.BetAmount,
		SubmittedAt:      now,
	}
	balance, err := s.store.PlaceWager(ctx, answer)
	if err != nil {
		return nil, apperr.WriteFailed("place wager", err)
	}

	publishWallet(ctx, s.bus, s.log, id.UserID, -req.BetAmount, balance, "quiz_wager")
	return answer, nil
}

func (s *QuizService) GetQuizAnswers(ctx context.Context, quizID uuid.UUID) ([]models.QuizAnswer, error) {
	if _, err := s.store.Get(ctx, quizID); err != nil {
		return nil, err
	}
	return s.store.ListAnswers(ctx, quizID)
}
