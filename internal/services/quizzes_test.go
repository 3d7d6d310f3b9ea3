package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/streamania/backend/internal/apperr"
	"github.com/streamania/backend/internal/events"
	"github.com/streamania/backend/internal/models"
)

func createQuiz(t *testing.T, env *testEnv, author *models.Identity) *models.Quiz {
	t.Helper()
	q, err := env.quizzes.Create(context.Background(), author, models.CreateQuizRequest{
		Question:        "Who scores first?",
		Options:         []models.QuizOption{{ID: "home", Text: "Home"}, {ID: "away", Text: "Away"}},
		CorrectOptionID: "home",
	})
	if err != nil {
		t.Fatalf("Create quiz error: %v", err)
	}
	return q
}

func TestQuizService_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	admin := env.signUp(t, "admin")
	ctx := context.Background()

	q := createQuiz(t, env, admin)
	if q.TimeLimit != models.DefaultQuizTimeLimit {
		t.Errorf("TimeLimit = %d, want default", q.TimeLimit)
	}
	if q.IsActive {
		t.Error("new quizzes must be inactive")
	}

	bad := []models.CreateQuizRequest{
		{Question: "Q", Options: []models.QuizOption{{ID: "a", Text: "A"}}, CorrectOptionID: "a"},
		{Question: "Q", Options: []models.QuizOption{{ID: "a", Text: "A"}, {ID: "b", Text: "B"}}, CorrectOptionID: "c"},
		{Question: "", Options: []models.QuizOption{{ID: "a", Text: "A"}, {ID: "b", Text: "B"}}, CorrectOptionID: "a"},
		{Question: "Q", Options: []models.QuizOption{{ID: "a", Text: "A"}, {ID: "b", Text: "B"}}, CorrectOptionID: "a", TimeLimit: -5},
	}
	for i, req := range bad {
		if _, err := env.quizzes.Create(ctx, admin, req); !errors.Is(err, apperr.ErrValidationFailed) {
			t.Errorf("case %d: expected ErrValidationFailed, got %v", i, err)
		}
	}
}

func TestQuizService_ActivationHidesAnswerKey(t *testing.T) {
	env := newTestEnv(t)
	admin := env.signUp(t, "admin")
	q := createQuiz(t, env, admin)
	ch := subscribe(t, env.bus, events.TopicQuizActive)

	if _, err := env.quizzes.SetActive(context.Background(), q.ID); err != nil {
		t.Fatalf("SetActive error: %v", err)
	}

	var published models.Quiz
	if err := nextEvent(t, ch).Decode(&published); err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if published.ID != q.ID || published.CorrectOptionID != "" {
		t.Fatalf("expected public view of the quiz, got %+v", published)
	}
}

func TestQuizService_SubmitAndSettle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.signUp(t, "admin")
	alice := env.signUp(t, "alice")
	bob := env.signUp(t, "bob")
	q := createQuiz(t, env, admin)

	if _, err := env.quizzes.SubmitAnswer(ctx, alice, q.ID, models.SubmitAnswerRequest{SelectedOptionID: "home", BetAmount: 100}); !errors.Is(err, apperr.ErrQuizClosed) {
		t.Fatalf("expected ErrQuizClosed before activation, got %v", err)
	}

	if _, err := env.quizzes.SetActive(ctx, q.ID); err != nil {
		t.Fatalf("SetActive error: %v", err)
	}

	cases := []struct {
		name string
		id   *models.Identity
		req  models.SubmitAnswerRequest
		want error
	}{
		{"anonymous", nil, models.SubmitAnswerRequest{SelectedOptionID: "home", BetAmount: 1}, apperr.ErrNotAuthenticated},
		{"zero bet", alice, models.SubmitAnswerRequest{SelectedOptionID: "home", BetAmount: 0}, apperr.ErrValidationFailed},
		{"unknown option", alice, models.SubmitAnswerRequest{SelectedOptionID: "draw", BetAmount: 1}, apperr.ErrValidationFailed},
		{"over wallet", alice, models.SubmitAnswerRequest{SelectedOptionID: "home", BetAmount: 5000}, apperr.ErrInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.quizzes.SubmitAnswer(ctx, tc.id, q.ID, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if _, err := env.quizzes.SubmitAnswer(ctx, alice, q.ID, models.SubmitAnswerRequest{SelectedOptionID: "home", BetAmount: 100}); err != nil {
		t.Fatalf("alice SubmitAnswer error: %v", err)
	}
	if _, err := env.quizzes.SubmitAnswer(ctx, alice, q.ID, models.SubmitAnswerRequest{SelectedOptionID: "away", BetAmount: 100}); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected ErrConflict for a second answer, got %v", err)
	}
	if _, err := env.quizzes.SubmitAnswer(ctx, bob, q.ID, models.SubmitAnswerRequest{SelectedOptionID: "away", BetAmount: 200}); err != nil {
		t.Fatalf("bob SubmitAnswer error: %v", err)
	}

	if got := mustProfile(t, env, alice.UserID).Wallet; got != 900 {
		t.Fatalf("alice wallet after wager = %d, want 900", got)
	}

	settlement, err := env.quizzes.Deactivate(ctx, q.ID)
	if err != nil {
		t.Fatalf("Deactivate error: %v", err)
	}
	if settlement.Winners != 1 || settlement.TotalPayout != 200 {
		t.Fatalf("unexpected settlement %+v", settlement)
	}

	if got := mustProfile(t, env, alice.UserID).Wallet; got != 1100 {
		t.Errorf("alice wallet = %d, want 1100", got)
	}
	if got := mustProfile(t, env, bob.UserID).Wallet; got != 800 {
		t.Errorf("bob wallet = %d, want 800", got)
	}

	// settling again pays nothing
	again, err := env.quizzes.Deactivate(ctx, q.ID)
	if err != nil {
		t.Fatalf("second Deactivate error: %v", err)
	}
	if again.TotalPayout != 0 {
		t.Fatalf("expected idempotent settlement, got payout %d", again.TotalPayout)
	}

	answers, _ := env.quizzes.GetQuizAnswers(ctx, q.ID)
	if len(answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(answers))
	}
	for _, a := range answers {
		if a.IsCorrect == nil || a.PointsWon == nil {
			t.Fatalf("expected answer %s to be settled", a.Username)
		}
	}
}

func TestQuizService_TimeLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.signUp(t, "admin")
	alice := env.signUp(t, "alice")
	q := createQuiz(t, env, admin)

	_, _ = env.quizzes.SetActive(ctx, q.ID)

	env.quizzes.now = func() time.Time { return time.Now().UTC().Add(time.Minute) }
	_, err := env.quizzes.SubmitAnswer(ctx, alice, q.ID, models.SubmitAnswerRequest{SelectedOptionID: "home", BetAmount: 10})
	if !errors.Is(err, apperr.ErrQuizClosed) {
		t.Fatalf("expected ErrQuizClosed after the time limit, got %v", err)
	}
}

func TestQuizService_ReplacingActiveQuizSettlesIt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.signUp(t, "admin")
	alice := env.signUp(t, "alice")
	first := createQuiz(t, env, admin)
	second := createQuiz(t, env, admin)

	_, _ = env.quizzes.SetActive(ctx, first.ID)
	if _, err := env.quizzes.SubmitAnswer(ctx, alice, first.ID, models.SubmitAnswerRequest{SelectedOptionID: "home", BetAmount: 50}); err != nil {
		t.Fatalf("SubmitAnswer error: %v", err)
	}

	if _, err := env.quizzes.SetActive(ctx, second.ID); err != nil {
		t.Fatalf("SetActive(second) error: %v", err)
	}

	if got := mustProfile(t, env, alice.UserID).Wallet; got != 1050 {
		t.Fatalf("wallet = %d, want 1050 after replaced quiz was settled", got)
	}

	if _, err := env.quizzes.GetQuizAnswers(ctx, uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
