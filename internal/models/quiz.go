package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const DefaultQuizTimeLimit = 30

type QuizOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Quiz struct {
	ID              uuid.UUID    `json:"id" db:"id"`
	Question        string       `json:"question" db:"question"`
	Options         []QuizOption `json:"options" db:"options"`
	CorrectOptionID string       `json:"correct_option_id,omitempty" db:"correct_option_id"`
	IsActive        bool         `json:"is_active" db:"is_active"`
	TimeLimit       int          `json:"time_limit" db:"time_limit"` // seconds
	ActivatedAt     *time.Time   `json:"activated_at,omitempty" db:"activated_at"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
	CreatedBy       uuid.UUID    `json:"created_by" db:"created_by"`
}

// Validate checks a quiz before it is stored
func (q *Quiz) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("question is required")
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("at least two options are required")
	}
	seen := make(map[string]bool, len(q.Options))
	for i, o := range q.Options {
		if strings.TrimSpace(o.ID) == "" || strings.TrimSpace(o.Text) == "" {
			return fmt.Errorf("option %d must not be empty", i+1)
		}
		if seen[o.ID] {
			return fmt.Errorf("duplicate option id %q", o.ID)
		}
		seen[o.ID] = true
	}
	if !seen[q.CorrectOptionID] {
		return fmt.Errorf("correct option must be one of the options")
	}
	if q.TimeLimit <= 0 {
		return fmt.Errorf("time limit must be positive")
	}
	return nil
}

func (q *Quiz) HasOption(id string) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// AcceptsAnswersAt reports whether the quiz is open for answers at t
func (q *Quiz) AcceptsAnswersAt(t time.Time) bool {
	if !q.IsActive || q.ActivatedAt == nil {
		return false
	}
	return !t.After(q.ActivatedAt.Add(time.Duration(q.TimeLimit) * time.Second))
}

// Public hides the answer key from players
func (q Quiz) Public() Quiz {
	q.CorrectOptionID = ""
	return q
}

type QuizAnswer struct {
	ID               uuid.UUID `json:"id" db:"id"`
	QuizID           uuid.UUID `json:"quiz_id" db:"quiz_id"`
	UserID           uuid.UUID `json:"user_id" db:"user_id"`
	Username         string    `json:"username" db:"username"`
	SelectedOptionID string    `json:"selected_option_id" db:"selected_option_id"`
	BetAmount        int64     `json:"bet_amount" db:"bet_amount"`
	IsCorrect        *bool     `json:"is_correct,omitempty" db:"is_correct"`
	PointsWon        *int64    `json:"points_won,omitempty" db:"points_won"`
	SubmittedAt      time.Time `json:"submitted_at" db:"submitted_at"`
}

type CreateQuizRequest struct {
	Question        string       `json:"question" binding:"required"`
	Options         []QuizOption `json:"options" binding:"required,min=2"`
	CorrectOptionID string       `json:"correct_option_id" binding:"required"`
	TimeLimit       int          `json:"time_limit"`
}

type SubmitAnswerRequest struct {
	SelectedOptionID string `json:"selected_option_id" binding:"required"`
	BetAmount        int64  `json:"bet_amount"`
}

// Settlement summarizes one quiz settlement pass
type Settlement struct {
	QuizID      uuid.UUID    `json:"quiz_id"`
	Answers     []QuizAnswer `json:"answers"`
	Winners     int          `json:"winners"`
	TotalPayout int64        `json:"total_payout"`
}
