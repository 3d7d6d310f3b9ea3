package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/streamania/backend/internal/apperr"
	"github.com/streamania/backend/internal/database"
	"github.com/streamania/backend/internal/models"
)

type QuizRepository struct {
	db *database.DB
}

func NewQuizRepository(db *database.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

const quizColumns = `id, question, options, correct_option_id, is_active, time_limit, activated_at, created_at, created_by`

func scanQuiz(row rowScanner) (*models.Quiz, error) {
	q := &models.Quiz{}
	var options []byte
	if err := row.Scan(
		&q.ID,
		&q.Question,
		&options,
		&q.CorrectOptionID,
		&q.IsActive,
		&q.TimeLimit,
		&q.ActivatedAt,
		&q.CreatedAt,
		&q.CreatedBy,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(options, &q.Options); err != nil {
		return nil, fmt.Errorf("failed to decode quiz options: %w", err)
	}
	return q, nil
}

func (r *QuizRepository) CreateQuiz(ctx context.Context, q *models.Quiz) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("failed to encode quiz options: %w", err)
	}

	query := `
		INSERT INTO quizzes (id, question, options, correct_option_id, time_limit, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING is_active, created_at
	`
	err = r.db.QueryRowContext(ctx, query,
		q.ID,
		q.Question,
		options,
		q.CorrectOptionID,
		q.TimeLimit,
		q.CreatedBy,
	).Scan(&q.IsActive, &q.CreatedAt)
	if database.IsUniqueViolation(err, "") {
		return fmt.Errorf("quiz %s: %w", q.ID, apperr.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create quiz: %w", err)
	}
	q.ActivatedAt = nil
	return nil
}

// List returns every quiz, newest first
func (r *QuizRepository) List(ctx context.Context) ([]models.Quiz, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+quizColumns+` FROM quizzes ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}
	defer rows.Close()

	out := []models.Quiz{}
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quiz: %w", err)
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

func (r *QuizRepository) Get(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	q, err := scanQuiz(r.db.QueryRowContext(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "quiz")
	}
	return q, nil
}

func (r *QuizRepository) Active(ctx context.Context) (*models.Quiz, error) {
	q, err := scanQuiz(r.db.QueryRowContext(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE is_active`))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active quiz: %w", err)
	}
	return q, nil
}

// Activate makes id the only active quiz and stamps its activation time
func (r *QuizRepository) Activate(ctx context.Context, id uuid.UUID, at time.Time) (*models.Quiz, error) {
	var out *models.Quiz

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT true FROM quizzes WHERE id = $1 FOR UPDATE`, id).Scan(&exists); err != nil {
			return notFound(err, "quiz")
		}

		if _, err := tx.ExecContext(ctx, `UPDATE quizzes SET is_active = false WHERE is_active AND id <> $1`, id); err != nil {
			return fmt.Errorf("failed to deactivate quizzes: %w", err)
		}

		q, err := scanQuiz(tx.QueryRowContext(ctx,
			`UPDATE quizzes SET is_active = true, activated_at = $1 WHERE id = $2 RETURNING `+quizColumns,
			at, id,
		))
		if err != nil {
			return err
		}
		out = q
		return nil
	})

	if database.IsUniqueViolation(err, "quizzes_single_active") {
		return nil, fmt.Errorf("activate quiz: %w", apperr.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *QuizRepository) Deactivate(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	q, err := scanQuiz(r.db.QueryRowContext(ctx,
		`UPDATE quizzes SET is_active = false WHERE id = $1 RETURNING `+quizColumns, id))
	if err != nil {
		return nil, notFound(err, "quiz")
	}
	return q, nil
}

const answerColumns = `id, quiz_id, user_id, username, selected_option_id, bet_amount, is_correct, points_won, submitted_at`

func scanAnswer(row rowScanner) (*models.QuizAnswer, error) {
	a := &models.QuizAnswer{}
	err := row.Scan(
		&a.ID,
		&a.QuizID,
		&a.UserID,
		&a.Username,
		&a.SelectedOptionID,
		&a.BetAmount,
		&a.IsCorrect,
		&a.PointsWon,
		&a.SubmittedAt,
	)
	return a, err
}

// PlaceWager records the answer and debits the bet in one transaction. The
// quiz row is share-locked so it cannot close until the wager commits, and
// the debit only applies while the wallet covers the bet.
func (r *QuizRepository) PlaceWager(ctx context.Context, a *models.QuizAnswer) (int64, error) {
	var balance int64
	at := a.SubmittedAt
	if at.IsZero() {
		at = time.Now()
	}

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var q models.Quiz
		var activatedAt sql.NullTime
		err := tx.QueryRowContext(ctx,
			`SELECT is_active, activated_at, time_limit FROM quizzes WHERE id = $1 FOR SHARE`, a.QuizID,
		).Scan(&q.IsActive, &activatedAt, &q.TimeLimit)
		if err != nil {
			return notFound(err, "quiz")
		}
		if activatedAt.Valid {
			q.ActivatedAt = &activatedAt.Time
		}
		if !q.AcceptsAnswersAt(at) {
			return apperr.ErrQuizClosed
		}

		var exists bool

		err = tx.QueryRowContext(ctx, `
			INSERT INTO quiz_answers (id, quiz_id, user_id, username, selected_option_id, bet_amount)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING submitted_at
		`, a.ID, a.QuizID, a.UserID, a.Username, a.SelectedOptionID, a.BetAmount).Scan(&a.SubmittedAt)
		if database.IsUniqueViolation(err, "quiz_answers_quiz_user_key") {
			return fmt.Errorf("answer: %w", apperr.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("failed to record answer: %w", err)
		}

		err = tx.QueryRowContext(ctx,
			`UPDATE users SET wallet = wallet - $1, updated_at = NOW() WHERE id = $2 AND wallet >= $1 RETURNING wallet`,
			a.BetAmount, a.UserID,
		).Scan(&balance)
		if err == sql.ErrNoRows {
			if err := tx.QueryRowContext(ctx, `SELECT true FROM users WHERE id = $1`, a.UserID).Scan(&exists); err != nil {
				return notFound(err, "user")
			}
			return apperr.ErrInsufficientFunds
		}
		if err != nil {
			return fmt.Errorf("failed to debit wallet: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// ListAnswers returns a quiz's answers, newest first
func (r *QuizRepository) ListAnswers(ctx context.Context, quizID uuid.UUID) ([]models.QuizAnswer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+answerColumns+` FROM quiz_answers WHERE quiz_id = $1 ORDER BY submitted_at DESC`, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	defer rows.Close()

	out := []models.QuizAnswer{}
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// SettleAnswers grades the unsettled answers of a quiz and credits each
// winner bet*multiplier, all in one transaction.
func (r *QuizRepository) SettleAnswers(ctx context.Context, quizID uuid.UUID, correctOptionID string, multiplier int64) (*models.Settlement, error) {
	result := &models.Settlement{QuizID: quizID, Answers: []models.QuizAnswer{}}

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT true FROM quizzes WHERE id = $1`, quizID).Scan(&exists); err != nil {
			return notFound(err, "quiz")
		}

		rows, err := tx.QueryContext(ctx, `
			UPDATE quiz_answers
			SET is_correct = (selected_option_id = $2),
			    points_won = CASE WHEN selected_option_id = $2 THEN bet_amount * $3 ELSE 0 END
			WHERE quiz_id = $1 AND is_correct IS NULL
			RETURNING `+answerColumns,
			quizID, correctOptionID, multiplier,
		)
		if err != nil {
			return fmt.Errorf("failed to grade answers: %w", err)
		}
		for rows.Next() {
			a, err := scanAnswer(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan answer: %w", err)
			}
			result.Answers = append(result.Answers, *a)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, a := range result.Answers {
			if a.IsCorrect == nil || !*a.IsCorrect {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE users SET wallet = wallet + $1, updated_at = NOW() WHERE id = $2`,
				*a.PointsWon, a.UserID,
			); err != nil {
				return fmt.Errorf("failed to credit winner: %w", err)
			}
			result.Winners++
			result.TotalPayout += *a.PointsWon
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
