package models

import (
	"testing"
	"time"
)

func validQuiz() Quiz {
	return Quiz{
		Question:        "Which planet is closest to the Sun?",
		Options:         []QuizOption{{ID: "a", Text: "Venus"}, {ID: "b", Text: "Mercury"}},
		CorrectOptionID: "b",
		TimeLimit:       30,
	}
}

func TestQuiz_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(q *Quiz)
		wantErr bool
	}{
		{name: "Valid quiz", mutate: func(q *Quiz) {}},
		{name: "Empty question", mutate: func(q *Quiz) { q.Question = " " }, wantErr: true},
		{name: "Single option", mutate: func(q *Quiz) { q.Options = q.Options[:1] }, wantErr: true},
		{name: "Empty option text", mutate: func(q *Quiz) { q.Options[0].Text = "" }, wantErr: true},
		{name: "Duplicate option id", mutate: func(q *Quiz) { q.Options[1].ID = "a"; q.CorrectOptionID = "a" }, wantErr: true},
		{name: "Unknown correct option", mutate: func(q *Quiz) { q.CorrectOptionID = "z" }, wantErr: true},
		{name: "Zero time limit", mutate: func(q *Quiz) { q.TimeLimit = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := validQuiz()
			tt.mutate(&q)
			err := q.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Quiz.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestQuiz_AcceptsAnswersAt(t *testing.T) {
	q := validQuiz()
	now := time.Now()
	if q.AcceptsAnswersAt(now) {
		t.Error("inactive quiz should not accept answers")
	}

	q.IsActive = true
	q.ActivatedAt = &now
	if !q.AcceptsAnswersAt(now.Add(10 * time.Second)) {
		t.Error("quiz should accept answers inside the time limit")
	}
	if q.AcceptsAnswersAt(now.Add(31 * time.Second)) {
		t.Error("quiz should not accept answers after the time limit")
	}
}

func TestQuiz_Public(t *testing.T) {
	q := validQuiz()
	pub := q.Public()
	if pub.CorrectOptionID != "" {
		t.Error("public view must hide the correct option")
	}
	if q.CorrectOptionID != "b" {
		t.Error("Public must not modify the original quiz")
	}
}
