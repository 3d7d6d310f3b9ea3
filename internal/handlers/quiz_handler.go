package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/streamania/backend/internal/middleware"
	"github.com/streamania/backend/internal/models"
	"github.com/streamania/backend/internal/services"
)

type QuizHandler struct {
	quizzes *services.QuizService
	log     *logrus.Logger
}

func NewQuizHandler(quizzes *services.QuizService, log *logrus.Logger) *QuizHandler {
	return &QuizHandler{quizzes: quizzes, log: log}
}

// ListQuizzes hides answer keys unless the route is behind AdminMiddleware
func (h *QuizHandler) ListQuizzes(c *gin.Context) {
	list, err := h.quizzes.ListAll(c.Request.Context())
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	if !middleware.IsAdmin(c) {
		for i := range list {
			list[i] = list[i].Public()
		}
	}
	c.JSON(http.StatusOK, list)
}

func (h *QuizHandler) GetActive(c *gin.Context) {
	q, err := h.quizzes.Active(c.Request.Context())
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	if q == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, q.Public())
}

func (h *QuizHandler) SubmitAnswer(c *gin.Context) {
	quizID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req models.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	answer, err := h.quizzes.SubmitAnswer(c.Request.Context(), middleware.Identity(c), quizID, req)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, answer)
}

func (h *QuizHandler) CreateQuiz(c *gin.Context) {
	var req models.CreateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	q, err := h.quizzes.Create(c.Request.Context(), middleware.Identity(c), req)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

func (h *QuizHandler) Activate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	q, err := h.quizzes.SetActive(c.Request.Context(), id)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// Deactivate closes the quiz and returns its settlement
func (h *QuizHandler) Deactivate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	settlement, err := h.quizzes.Deactivate(c.Request.Context(), id)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, settlement)
}

func (h *QuizHandler) ListAnswers(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	answers, err := h.quizzes.GetQuizAnswers(c.Request.Context(), id)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, answers)
}
