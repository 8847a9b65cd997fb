package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/docexam/docexam-backend/internal/middleware"
	"github.com/docexam/docexam-backend/internal/model"
	"github.com/docexam/docexam-backend/internal/repository"
	"github.com/docexam/docexam-backend/internal/response"
	"github.com/docexam/docexam-backend/internal/service"
	"github.com/docexam/docexam-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionHandler handles the exam session lifecycle endpoints.
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// CreateSession godoc
// POST /api/v1/sessions
// Samples the question pool and starts a timed session. The response carries
// the full question set (answer keys stripped) and the server deadline.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, questions, err := h.sessionService.CreateSession(c.Request.Context(), claims.OwnerID, &req)
	if err != nil {
		var exhausted *service.PoolExhaustedError
		if errors.As(err, &exhausted) {
			response.FailWithFields(c, http.StatusConflict, response.ErrPoolExhausted, map[string]string{
				"requested": strconv.Itoa(exhausted.Requested),
				"available": strconv.Itoa(exhausted.Available),
			})
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"session":   session,
		"questions": questions,
	})
}

// GetState godoc
// GET /api/v1/sessions/:session_id/state
// Returns the live view: remaining time, questions, and saved answers.
func (h *SessionHandler) GetState(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	state, err := h.sessionService.GetSessionState(c.Request.Context(), sessionID, claims.OwnerID)
	if err != nil {
		h.failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// SubmitAnswer godoc
// PUT /api/v1/sessions/:session_id/answers
// Upserts one answer. Repeated calls for the same question overwrite.
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err := h.sessionService.SubmitAnswer(c.Request.Context(), sessionID, claims.OwnerID, req.QuestionID, req.Answer)
	if err != nil {
		h.failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// Submit godoc
// POST /api/v1/sessions/:session_id/submit
// Finishes the session and returns the graded result. Idempotent: retries
// and concurrent submits all converge on the same result.
func (h *SessionHandler) Submit(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	result, err := h.sessionService.SubmitSession(c.Request.Context(), sessionID, claims.OwnerID)
	if err != nil {
		h.failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// GetResult godoc
// GET /api/v1/sessions/:session_id/result
// Returns the graded outcome with answer keys and explanations. Only
// available once the session is terminal.
func (h *SessionHandler) GetResult(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	result, err := h.sessionService.GetResult(c.Request.Context(), sessionID, claims.OwnerID)
	if err != nil {
		h.failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// ListSessions godoc
// GET /api/v1/sessions
// Returns the owner's session history, newest first.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	sessions, total, err := h.sessionService.ListSessions(c.Request.Context(), claims.OwnerID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if sessions == nil {
		sessions = []model.SessionSummary{}
	}

	totalPages := (int(total) + perPage - 1) / perPage
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"sessions": sessions}, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: totalPages,
	})
}

// sessionParams extracts the authenticated claims and the session id path
// parameter, failing the request itself when either is missing.
func (h *SessionHandler) sessionParams(c *gin.Context) (*service.Claims, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, uuid.Nil, false
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}

	return claims, sessionID, true
}

// failFromError maps session service errors onto envelope codes.
func (h *SessionHandler) failFromError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotOwner):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrSessionNotActive):
		response.Fail(c, http.StatusConflict, response.ErrSessionNotActive)
	case errors.Is(err, service.ErrQuestionNotInSet):
		response.Fail(c, http.StatusBadRequest, response.ErrQuestionNotInSet)
	case errors.Is(err, service.ErrSessionNotFinished), errors.Is(err, service.ErrGradingInProgress):
		response.Fail(c, http.StatusConflict, response.ErrSessionNotFinished)
	case errors.Is(err, service.ErrSessionFailed):
		response.Fail(c, http.StatusInternalServerError, response.ErrSessionFailed)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
