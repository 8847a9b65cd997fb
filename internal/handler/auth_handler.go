package handler

import (
	"net/http"

	"github.com/docexam/docexam-backend/internal/middleware"
	"github.com/docexam/docexam-backend/internal/model"
	"github.com/docexam/docexam-backend/internal/repository"
	"github.com/docexam/docexam-backend/internal/response"
	"github.com/docexam/docexam-backend/internal/service"
	"github.com/docexam/docexam-backend/internal/validator"
	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService *service.AuthService
	ownerRepo   *repository.OwnerRepository
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, ownerRepo *repository.OwnerRepository) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		ownerRepo:   ownerRepo,
	}
}

// Token godoc
// POST /api/v1/auth/token
// Exchanges an owner id + access key for a short-lived JWT.
func (h *AuthHandler) Token(c *gin.Context) {
	var req model.TokenRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	owner, err := h.ownerRepo.GetByID(c.Request.Context(), req.OwnerID)
	if err != nil {
		// Same code as a bad key; do not reveal which part was wrong.
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	if err := h.authService.CheckAccessKey(owner.AccessKeyHash, req.AccessKey); err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	token, expiresAt, err := h.authService.GenerateOwnerToken(owner.ID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, model.TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Owner:     *owner,
	})
}

// GetProfile godoc
// GET /api/v1/auth/me
// Returns the profile of the currently authenticated owner.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	owner, err := h.ownerRepo.GetByID(c.Request.Context(), claims.OwnerID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"owner": owner})
}
