package service

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/docexam/docexam-backend/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when an access key does not match.
var ErrInvalidCredentials = errors.New("invalid credentials")

// TokenType tags the audience of a token. Only owners exist today; the tag
// keeps tokens from other future audiences out of owner endpoints.
type TokenType string

const TokenTypeOwner TokenType = "owner"

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
	OwnerID   int       `json:"owner_id"`
}

// AuthService issues and validates owner tokens. Owners authenticate with a
// long-lived access key (stored only as a bcrypt hash) and work with
// short-lived JWTs from then on.
type AuthService struct {
	cfg *config.Config
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{cfg: cfg}
}

// HashAccessKey hashes an access key with the configured bcrypt cost.
func (s *AuthService) HashAccessKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckAccessKey compares a plaintext access key against its bcrypt hash.
func (s *AuthService) CheckAccessKey(hash, key string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// GenerateOwnerToken creates a signed JWT for an owner.
func (s *AuthService) GenerateOwnerToken(ownerID int) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.JWTExpiry)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.Itoa(ownerID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenType: TokenTypeOwner,
		OwnerID:   ownerID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.TokenType != TokenTypeOwner {
		return nil, errors.New("wrong token audience")
	}

	return claims, nil
}
