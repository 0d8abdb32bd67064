package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Dan9191/ledger-service/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// TokenPair is what a successful login or refresh hands back.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type tokenClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// Login authenticates a user and returns an access and refresh token pair
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return TokenPair{}, models.ErrInvalidCredentials
		}
		return TokenPair{}, err
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return TokenPair{}, models.ErrInvalidCredentials
	}

	pair, err := s.issueTokens(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	s.log.Infof("User logged in: %s", user.Email)
	return pair, nil
}

// Refresh trades a valid refresh token for a new pair. Access tokens are refused.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	user, err := s.userFromToken(ctx, refreshToken, tokenTypeRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return s.issueTokens(user.ID)
}

// Authenticate resolves a bearer access token into an active principal
func (s *Service) Authenticate(ctx context.Context, tokenString string) (models.Principal, error) {
	user, err := s.userFromToken(ctx, tokenString, tokenTypeAccess)
	if err != nil {
		return models.Principal{}, err
	}
	return user.Principal(), nil
}

func (s *Service) issueTokens(userID int64) (TokenPair, error) {
	access, err := s.signToken(userID, tokenTypeAccess, s.config.JWTTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.signToken(userID, tokenTypeRefresh, s.config.JWTRefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) signToken(userID int64, kind string, ttl time.Duration) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Type: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate %s token: %w", kind, err)
	}
	return signed, nil
}

// userFromToken verifies the token and its type, then loads the active owner.
func (s *Service) userFromToken(ctx context.Context, tokenString, kind string) (*models.User, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid || claims.Type != kind {
		return nil, models.ErrUnauthorized
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, models.ErrUnauthorized
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, models.ErrUnauthorized
	}
	return user, nil
}
