// Package auth verifies Telegram logins and issues the JWTs that guard the API.
// Only one Telegram user may use the service.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	// ErrInvalidLogin is returned for a Telegram login that fails the
	// signature, age or user check.
	ErrInvalidLogin = errors.New("invalid telegram login")
	// ErrInvalidToken is returned for a session token that does not verify.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Service turns verified Telegram logins into signed session tokens.
type Service struct {
	secret      []byte
	botToken    string
	allowedUser int64
	ttl         time.Duration
	log         *zap.Logger

	// Now returns the current time; tests replace it.
	Now func() time.Time
}

// NewService creates the auth service. tokenExpiryHours <= 0 falls back to 24.
func NewService(jwtSecret, botToken string, allowedUser int64, tokenExpiryHours int, logger *zap.Logger) *Service {
	if tokenExpiryHours <= 0 {
		tokenExpiryHours = 24
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		secret:      []byte(jwtSecret),
		botToken:    botToken,
		allowedUser: allowedUser,
		ttl:         time.Duration(tokenExpiryHours) * time.Hour,
		log:         logger.Named("auth"),
		Now:         time.Now,
	}
}

// Login verifies a Telegram login payload and returns a signed token.
func (s *Service) Login(l TelegramLogin) (string, error) {
	if err := VerifyTelegramLogin(l, s.botToken, s.Now()); err != nil {
		s.log.Warn("login rejected", zap.Int64("telegram_id", l.ID), zap.Error(err))
		return "", err
	}
	if l.ID != s.allowedUser {
		s.log.Warn("login from unknown user", zap.Int64("telegram_id", l.ID))
		return "", ErrInvalidLogin
	}
	s.log.Info("login accepted", zap.Int64("telegram_id", l.ID), zap.String("username", l.Username))
	return s.GenerateToken(l.ID)
}

// GenerateToken signs an HS256 token whose subject is the Telegram id.
func (s *Service) GenerateToken(telegramID int64) (string, error) {
	now := s.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(telegramID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses the token and returns the Telegram id it was issued to.
// Tokens for anyone but the allowed user are rejected.
func (s *Service) ValidateToken(tokenString string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.Now),
	)
	if err != nil || !parsed.Valid {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id != s.allowedUser {
		return 0, ErrInvalidToken
	}
	return id, nil
}
