package services

import (
	"crypto/subtle"
	"time"

	"golang.org/x/crypto/bcrypt"

	"folio/internal/auth"
	apperrors "folio/internal/errors"
)

// authService authenticates the single owner configured through the
// environment. There is no user table.
type authService struct {
	username     string
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

// NewAuthService creates a new AuthServicer. An empty passwordHash disables
// login entirely.
func NewAuthService(username, passwordHash, jwtSecret string, ttl time.Duration) AuthServicer {
	return &authService{
		username:     username,
		passwordHash: []byte(passwordHash),
		secret:       []byte(jwtSecret),
		ttl:          ttl,
		now:          time.Now,
	}
}

// Login verifies the credentials and issues a bearer token.
func (s *authService) Login(username, password string) (string, time.Time, error) {
	if len(s.passwordHash) == 0 {
		return "", time.Time{}, apperrors.ErrInvalidCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		return "", time.Time{}, apperrors.ErrInvalidCredentials
	}

	token, expiresAt, err := auth.IssueToken(s.secret, s.username, s.ttl, s.now())
	if err != nil {
		return "", time.Time{}, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return token, expiresAt, nil
}
