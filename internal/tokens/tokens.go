package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	PurposeReset  = "reset"
	PurposeVerify = "verify"

	SessionTTL = 60 * time.Minute
	ResetTTL   = time.Hour
	VerifyTTL  = 24 * time.Hour
)

var (
	// ErrInvalidToken covers bad signatures, malformed tokens and purpose
	// mismatches. ErrExpiredToken means the signature checked out and only
	// the expiry has passed.
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Service signs and verifies every token the process issues. The secret is
// injected once at startup and never read from the environment per call.
type Service struct {
	Secret []byte
}

// MailClaims bind a contact address to a workflow. A reset token cannot
// verify an email and vice versa.
type MailClaims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// SessionClaims prove a completed login.
type SessionClaims struct {
	UserID uint64 `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Issue mints a signed token for the given address and purpose. There is no
// server-side token table: the token is valid from now until the ttl passes,
// regardless of how often it is presented.
func (s *Service) Issue(email, purpose string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := MailClaims{
		Email:   email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
}

// Verify checks signature, expiry and purpose, in that order, and returns
// the address the token was issued for.
func (s *Service) Verify(tokenStr, purpose string) (string, error) {
	var claims MailClaims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, s.keyFunc)
	if err != nil {
		return "", classify(err)
	}
	if !tkn.Valid || claims.Purpose != purpose {
		return "", ErrInvalidToken
	}
	return claims.Email, nil
}

// IssueSession mints the login token carrying identity and role.
func (s *Service) IssueSession(userID uint64, role string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(userID),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
}

func (s *Service) VerifySession(tokenStr string) (*SessionClaims, error) {
	var claims SessionClaims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, s.keyFunc)
	if err != nil {
		return nil, classify(err)
	}
	if !tkn.Valid {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func (s *Service) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, errors.New("unexpected sign method")
	}
	return s.Secret, nil
}

func classify(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrExpiredToken
	}
	return ErrInvalidToken
}
