package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every verification failure: bad signature, expiry,
// malformed token or a missing subject claim. Callers only ever need the
// one answer.
var ErrInvalidToken = errors.New("invalid token")

const defaultTTL = 15 * time.Minute

// Service issues and verifies signed bearer tokens carrying a subject
// (the user email) and an absolute expiry.
type Service struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
}

func NewService(secret []byte, algorithm string, ttl time.Duration) (*Service, error) {
	var method jwt.SigningMethod
	switch algorithm {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Service{secret: secret, method: method, ttl: ttl}, nil
}

func (s *Service) Issue(subject string) (string, error) {
	return s.IssueWithTTL(subject, s.ttl)
}

func (s *Service) IssueWithTTL(subject string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = defaultTTL
	}
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	return jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
}

// Verify checks the signature and expiry and returns the subject claim.
func (s *Service) Verify(raw string) (string, error) {
	parsed, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
