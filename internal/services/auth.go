package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/reconify-backend/internal/platform/ctxutil"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrNoSubject    = errors.New("token has no subject")
)

// JWTClaims carries the caller's email in sub and an optional display name.
type JWTClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type AuthService interface {
	// SetContextFromToken verifies an HS256 token and stores the caller on ctx.
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	IssueToken(email, name string, ttl time.Duration) (string, error)
}

type authService struct {
	log          *logger.Logger
	jwtSecretKey string
}

func NewAuthService(log *logger.Logger, jwtSecretKey string) AuthService {
	return &authService{
		log:          log.With("service", "AuthService"),
		jwtSecretKey: jwtSecretKey,
	}
}

func (as *authService) IssueToken(email, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  email,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.jwtSecretKey))
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return ctx, ErrMissingToken
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.jwtSecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		as.log.Debug("token rejected", "error", err)
		return ctx, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*JWTClaims)
	if !ok || !parsed.Valid {
		return ctx, ErrInvalidToken
	}
	email := strings.TrimSpace(claims.Subject)
	if email == "" {
		return ctx, ErrNoSubject
	}

	rd := ctxutil.GetRequestData(ctx)
	if rd == nil {
		rd = &ctxutil.RequestData{}
	}
	next := *rd
	next.Email = email
	next.Name = strings.TrimSpace(claims.Name)
	return ctxutil.WithRequestData(ctx, &next), nil
}
