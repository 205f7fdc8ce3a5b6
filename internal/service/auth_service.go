package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/xxxsen/studynote/internal/model"
	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
	"github.com/xxxsen/studynote/internal/pkg/jwt"
	"github.com/xxxsen/studynote/internal/pkg/password"
)

const minPasswordLen = 8

type AuthService struct {
	users     UserStore
	jwtSecret []byte
	jwtTTL    time.Duration
}

func NewAuthService(users UserStore, secret []byte, ttl time.Duration) *AuthService {
	return &AuthService{users: users, jwtSecret: secret, jwtTTL: ttl}
}

func (s *AuthService) Register(ctx context.Context, email, plainPassword string) (*model.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, "", fmt.Errorf("bad email: %w", appErr.ErrInvalid)
	}
	if len(plainPassword) < minPasswordLen {
		return nil, "", fmt.Errorf("password shorter than %d: %w", minPasswordLen, appErr.ErrInvalid)
	}
	hash, err := password.Hash(plainPassword)
	if errors.Is(err, password.ErrTooLong) {
		return nil, "", fmt.Errorf("%v: %w", err, appErr.ErrInvalid)
	}
	if err != nil {
		return nil, "", err
	}
	now := time.Now().Unix()
	user := &model.User{
		ID:           newID(),
		Email:        email,
		PasswordHash: hash,
		Ctime:        now,
		Mtime:        now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", err
	}
	token, err := jwt.GenerateToken(user.ID, user.Email, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *AuthService) Login(ctx context.Context, email, plainPassword string) (*model.User, string, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, "", appErr.ErrUnauthorized
	}
	if err := password.Compare(user.PasswordHash, plainPassword); err != nil {
		return nil, "", appErr.ErrUnauthorized
	}
	token, err := jwt.GenerateToken(user.ID, user.Email, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}
