package services

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
	"github.com/velvetgames/partyhub/pkg/logx"
	"github.com/velvetgames/partyhub/repositories"
	"go.uber.org/zap"
)

var (
	TokenNotFound = errors.New("token not found")
	TokenExpired  = errors.New("token has expired")
	AccountLocked = errors.New("account is locked")
)

// AuthService validates opaque bearer tokens presented at connect
// time. Validated tokens are memoized for a short TTL so rapid
// reconnects don't hammer the user store.
type AuthService struct {
	users  repositories.UserRepository
	secret []byte
	tokens *cache.Cache
}

func NewAuthService(users repositories.UserRepository, secret string) AuthService {
	return AuthService{
		users:  users,
		secret: []byte(secret),
		tokens: cache.New(5*time.Minute, 10*time.Minute),
	}
}

// Validate resolves a bearer token to its account. On success the
// account's last-login timestamp is updated as a side effect.
func (authService AuthService) Validate(ctx context.Context, token string) (*repositories.User, error) {
	if cached, found := authService.tokens.Get(token); found {
		return cached.(*repositories.User), nil
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, TokenNotFound
		}
		return authService.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, TokenExpired
		}
		return nil, TokenNotFound
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return nil, TokenNotFound
	}

	user, err := authService.users.FindById(ctx, subject)

	if err != nil {
		logx.Logger.Error(
			err.Error(),
			zap.String("desc", "could not look up user by id"),
			zap.String("userId", subject),
		)
		return nil, TokenNotFound
	}

	if user == nil {
		return nil, TokenNotFound
	}

	if user.Locked {
		return nil, AccountLocked
	}

	if err := authService.users.TouchLastLogin(ctx, user.Id); err != nil {
		logx.Logger.Error(
			err.Error(),
			zap.String("desc", "could not update last login"),
			zap.String("userId", user.Id),
		)
	}

	authService.tokens.Set(token, user, cache.DefaultExpiration)

	return user, nil
}
