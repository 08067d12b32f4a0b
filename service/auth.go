package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/gunhee098/my-next-project-sub000/models"
)

const tokenIssuer = "blog-server"

type Claims struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// Identity 校验通过的调用者，按参数显式传给各个 handler
type Identity struct {
	UserID    int64
	Email     string
	Name      string
	TokenID   string
	ExpiresAt time.Time
}

// RevocationStore 记录已注销的 token id
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type TokenManager struct {
	secret  []byte
	ttl     time.Duration
	revoked RevocationStore
	now     func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration, revoked RevocationStore) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("auth: empty signing secret")
	}
	if revoked == nil {
		revoked = NopRevocations{}
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, revoked: revoked, now: time.Now}, nil
}

// Issue 生成 HS256 JWT
func (m *TokenManager) Issue(user *models.User) (string, time.Time, error) {
	now := m.now()
	expireTime := now.Add(m.ttl)
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expireTime),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expireTime, nil
}

// Verify 格式错误、过期、签名不符、已注销，一律返回 ErrUnauthenticated
func (m *TokenManager) Verify(ctx context.Context, tokenStr string) (Identity, error) {
	if tokenStr == "" {
		return Identity{}, ErrUnauthenticated
	}
	var claims Claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil || !token.Valid || claims.UserID <= 0 || claims.ID == "" {
		return Identity{}, ErrUnauthenticated
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.Time.After(m.now()) {
		return Identity{}, ErrUnauthenticated
	}

	revoked, err := m.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return Identity{}, fmt.Errorf("auth: revocation lookup: %w", err)
	}
	if revoked {
		return Identity{}, ErrUnauthenticated
	}

	return Identity{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Name:      claims.Name,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Revoke 让 token 在剩余有效期内失效
func (m *TokenManager) Revoke(ctx context.Context, id Identity) error {
	ttl := id.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		return nil
	}
	return m.revoked.Revoke(ctx, id.TokenID, ttl)
}

// RedisRevocations 用 auth:revoked:<jti> 键做黑名单，键随 token 一起过期
type RedisRevocations struct {
	rdb *redis.Client
}

func NewRedisRevocations(rdb *redis.Client) *RedisRevocations {
	return &RedisRevocations{rdb: rdb}
}

const revokedKeyPrefix = "auth:revoked:"

func (r *RedisRevocations) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	return r.rdb.Set(ctx, revokedKeyPrefix+tokenID, 1, ttl).Err()
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.rdb.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// NopRevocations 未配置 Redis 时使用，注销只能靠客户端丢弃 token
type NopRevocations struct{}

func (NopRevocations) Revoke(context.Context, string, time.Duration) error { return nil }
func (NopRevocations) IsRevoked(context.Context, string) (bool, error)     { return false, nil }
