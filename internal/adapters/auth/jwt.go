// Package auth verifies the bearer credential presented when a connection opens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/clanchat/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = fmt.Errorf("%w: invalid token", domain.ErrAuth)
	ErrExpiredToken = fmt.Errorf("%w: token has expired", domain.ErrAuth)
)

type Config struct {
	Secret string
	// Issuer is checked when non-empty.
	Issuer string
	// TTL of issued tokens; zero issues tokens without expiry.
	TTL time.Duration
}

// Claims carry the user id and display name, as the login service signs them.
type Claims struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	cfg Config
	now func() time.Time
}

func NewJWTVerifier(cfg Config) *JWTVerifier {
	return &JWTVerifier{cfg: cfg, now: time.Now}
}

func (v *JWTVerifier) Verify(token string) (*domain.User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return []byte(v.cfg.Secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	user, err := domain.NewUser(domain.UserID(claims.ID), claims.Username)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return user, nil
}

// Issue signs a token for the given user.
func (v *JWTVerifier) Issue(id domain.UserID, username string) (string, error) {
	now := v.now()
	claims := Claims{
		ID:       string(id),
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   v.cfg.Issuer,
			Subject:  string(id),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if v.cfg.TTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(v.cfg.TTL))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(v.cfg.Secret))
}
