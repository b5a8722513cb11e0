// Package auth issues and verifies the member session tokens handed out at
// login.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"backlog/api/internal/rbac"
	"backlog/api/internal/store"
	"backlog/api/internal/util"
)

const issuerName = "backlog"

// Claims describe the member a session was opened for, as they were at login.
// Subject is the member id and ID the session id.
type Claims struct {
	Role  rbac.Role `json:"role"`
	Stamp string    `json:"stamp"`
	jwt.RegisteredClaims
}

func (c Claims) MemberID() string {
	return c.Subject
}

func (c Claims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time.UTC()
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
	// ErrRevokedToken means the token is well formed but its member was
	// deleted or had their password or role changed since login.
	ErrRevokedToken = errors.New("revoked token")
)

const defaultTTL = 12 * time.Hour

// Issuer signs HS256 session tokens with one secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration, now func() time.Time) *Issuer {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: now}
}

// Issue opens a session for member.
func (i *Issuer) Issue(member store.Member) (string, Claims, error) {
	now := i.now()
	claims := Claims{
		Role:  rbac.Normalize(member.Role),
		Stamp: i.stamp(member.Password),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   member.ID,
			ID:        util.NewID("ses"),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign session token: %w", err)
	}
	return token, claims, nil
}

// Verify checks the signature and expiry of token.
func (i *Issuer) Verify(token string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrExpiredToken
	case err != nil:
		return Claims{}, ErrInvalidToken
	}
	if claims.Subject == "" || claims.ID == "" || claims.Stamp == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// Resolve verifies token and matches it against the member's current record.
func (i *Issuer) Resolve(token string, lookup func(id string) (store.Member, bool)) (store.Member, Claims, error) {
	claims, err := i.Verify(token)
	if err != nil {
		return store.Member{}, Claims{}, err
	}
	member, ok := lookup(claims.Subject)
	if !ok {
		return store.Member{}, Claims{}, ErrRevokedToken
	}
	if !hmac.Equal([]byte(claims.Stamp), []byte(i.stamp(member.Password))) {
		return store.Member{}, Claims{}, ErrRevokedToken
	}
	if rbac.Normalize(member.Role) != claims.Role {
		return store.Member{}, Claims{}, ErrRevokedToken
	}
	return member, claims, nil
}

// stamp fingerprints a stored password without exposing it in the token.
func (i *Issuer) stamp(password string) string {
	sum := hmac.New(sha256.New, i.secret)
	_, _ = sum.Write([]byte("stamp:" + password))
	return base64.RawURLEncoding.EncodeToString(sum.Sum(nil)[:12])
}
