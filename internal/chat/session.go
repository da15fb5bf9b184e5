// Copyright 2024 Matthew P. Dargan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chat

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type sessionKey struct{}

// KeyFromContext returns the session key stored by [Sessions.Middleware].
func KeyFromContext(ctx context.Context) (string, bool) {
	k, ok := ctx.Value(sessionKey{}).(string)
	return k, ok && k != ""
}

// Sessions issues and verifies session cookies. A cookie carries a signed
// token whose subject is a random session key; the session's history lives
// in a [Store] under that key.
type Sessions struct {
	secret []byte
	name   string
	ttl    time.Duration
	secure bool
}

// NewSessions returns [Sessions] signing cookies named name with secret.
func NewSessions(secret []byte, name string, ttl time.Duration, secure bool) *Sessions {
	return &Sessions{secret: secret, name: name, ttl: ttl, secure: secure}
}

// Middleware attaches a session key to every request, starting a new
// session when the request has no valid cookie, and refreshes the cookie.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := s.key(r)
		if !ok {
			key = uuid.NewString()
		}
		tok, err := s.sign(key)
		if err != nil {
			http.Error(w, "Failed to start session", http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     s.name,
			Value:    tok,
			Path:     "/",
			MaxAge:   int(s.ttl.Seconds()),
			Expires:  time.Now().Add(s.ttl),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   s.secure,
		})
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, key)))
	})
}

func (s *Sessions) sign(key string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   key,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Sessions) key(r *http.Request) (string, bool) {
	c, err := r.Cookie(s.name)
	if err != nil {
		return "", false
	}
	var claims jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(c.Value, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return "", false
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", false
	}
	return claims.Subject, true
}
