// Copyright 2024 Matthew P. Dargan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chat

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func sessionKeyOf(t *testing.T, s *Sessions, cookies ...*http.Cookie) (string, *http.Cookie) {
	t.Helper()
	var got string
	h := s.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = KeyFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	cs := rec.Result().Cookies()
	if len(cs) != 1 {
		t.Fatalf("got %d cookies, want 1", len(cs))
	}
	return got, cs[0]
}

func TestSessions(t *testing.T) {
	t.Parallel()
	s := NewSessions([]byte("s3cret"), "nba_session", time.Hour, true)
	key, c := sessionKeyOf(t, s)
	if key == "" {
		t.Fatal("no session key on first visit")
	}
	if c.Name != "nba_session" || !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode || c.Path != "/" {
		t.Errorf("cookie = %+v", c)
	}
	again, _ := sessionKeyOf(t, s, c)
	if again != key {
		t.Errorf("returning visit key = %q, want %q", again, key)
	}
}

func TestSessionsRejectInvalidCookies(t *testing.T) {
	t.Parallel()
	s := NewSessions([]byte("s3cret"), "nba_session", time.Hour, false)
	key, c := sessionKeyOf(t, s)
	other := NewSessions([]byte("other"), "nba_session", time.Hour, false)
	_, forged := sessionKeyOf(t, other)
	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{"tampered", &http.Cookie{Name: c.Name, Value: c.Value + "x"}},
		{"wrong secret", forged},
		{"garbage", &http.Cookie{Name: c.Name, Value: "not-a-token"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, _ := sessionKeyOf(t, s, tt.cookie)
			if got == "" || got == key {
				t.Errorf("key = %q, want a new session", got)
			}
		})
	}
}

func TestSessionsExpired(t *testing.T) {
	t.Parallel()
	s := NewSessions([]byte("s3cret"), "nba_session", -time.Minute, false)
	key, c := sessionKeyOf(t, s)
	if again, _ := sessionKeyOf(t, s, &http.Cookie{Name: c.Name, Value: c.Value}); again == key {
		t.Error("expired session token was accepted")
	}
}
