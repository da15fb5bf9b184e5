// Copyright 2024 Matthew P. Dargan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chat

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/matthewdargan/nba-chat/internal/logger"
	"github.com/matthewdargan/nba-chat/internal/metrics"
	"github.com/matthewdargan/nba-chat/internal/player"
	"github.com/matthewdargan/nba-chat/internal/query"
)

// FailedResponse is the reply recorded when a question could not be answered.
const FailedResponse = "Sorry, I could not get a response right now. Please try again."

//go:embed templates/index.html
var templates embed.FS

var indexTemplate = template.Must(template.ParseFS(templates, "templates/index.html"))

// An Answerer answers questions. [*query.Engine] is an Answerer.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// A Handler serves the chat page and the question API.
type Handler struct {
	answerer Answerer
	store    Store
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// NewHandler returns a [Handler].
func NewHandler(a Answerer, s Store, l *logger.Logger, m *metrics.Metrics) *Handler {
	return &Handler{answerer: a, store: s, log: l, metrics: m}
}

// RegisterRoutes registers the chat page under sessions and the question API.
func (h *Handler) RegisterRoutes(r chi.Router, sessions *Sessions) {
	r.Group(func(r chi.Router) {
		r.Use(sessions.Middleware)
		r.Get("/", h.index)
		r.Post("/", h.index)
		r.Post("/clear_chat", h.clearChat)
	})
	r.Post("/api/ask", h.ask)
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key, ok := KeyFromContext(ctx)
	if !ok {
		http.Error(w, "Missing session", http.StatusInternalServerError)
		return
	}
	if r.Method == http.MethodPost {
		q := strings.TrimSpace(r.PostFormValue("query"))
		if q == "" {
			http.Error(w, "Missing query", http.StatusBadRequest)
			return
		}
		if err := h.store.Append(ctx, key, h.turn(ctx, q)); err != nil {
			h.log.Error("failed to append turn", "error", err)
			http.Error(w, "Failed to save chat history", http.StatusInternalServerError)
			return
		}
	}
	hist, ok, err := h.store.Get(ctx, key)
	if err != nil {
		h.log.Error("failed to load chat history", "error", err)
		http.Error(w, "Failed to load chat history", http.StatusInternalServerError)
		return
	}
	if !ok {
		hist = History{}
		if err := h.store.Set(ctx, key, hist); err != nil {
			h.log.Error("failed to start chat history", "error", err)
			http.Error(w, "Failed to start chat history", http.StatusInternalServerError)
			return
		}
	}
	var b bytes.Buffer
	if err := indexTemplate.Execute(&b, struct{ History History }{hist}); err != nil {
		h.log.Error("failed to render chat", "error", err)
		http.Error(w, "Failed to render chat", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = b.WriteTo(w)
}

// turn answers q. A failed answer yields a complete apology turn.
func (h *Handler) turn(ctx context.Context, q string) Turn {
	ans, err := h.answer(ctx, q)
	if err != nil {
		h.log.Error("failed to answer question", "question", q, "error", err)
		return Turn{Query: q, Response: FailedResponse, Failed: true}
	}
	u, _ := h.imageURL(ans)
	return Turn{Query: q, Response: ans, PlayerImageURL: u}
}

func (h *Handler) answer(ctx context.Context, q string) (string, error) {
	start := time.Now()
	ans, err := h.answerer.Answer(ctx, q)
	h.metrics.ObserveAnswer(time.Since(start), err)
	return ans, err
}

func (h *Handler) imageURL(ans string) (string, bool) {
	u, ok := player.ImageURL(ans)
	h.metrics.ObserveImageGuess(ok)
	return u, ok
}

func (h *Handler) clearChat(w http.ResponseWriter, r *http.Request) {
	key, ok := KeyFromContext(r.Context())
	if !ok {
		http.Error(w, "Missing session", http.StatusInternalServerError)
		return
	}
	if err := h.store.Clear(r.Context(), key); err != nil {
		h.log.Error("failed to clear chat history", "error", err)
		http.Error(w, "Failed to clear chat history", http.StatusInternalServerError)
		return
	}
	h.metrics.ObserveClear()
	http.Redirect(w, r, "/", http.StatusFound)
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Response       string `json:"response"`
	PlayerImageURL string `json:"player_image_url,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}
	q := strings.TrimSpace(req.Question)
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing question"})
		return
	}
	ans, err := h.answer(r.Context(), q)
	if err != nil {
		h.log.Error("failed to answer question", "question", q, "error", err)
		var merr *query.ModelUnavailableError
		if errors.As(err, &merr) {
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: "Model unavailable"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to answer question"})
		return
	}
	u, _ := h.imageURL(ans)
	writeJSON(w, http.StatusOK, askResponse{Response: ans, PlayerImageURL: u})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
