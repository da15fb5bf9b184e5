// Copyright 2024 Matthew P. Dargan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics defines the chatbot's Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the chatbot's collectors.
type Metrics struct {
	reg *prometheus.Registry

	questions      *prometheus.CounterVec
	answerDuration prometheus.Histogram
	imageGuesses   *prometheus.CounterVec
	clears         prometheus.Counter
	documents      prometheus.Gauge
}

// New returns Metrics registered on a new registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		questions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nba_chat",
			Name:      "questions_total",
			Help:      "Questions answered, by outcome.",
		}, []string{"outcome"}),
		answerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nba_chat",
			Name:      "answer_duration_seconds",
			Help:      "Time spent answering a question.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 120},
		}),
		imageGuesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nba_chat",
			Name:      "image_guesses_total",
			Help:      "Player image guesses, by result.",
		}, []string{"result"}),
		clears: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nba_chat",
			Name:      "history_clears_total",
			Help:      "Chat histories cleared.",
		}),
		documents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nba_chat",
			Name:      "index_documents",
			Help:      "Documents in the in-memory index.",
		}),
	}
	m.reg.MustRegister(m.questions, m.answerDuration, m.imageGuesses, m.clears, m.documents)
	return m
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveAnswer records one answered question.
func (m *Metrics) ObserveAnswer(d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.questions.WithLabelValues(outcome).Inc()
	m.answerDuration.Observe(d.Seconds())
}

// ObserveImageGuess records whether a player image was guessed.
func (m *Metrics) ObserveImageGuess(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.imageGuesses.WithLabelValues(result).Inc()
}

// ObserveClear records a cleared history.
func (m *Metrics) ObserveClear() { m.clears.Inc() }

// SetDocuments records the index size.
func (m *Metrics) SetDocuments(n int) { m.documents.Set(float64(n)) }
