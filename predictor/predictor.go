// Package predictor estimates request durations from past observations and
// exports them as Prometheus metrics. Logging an observation never fails and
// never influences the response it was measured on.
package predictor

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AntoinePinto/docu-talk/pkg/logger"
)

// Metric names.
const (
	MetricAskDuration    = "ask_chatbot_duration"
	MetricCreateDuration = "create_chatbot_duration"
)

const maxSamples = 100

// SampleStore persists rolling samples so estimates survive restarts.
// Implementations are optional; the predictor degrades to in-memory history.
type SampleStore interface {
	Append(ctx context.Context, metric string, payload string, keep int64) error
	List(ctx context.Context, metric string, limit int64) ([]string, error)
}

// AskSample is one completed ask observation.
type AskSample struct {
	Duration    time.Duration `json:"-"`
	Seconds     float64       `json:"seconds"`
	TokenCount  int           `json:"token_count"`
	NbDocuments int           `json:"nb_documents"`
	TotalPages  int           `json:"total_pages"`
	Model       string        `json:"model"`
	ChatbotID   string        `json:"-"`
}

// CreateSample is one completed creation observation.
type CreateSample struct {
	Duration    time.Duration `json:"-"`
	Seconds     float64       `json:"seconds"`
	NbDocuments int           `json:"nb_documents"`
	TotalPages  int           `json:"total_pages"`
	Model       string        `json:"model"`
	ChatbotID   string        `json:"-"`
}

type sample struct {
	Seconds    float64 `json:"seconds"`
	TotalPages int     `json:"total_pages"`
	Model      string  `json:"model"`
}

// Predictor keeps per-metric rolling samples and answers duration estimates.
type Predictor struct {
	mu      sync.Mutex
	samples map[string][]sample
	store   SampleStore
	log     *logger.Logger

	askDuration    *prometheus.HistogramVec
	createDuration *prometheus.HistogramVec
	tokensCharged  *prometheus.CounterVec
}

func New(store SampleStore, log *logger.Logger) *Predictor {
	return &Predictor{
		samples: make(map[string][]sample),
		store:   store,
		log:     log,
		askDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docutalk_ask_duration_seconds",
			Help:    "Duration of ask-chatbot requests.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"model"}),
		createDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docutalk_create_chatbot_duration_seconds",
			Help:    "Duration of chatbot creation sessions.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"model"}),
		tokensCharged: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "docutalk_tokens_observed_total",
			Help: "Raw token counts reported by the producer.",
		}, []string{"model"}),
	}
}

// LogAsk records one ask observation.
func (p *Predictor) LogAsk(s AskSample) {
	if s.Seconds == 0 {
		s.Seconds = s.Duration.Seconds()
	}
	p.askDuration.WithLabelValues(s.Model).Observe(s.Seconds)
	p.tokensCharged.WithLabelValues(s.Model).Add(float64(s.TokenCount))
	p.record(MetricAskDuration, sample{Seconds: s.Seconds, TotalPages: s.TotalPages, Model: s.Model})
}

// LogCreate records one creation observation.
func (p *Predictor) LogCreate(s CreateSample) {
	if s.Seconds == 0 {
		s.Seconds = s.Duration.Seconds()
	}
	p.createDuration.WithLabelValues(s.Model).Observe(s.Seconds)
	p.record(MetricCreateDuration, sample{Seconds: s.Seconds, TotalPages: s.TotalPages, Model: s.Model})
}

func (p *Predictor) record(metric string, s sample) {
	p.mu.Lock()
	history := append(p.samples[metric], s)
	if len(history) > maxSamples {
		history = history[len(history)-maxSamples:]
	}
	p.samples[metric] = history
	p.mu.Unlock()

	if p.store == nil {
		return
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.store.Append(ctx, metric, string(payload), maxSamples); err != nil {
		p.log.Warn("sample store append failed", "metric", metric, "error", err.Error())
	}
}

// Predict estimates a duration in seconds for the given metric, scaled by
// page count relative to the observed history. Falls back to a fixed
// per-page heuristic when no history exists.
func (p *Predictor) Predict(ctx context.Context, metric, model string, totalPages int) float64 {
	history := p.history(ctx, metric)

	var seconds, pages float64
	n := 0
	for _, s := range history {
		if s.Model != model {
			continue
		}
		seconds += s.Seconds
		pages += float64(s.TotalPages)
		n++
	}
	if n == 0 {
		// No history for this model yet.
		return 5 + 0.5*float64(totalPages)
	}
	if pages == 0 {
		return seconds / float64(n)
	}
	return seconds / pages * float64(totalPages)
}

func (p *Predictor) history(ctx context.Context, metric string) []sample {
	p.mu.Lock()
	local := p.samples[metric]
	p.mu.Unlock()
	if len(local) > 0 || p.store == nil {
		return local
	}

	payloads, err := p.store.List(ctx, metric, maxSamples)
	if err != nil {
		p.log.Warn("sample store read failed", "metric", metric, "error", err.Error())
		return nil
	}
	history := make([]sample, 0, len(payloads))
	for _, payload := range payloads {
		var s sample
		if err := json.Unmarshal([]byte(payload), &s); err == nil {
			history = append(history, s)
		}
	}

	p.mu.Lock()
	p.samples[metric] = history
	p.mu.Unlock()
	return history
}
