// Package router classifies a user turn into an execution mode — the first
// node every graph run passes through. It generalizes the teacher's
// provider-selection router (rule match → health-gated candidate chain)
// into a single three-stage decision: explicit override, LLM classification,
// heuristic fallback.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/weaver-ai/weaver/internal/eventbus"
	"github.com/weaver-ai/weaver/internal/llm"
	"github.com/weaver-ai/weaver/pkg/models"
)

// Mode is the execution path a routed turn takes through the graph.
type Mode string

const (
	ModeDirect Mode = "direct"
	ModeWeb    Mode = "web"
	ModeAgent  Mode = "agent"
	ModeDeep   Mode = "deep"
	ModeUltra  Mode = "ultra"
)

func validMode(m Mode) bool {
	switch m {
	case ModeDirect, ModeWeb, ModeAgent, ModeDeep, ModeUltra:
		return true
	default:
		return false
	}
}

// Decision is the router's output: the chosen mode plus how it got there.
type Decision struct {
	Mode       Mode    `json:"mode"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// Classifier assigns a mode to the latest user content. Implementations
// never error on bad input; they only error when they cannot produce a
// decision at all (e.g. the LLM call itself failed).
type Classifier interface {
	Classify(ctx context.Context, content string, history []models.Message) (Decision, error)
}

// Config configures a Router.
type Config struct {
	// Model is the classification model passed to the LLM client. Empty
	// uses the client's default model.
	Model string

	// ConfidenceThreshold is the minimum LLM-classifier confidence accepted
	// before falling back to heuristics. Zero picks 0.5.
	ConfidenceThreshold float64

	// FailureCooldown is how long the LLM classifier is skipped (falling
	// straight to heuristics) after it errors or returns malformed JSON.
	// Zero disables cooldown — every turn retries the LLM classifier.
	FailureCooldown time.Duration

	// Classifier overrides the LLM classifier, primarily for tests. When
	// nil, an LLMClassifier wrapping the given llm.Client is used.
	Classifier Classifier
}

// Router decides which graph path a turn takes.
type Router struct {
	classifier          Classifier
	heuristic           *HeuristicClassifier
	confidenceThreshold float64
	failureCooldown     time.Duration
	bus                 *eventbus.Bus

	healthMu        sync.Mutex
	unhealthyUntil  time.Time
}

// New builds a Router. client is used for LLM-based classification unless
// cfg.Classifier overrides it. bus receives the "status" event recording
// the decision; a nil bus makes Route a no-op for event emission.
func New(client llm.Client, cfg Config, bus *eventbus.Bus) *Router {
	threshold := cfg.ConfidenceThreshold
	if threshold <= 0 {
		threshold = 0.5
	}
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = &LLMClassifier{client: client, model: cfg.Model}
	}
	return &Router{
		classifier:          classifier,
		heuristic:           &HeuristicClassifier{},
		confidenceThreshold: threshold,
		failureCooldown:     cfg.FailureCooldown,
		bus:                 bus,
	}
}

// Route decides the execution mode for a turn. override is the caller's
// explicit search_mode hint ("" means auto). Route never performs the
// downstream work described by the decision; it only returns it.
func (r *Router) Route(ctx context.Context, threadID string, history []models.Message, override string) (Decision, error) {
	decision, err := r.decide(ctx, history, override)
	if err != nil {
		return Decision{}, err
	}
	if r.bus != nil {
		r.bus.Publish(models.Event{
			ThreadID: threadID,
			Type:     models.EventStatus,
			Status: &models.StatusEventPayload{
				Node:       "route_node",
				Mode:       string(decision.Mode),
				Confidence: decision.Confidence,
				Message:    decision.Rationale,
			},
		})
	}
	return decision, nil
}

func (r *Router) decide(ctx context.Context, history []models.Message, override string) (Decision, error) {
	if override != "" {
		mode := Mode(strings.ToLower(strings.TrimSpace(override)))
		if !validMode(mode) {
			return Decision{}, fmt.Errorf("router: invalid search_mode override %q", override)
		}
		return Decision{Mode: mode, Confidence: 1.0, Rationale: "user override"}, nil
	}

	content := lastUserContent(history)

	if r.isHealthy() {
		decision, err := r.classifier.Classify(ctx, content, history)
		if err == nil && validMode(decision.Mode) && decision.Confidence >= r.confidenceThreshold {
			return decision, nil
		}
		r.markUnhealthy()
	}

	return r.heuristic.Classify(ctx, content, history)
}

func (r *Router) isHealthy() bool {
	if r.failureCooldown <= 0 {
		return true
	}
	r.healthMu.Lock()
	defer r.healthMu.Unlock()
	if r.unhealthyUntil.IsZero() {
		return true
	}
	if time.Now().After(r.unhealthyUntil) {
		r.unhealthyUntil = time.Time{}
		return true
	}
	return false
}

func (r *Router) markUnhealthy() {
	if r.failureCooldown <= 0 {
		return
	}
	r.healthMu.Lock()
	r.unhealthyUntil = time.Now().Add(r.failureCooldown)
	r.healthMu.Unlock()
}

func lastUserContent(history []models.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == models.RoleUser {
			return history[i].Content
		}
	}
	if len(history) == 0 {
		return ""
	}
	return history[len(history)-1].Content
}

// classificationSchema mirrors the JSON shape the LLM classifier prompt
// demands and Decision's own field names, so a successful parse maps
// directly onto a Decision.
type classificationSchema struct {
	Mode       string  `json:"mode"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

func parseClassification(raw string) (Decision, error) {
	raw = extractJSONObject(raw)
	if raw == "" {
		return Decision{}, fmt.Errorf("router: no JSON object in classification response")
	}
	var parsed classificationSchema
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Decision{}, fmt.Errorf("router: malformed classification JSON: %w", err)
	}
	return Decision{
		Mode:       Mode(strings.ToLower(strings.TrimSpace(parsed.Mode))),
		Confidence: parsed.Confidence,
		Rationale:  parsed.Rationale,
	}, nil
}

var jsonObjectRegex = regexp.MustCompile(`(?s)\{.*\}`)

// extractJSONObject strips any markdown fencing or leading/trailing prose
// a model adds around its JSON answer, returning the first brace-delimited
// object found.
func extractJSONObject(raw string) string {
	return jsonObjectRegex.FindString(raw)
}
