package throttle

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"videoscore/internal/models"
)

// DecisionHook observes guard decisions, e.g. for metrics. It must not block.
type DecisionHook func(policy string, allowed bool)

// Guard is the per-request entry point for one throttle policy. Each Guard
// owns its store; independently configured guards share no mutable state.
type Guard struct {
	policy *Policy
	store  *WindowStore
	now    func() time.Time
	hook   DecisionHook
}

// Option configures optional Guard behavior.
type Option func(*Guard)

// WithClock injects a time source, letting tests control window boundaries
// deterministically.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// WithDecisionHook registers an observer invoked on every evaluation.
func WithDecisionHook(hook DecisionHook) Option {
	return func(g *Guard) { g.hook = hook }
}

// NewGuard composes a validated policy with its window store.
func NewGuard(policy *Policy, store *WindowStore, opts ...Option) (*Guard, error) {
	if policy == nil {
		return nil, fmt.Errorf("throttle guard: policy is required")
	}
	if store == nil {
		return nil, fmt.Errorf("throttle guard: store is required")
	}

	g := &Guard{
		policy: policy,
		store:  store,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Store returns the guard's window store, for registration with a Reaper.
func (g *Guard) Store() *WindowStore {
	return g.store
}

// Policy returns the guard's policy.
func (g *Guard) Policy() *Policy {
	return g.policy
}

// Evaluate charges one event for key and decides allow/deny. The charge is
// optimistic: outcome-gated policies may later undo it via the store. Any
// internal panic degrades to allowing the request; the throttle must never
// be the reason a legitimate request fails.
func (g *Guard) Evaluate(key string) (d Decision) {
	now := g.now()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("throttle evaluation panic, failing open",
				"policy", g.policy.Name,
				"panic", r,
			)
			d = Decision{
				Allowed:   true,
				Limit:     g.policy.MaxEvents,
				Remaining: g.policy.MaxEvents,
				ResetAt:   now.Add(g.policy.Window),
			}
		}
		if g.hook != nil {
			g.hook(g.policy.Name, d.Allowed)
		}
	}()

	rec, allowed := g.store.Charge(key, now, g.policy.Window, g.policy.MaxEvents)

	d = Decision{
		Allowed: allowed,
		Limit:   g.policy.MaxEvents,
		ResetAt: rec.ResetAt,
	}
	if remaining := g.policy.MaxEvents - rec.Count; remaining > 0 {
		d.Remaining = remaining
	}
	if !allowed {
		d.RetryAfter = rec.ResetAt.Sub(now)
	}
	return d
}

// Outcome is the structured result of a guarded handler, used to reconcile
// optimistic charges for outcome-gated policies.
type Outcome struct {
	StatusCode int
	Success    bool
}

// observe reconciles the charge already applied for key based on how the
// wrapped handler finished. Failures keep their charge; successes either
// refund one event or clear the account's slate, per policy.
func (g *Guard) observe(key string, outcome Outcome) {
	if !outcome.Success {
		return
	}
	switch {
	case g.policy.ResetOnSuccess:
		g.store.Reset(key)
	case g.policy.SkipSuccessful:
		g.store.Decrement(key)
	}
}

// Middleware enforces the guard's policy in front of an HTTP handler. Rate
// limit headers are set on every keyed request; denials short-circuit with
// 429, a Retry-After header and a structured JSON body. Requests the policy
// cannot key (identity policies without an email) pass through untouched.
func (g *Guard) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := g.policy.KeyFunc(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			decision := g.Evaluate(key)

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", decision.ResetAt.Unix()))

			if !decision.Allowed {
				retryAfter := decision.RetryAfterSeconds()
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(models.NewThrottledResponse(g.policy.Message, retryAfter))

				slog.Warn("request throttled",
					"policy", g.policy.Name,
					"key", key,
					"limit", decision.Limit,
					"retry_after", retryAfter,
				)
				return
			}

			if !g.policy.outcomeGated() {
				next.ServeHTTP(w, r)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			g.observe(key, Outcome{StatusCode: rec.status, Success: rec.status < 400})
		})
	}
}

// statusRecorder captures the downstream status code so the guard can judge
// the outcome without depending on any framework's response shape.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}
