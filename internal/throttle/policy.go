package throttle

import (
	"fmt"
	"net/http"
	"time"
)

// KeyFunc maps a request to a limiting key. The second return value reports
// whether a key could be extracted; without one the guard passes the request
// through untouched.
type KeyFunc func(r *http.Request) (string, bool)

// Policy is the immutable configuration of one guard instance.
type Policy struct {
	// Name identifies the policy in logs and metrics.
	Name string

	// Window is the counting window length.
	Window time.Duration

	// MaxEvents is the ceiling of charged events per window.
	MaxEvents int

	// Message is the denial response message.
	Message string

	// KeyFunc extracts the limiting key from a request.
	KeyFunc KeyFunc

	// SkipSuccessful refunds the optimistic charge when the wrapped handler
	// reports success, so only failed requests count toward the ceiling.
	SkipSuccessful bool

	// ResetOnSuccess clears the whole count when the wrapped handler reports
	// success. Used for login attempt limiting: a successful login should
	// not leave prior failures counting against the account.
	ResetOnSuccess bool
}

// outcomeGated reports whether the policy reconciles charges after the
// wrapped handler completes.
func (p *Policy) outcomeGated() bool {
	return p.SkipSuccessful || p.ResetOnSuccess
}

// NewPolicy validates and returns a Policy. Misconfiguration is rejected
// here, at startup, rather than surfacing as always-deny or always-allow
// behavior at request time.
func NewPolicy(name string, window time.Duration, maxEvents int, message string, keyFunc KeyFunc) (*Policy, error) {
	if name == "" {
		return nil, fmt.Errorf("throttle policy: name is required")
	}
	if window <= 0 {
		return nil, fmt.Errorf("throttle policy %s: window must be positive, got %v", name, window)
	}
	if maxEvents <= 0 {
		return nil, fmt.Errorf("throttle policy %s: max events must be positive, got %d", name, maxEvents)
	}
	if keyFunc == nil {
		return nil, fmt.Errorf("throttle policy %s: key func is required", name)
	}
	if message == "" {
		message = "Too many requests, please try again later"
	}

	return &Policy{
		Name:      name,
		Window:    window,
		MaxEvents: maxEvents,
		Message:   message,
		KeyFunc:   keyFunc,
	}, nil
}

// Decision is the evaluator's answer for one request, with everything needed
// to populate rate limit response headers regardless of allow/deny.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration // meaningful only when denied
}

// RetryAfterSeconds returns the denial retry hint in whole seconds, rounded
// up so clients never retry early.
func (d Decision) RetryAfterSeconds() int {
	secs := int((d.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
