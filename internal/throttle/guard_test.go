package throttle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestGuard(t *testing.T, window time.Duration, max int, keyFunc KeyFunc, clock *fakeClock) *Guard {
	t.Helper()
	policy, err := NewPolicy("test", window, max, "", keyFunc)
	require.NoError(t, err)
	guard, err := NewGuard(policy, NewWindowStore(), WithClock(clock.Now))
	require.NoError(t, err)
	return guard
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestNewPolicy_RejectsMisconfiguration(t *testing.T) {
	tests := []struct {
		name   string
		window time.Duration
		max    int
	}{
		{"zero window", 0, 10},
		{"negative window", -time.Minute, 10},
		{"zero max", time.Minute, 0},
		{"negative max", time.Minute, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPolicy("p", tt.window, tt.max, "", IPKey)
			assert.Error(t, err)
		})
	}
}

func TestNewPolicy_DefaultMessage(t *testing.T) {
	policy, err := NewPolicy("p", time.Minute, 5, "", IPKey)
	require.NoError(t, err)
	assert.NotEmpty(t, policy.Message)
}

func TestGuard_Evaluate_WindowBoundary(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	guard := newTestGuard(t, time.Minute, 3, IPKey, clock)

	for i := 0; i < 3; i++ {
		d := guard.Evaluate("1.2.3.4")
		assert.True(t, d.Allowed, "request %d within the window should pass", i+1)
	}

	d := guard.Evaluate("1.2.3.4")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Greater(t, d.RetryAfterSeconds(), 0)
	assert.False(t, d.ResetAt.IsZero(), "denials still carry the reset time for headers")
}

func TestGuard_Evaluate_WindowReset(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	guard := newTestGuard(t, time.Minute, 2, IPKey, clock)

	guard.Evaluate("key")
	guard.Evaluate("key")
	require.False(t, guard.Evaluate("key").Allowed)

	// At exactly the window end the quota is fresh again.
	clock.Advance(time.Minute)
	d := guard.Evaluate("key")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
}

func TestGuard_Evaluate_KeyIsolation(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	guard := newTestGuard(t, time.Minute, 1, IPKey, clock)

	require.True(t, guard.Evaluate("a").Allowed)
	require.False(t, guard.Evaluate("a").Allowed)

	assert.True(t, guard.Evaluate("b").Allowed)
}

func TestGuard_Evaluate_DecisionHook(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	policy, err := NewPolicy("hooked", time.Minute, 1, "", IPKey)
	require.NoError(t, err)

	var calls []bool
	guard, err := NewGuard(policy, NewWindowStore(),
		WithClock(clock.Now),
		WithDecisionHook(func(name string, allowed bool) {
			assert.Equal(t, "hooked", name)
			calls = append(calls, allowed)
		}),
	)
	require.NoError(t, err)

	guard.Evaluate("k")
	guard.Evaluate("k")
	assert.Equal(t, []bool{true, false}, calls)
}

func TestGuard_Middleware_GeneralLimiterScenario(t *testing.T) {
	// 100 requests per 15 minutes from one IP: all pass with decreasing
	// remaining, the 101st is denied with Retry-After about 900 seconds.
	clock := &fakeClock{now: time.Now()}
	guard := newTestGuard(t, 15*time.Minute, 100, IPKey, clock)
	handler := guard.Middleware()(http.HandlerFunc(okHandler))

	for i := 0; i < 100; i++ {
		req := httptest.NewRequest("GET", "/api/v1/subscription", nil)
		req.RemoteAddr = "1.2.3.4:12345"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code, "request %d", i+1)
		remaining, err := strconv.Atoi(rr.Header().Get("X-RateLimit-Remaining"))
		require.NoError(t, err)
		assert.Equal(t, 99-i, remaining)
	}

	req := httptest.NewRequest("GET", "/api/v1/subscription", nil)
	req.RemoteAddr = "1.2.3.4:12345"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	retryAfter, err := strconv.Atoi(rr.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.InDelta(t, 900, retryAfter, 1)
	assert.Equal(t, "100", rr.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, false, body["success"])
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(429), errObj["statusCode"])
	assert.InDelta(t, 900, errObj["retryAfter"], 1)
	assert.NotEmpty(t, errObj["message"])
}

func TestGuard_Middleware_SetsHeadersOnAllowedRequests(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	guard := newTestGuard(t, time.Minute, 10, IPKey, clock)
	handler := guard.Middleware()(http.HandlerFunc(okHandler))

	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "10", rr.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", rr.Header().Get("X-RateLimit-Remaining"))

	reset, err := strconv.ParseInt(rr.Header().Get("X-RateLimit-Reset"), 10, 64)
	require.NoError(t, err)
	assert.Equal(t, clock.now.Add(time.Minute).Unix(), reset)
}

func TestGuard_Middleware_DeniedRequestNeverReachesHandler(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	guard := newTestGuard(t, time.Minute, 1, IPKey, clock)

	invoked := 0
	handler := guard.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		invoked++
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:555"
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Equal(t, 1, invoked)
}

func loginRequest(email string) *http.Request {
	body, _ := json.Marshal(map[string]string{"email": email, "password": "hunter22"})
	req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.9:4242"
	return req
}

func TestGuard_Middleware_LoginLimiterScenario(t *testing.T) {
	// Five failed attempts for one account exhaust the quota; the sixth is
	// rejected before the handler runs. After the window passes, the account
	// is evaluated fresh.
	clock := &fakeClock{now: time.Now()}
	policy, err := NewPolicy("login", 15*time.Minute, 5, "", EmailKey)
	require.NoError(t, err)
	policy.ResetOnSuccess = true

	guard, err := NewGuard(policy, NewWindowStore(), WithClock(clock.Now))
	require.NoError(t, err)

	handlerCalls := 0
	failing := guard.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalls++
		w.WriteHeader(http.StatusUnauthorized)
	}))

	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		failing.ServeHTTP(rr, loginRequest("a@b.com"))
		require.Equal(t, http.StatusUnauthorized, rr.Code, "attempt %d", i+1)
	}
	require.Equal(t, 5, handlerCalls)

	rr := httptest.NewRecorder()
	failing.ServeHTTP(rr, loginRequest("a@b.com"))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, 5, handlerCalls, "sixth attempt must not reach authentication")

	clock.Advance(15 * time.Minute)
	rr = httptest.NewRecorder()
	failing.ServeHTTP(rr, loginRequest("a@b.com"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, 6, handlerCalls)
}

func TestGuard_Middleware_SuccessfulLoginClearsSlate(t *testing.T) {
	// With a ceiling of 6: five failures, then a success resets the count,
	// and a subsequent failure is attempt 1 of a fresh cycle.
	clock := &fakeClock{now: time.Now()}
	policy, err := NewPolicy("login", 15*time.Minute, 6, "", EmailKey)
	require.NoError(t, err)
	policy.ResetOnSuccess = true

	store := NewWindowStore()
	guard, err := NewGuard(policy, store, WithClock(clock.Now))
	require.NoError(t, err)

	status := http.StatusUnauthorized
	handler := guard.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, loginRequest("a@b.com"))
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	}

	status = http.StatusOK
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, loginRequest("a@b.com"))
	require.Equal(t, http.StatusOK, rr.Code)

	rec := store.GetOrInit("email:a@b.com", clock.Now(), policy.Window)
	assert.Equal(t, 0, rec.Count, "success must clear the account's slate")

	status = http.StatusUnauthorized
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, loginRequest("a@b.com"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "fresh cycle begins after success")
}

func TestGuard_Middleware_SkipSuccessfulRefundsCharge(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	policy, err := NewPolicy("general", time.Minute, 2, "", IPKey)
	require.NoError(t, err)
	policy.SkipSuccessful = true

	store := NewWindowStore()
	guard, err := NewGuard(policy, store, WithClock(clock.Now))
	require.NoError(t, err)

	handler := guard.Middleware()(http.HandlerFunc(okHandler))

	// Successful requests refund their charge, so the quota never drains.
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "1.1.1.1:80"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code, "request %d", i+1)
	}

	rec := store.GetOrInit("1.1.1.1", clock.Now(), policy.Window)
	assert.Equal(t, 0, rec.Count)
}

func TestGuard_Middleware_EmailPolicyBypassesKeylessRequests(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	guard := newTestGuard(t, time.Minute, 1, EmailKey, clock)
	handler := guard.Middleware()(http.HandlerFunc(okHandler))

	// No body at all, and a body without an email: both bypass the policy,
	// regardless of how many arrive.
	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("POST", "/api/v1/auth/login", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))

		body := bytes.NewReader([]byte(`{"password":"x"}`))
		rr = httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("POST", "/api/v1/auth/login", body))
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestGuard_Evaluate_FailsOpenOnPanic(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	policy, err := NewPolicy("broken", time.Minute, 5, "", IPKey)
	require.NoError(t, err)

	guard, err := NewGuard(policy, NewWindowStore(), WithClock(clock.Now))
	require.NoError(t, err)
	// Force an internal panic at evaluation time.
	guard.store = nil

	var d Decision
	assert.NotPanics(t, func() {
		d = guard.Evaluate("1.2.3.4")
	})
	assert.True(t, d.Allowed, "internal inconsistency must degrade to allow")
	assert.False(t, d.ResetAt.IsZero())
}

func TestGuard_Middleware_XForwardedForKeysByClientIP(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	guard := newTestGuard(t, time.Minute, 1, IPKey, clock)
	handler := guard.Middleware()(http.HandlerFunc(okHandler))

	makeReq := func(xff string) *http.Request {
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "10.0.0.1:12345" // shared proxy address
		req.Header.Set("X-Forwarded-For", xff)
		return req
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, makeReq("203.0.113.50, 70.41.3.18"))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, makeReq("203.0.113.50, 70.41.3.18"))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code, "same forwarded client is throttled")

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, makeReq("198.51.100.7"))
	assert.Equal(t, http.StatusOK, rr.Code, "a different forwarded client is not")
}

func TestEmailKey_NormalizesAndRestoresBody(t *testing.T) {
	payload := []byte(`{"email":"  User@Example.COM ","password":"secret"}`)
	req := httptest.NewRequest("POST", "/login", bytes.NewReader(payload))

	key, ok := EmailKey(req)
	require.True(t, ok)
	assert.Equal(t, "email:user@example.com", key)

	// The handler downstream still sees the full body.
	var parsed struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	require.NoError(t, json.NewDecoder(req.Body).Decode(&parsed))
	assert.Equal(t, "secret", parsed.Password)
}

func TestIPKey_FallbackOrder(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:12345"

	key, ok := IPKey(req)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1:12345", key)

	req.Header.Set("X-Real-IP", "203.0.113.9")
	key, _ = IPKey(req)
	assert.Equal(t, "203.0.113.9", key)

	req.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")
	key, _ = IPKey(req)
	assert.Equal(t, "198.51.100.1", key)
}

func TestGuard_Middleware_ConcurrentRequests(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	guard := newTestGuard(t, time.Minute, 1000, IPKey, clock)
	handler := guard.Middleware()(http.HandlerFunc(okHandler))

	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		go func(id int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 25; j++ {
				req := httptest.NewRequest("GET", "/test", nil)
				req.RemoteAddr = fmt.Sprintf("10.0.0.%d:1", id%4)
				handler.ServeHTTP(httptest.NewRecorder(), req)
			}
		}(i)
	}
	for i := 0; i < 20; i++ {
		<-done
	}
	// No panics or data races -- run with -race flag.
}
