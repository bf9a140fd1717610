package throttle

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// maxKeyBodyBytes bounds how much of a request body the email key extractor
// will buffer. Auth request bodies are tiny; anything larger is not a
// candidate for identity keying.
const maxKeyBodyBytes = 64 << 10

// IPKey extracts the client IP as the limiting key, preferring trusted proxy
// headers over the raw connection address. An IP is always available, so the
// second return value is always true.
func IPKey(r *http.Request) (string, bool) {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0]), true
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri, true
	}

	return r.RemoteAddr, true
}

// EmailKey extracts a normalized account email from the JSON request body as
// the limiting key, prefixed to keep the keyspace disjoint from IPs. The
// body is restored for the downstream handler. Requests without a usable
// email field report no key, which makes identity-keyed guards pass-through
// for them.
func EmailKey(r *http.Request) (string, bool) {
	if r.Body == nil {
		return "", false
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxKeyBodyBytes))
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return "", false
	}

	var payload struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", false
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" {
		return "", false
	}

	return "email:" + email, true
}
