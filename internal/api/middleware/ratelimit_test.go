package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clipper/clipper-api/internal/core/domain"
	"github.com/clipper/clipper-api/internal/core/service"
	"github.com/clipper/clipper-api/internal/infrastructure/memory"
)

type stubLimiter struct {
	decision service.Decision
	err      error
	identity string
}

func (l *stubLimiter) CheckAndIncrement(_ context.Context, identity string, _ service.EndpointClass) (service.Decision, error) {
	l.identity = identity
	return l.decision, l.err
}

func newIPContext(e *echo.Echo, remote, xff string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = remote
	if xff != "" {
		req.Header.Set(echo.HeaderXForwardedFor, xff)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRateLimit_SetsHeadersWhenAllowed(t *testing.T) {
	l := &stubLimiter{decision: service.Decision{Allowed: true, Limit: 5, Remaining: 4}}
	c, rec := newIPContext(echo.New(), "192.0.2.1:5555", "")

	if err := RateLimit(l, service.ClassSensitive, zerolog.Nop())(ok)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(HeaderRateLimitLimit) != "5" || rec.Header().Get(HeaderRateLimitRemaining) != "4" {
		t.Fatalf("missing rate limit headers: %v", rec.Header())
	}
	if l.identity != "192.0.2.1" {
		t.Fatalf("expected peer address identity, got %q", l.identity)
	}
}

func TestRateLimit_RejectsWithoutCallingHandler(t *testing.T) {
	l := &stubLimiter{decision: service.Decision{Allowed: false, Limit: 5, Remaining: 0, RetryAfter: 1500 * time.Millisecond}}
	c, rec := newIPContext(echo.New(), "192.0.2.1:5555", "")

	err := RateLimit(l, service.ClassSensitive, zerolog.Nop())(func(echo.Context) error {
		t.Fatalf("handler must not run")
		return nil
	})(c)
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if rec.Header().Get(HeaderRetryAfter) != "2" {
		t.Fatalf("expected Retry-After 2, got %q", rec.Header().Get(HeaderRetryAfter))
	}
}

func TestRateLimit_FailsOpenOnStoreError(t *testing.T) {
	l := &stubLimiter{err: errors.New("redis down")}
	c, _ := newIPContext(echo.New(), "192.0.2.1:5555", "")

	called := false
	err := RateLimit(l, service.ClassGlobal, zerolog.Nop())(func(echo.Context) error {
		called = true
		return nil
	})(c)
	if err != nil || !called {
		t.Fatalf("expected pass-through, err=%v called=%v", err, called)
	}
}

func TestRateLimit_ForwardedForOnlyWhenTrusted(t *testing.T) {
	l := &stubLimiter{decision: service.Decision{Allowed: true, Limit: 1, Remaining: 0}}

	untrusted := echo.New()
	untrusted.IPExtractor = echo.ExtractIPDirect()
	c, _ := newIPContext(untrusted, "10.0.0.2:1234", "203.0.113.7")
	_ = RateLimit(l, service.ClassGlobal, zerolog.Nop())(ok)(c)
	if l.identity != "10.0.0.2" {
		t.Fatalf("untrusted: expected peer address, got %q", l.identity)
	}

	trusted := echo.New()
	trusted.IPExtractor = echo.ExtractIPFromXFFHeader()
	c, _ = newIPContext(trusted, "10.0.0.2:1234", "203.0.113.7")
	_ = RateLimit(l, service.ClassGlobal, zerolog.Nop())(ok)(c)
	if l.identity != "203.0.113.7" {
		t.Fatalf("trusted: expected forwarded address, got %q", l.identity)
	}
}

func TestRateLimit_LimitPlusOneWithMemoryStore(t *testing.T) {
	rl := service.NewRateLimiter(memory.NewCounterStore(), time.Minute, map[service.EndpointClass]int{
		service.ClassSensitive: 3,
	})
	mw := RateLimit(rl, service.ClassSensitive, zerolog.Nop())
	e := echo.New()

	var rejected int
	for i := 0; i < 4; i++ {
		c, _ := newIPContext(e, "198.51.100.4:999", "")
		if err := mw(ok)(c); errors.Is(err, domain.ErrRateLimited) {
			rejected++
		}
	}
	if rejected != 1 {
		t.Fatalf("expected exactly one rejection, got %d", rejected)
	}
}
