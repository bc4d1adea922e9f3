package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clipper/clipper-api/internal/core/domain"
	"github.com/clipper/clipper-api/internal/core/service"
)

type stubValidator struct {
	principal *domain.Principal
	err       error
	got       string
}

func (v *stubValidator) ValidateAndDecode(token string, _ service.ValidateOptions) (*domain.Principal, error) {
	v.got = token
	return v.principal, v.err
}

func newAuthContext(header string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAuthenticate_ValidToken(t *testing.T) {
	v := &stubValidator{principal: &domain.Principal{ID: 3, Roles: []string{"User"}}}
	c, rec := newAuthContext("Bearer abc.def.ghi")

	called := false
	handler := Authenticate(v)(func(c echo.Context) error {
		called = true
		if p := Principal(c); p == nil || p.ID != 3 {
			t.Fatalf("principal not set: %+v", p)
		}
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
	if v.got != "abc.def.ghi" {
		t.Fatalf("validator got %q", v.got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthenticate_RealIssuer(t *testing.T) {
	issuer, err := service.NewTokenIssuer(service.TokenConfig{
		SigningKey: "0123456789abcdef0123456789abcdef",
		Issuer:     "clipper-api",
		Audience:   "clipper-clients",
		AccessTTL:  time.Hour,
		RefreshTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	token, _, _ := issuer.GenerateAccessToken(&domain.User{ID: 11, Email: "a@example.com", Roles: []string{"Admin"}})
	c, _ := newAuthContext("bearer " + token)

	handler := Authenticate(issuer)(func(c echo.Context) error {
		if !Principal(c).IsAdmin() {
			t.Fatalf("expected admin principal")
		}
		return nil
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func TestAuthenticate_MissingOrBadHeader(t *testing.T) {
	for _, h := range []string{"", "Token abc", "Bearer", "Bearer   "} {
		c, _ := newAuthContext(h)
		handler := Authenticate(&stubValidator{})(func(c echo.Context) error {
			t.Fatalf("next must not be called for %q", h)
			return nil
		})
		if err := handler(c); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Fatalf("%q: expected ErrUnauthenticated, got %v", h, err)
		}
	}
}

func TestAuthenticate_ExpiredTokenSetsHeader(t *testing.T) {
	v := &stubValidator{err: &domain.TokenError{Kind: domain.TokenLifetime}}
	c, rec := newAuthContext("Bearer old")

	err := Authenticate(v)(func(echo.Context) error { return nil })(c)
	if !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if rec.Header().Get(HeaderTokenExpired) != "true" {
		t.Fatalf("expected Token-Expired header")
	}
}

func TestAuthenticate_InvalidTokenNoExpiredHeader(t *testing.T) {
	v := &stubValidator{err: &domain.TokenError{Kind: domain.TokenBadSignature}}
	c, rec := newAuthContext("Bearer forged")

	err := Authenticate(v)(func(echo.Context) error { return nil })(c)
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	if rec.Header().Get(HeaderTokenExpired) != "" {
		t.Fatalf("Token-Expired must only be set for expiry")
	}
}
