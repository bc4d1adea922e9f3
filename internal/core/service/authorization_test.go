package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/clipper/clipper-api/internal/core/domain"
	"github.com/clipper/clipper-api/internal/core/ports"
)

type params map[string]string

func (p params) Param(name string) string { return p[name] }

func principal(id int64, roles ...string) *domain.Principal {
	return &domain.Principal{ID: id, Roles: roles}
}

func TestEvaluator_Roles(t *testing.T) {
	e := NewEvaluator(zerolog.Nop())
	ctx := context.Background()

	cases := []struct {
		name string
		p    *domain.Principal
		req  domain.Requirement
		want bool
	}{
		{"any match", principal(1, "User"), domain.RequireUserOrAdmin, true},
		{"case insensitive", principal(1, "admin"), domain.RequireAdmin, true},
		{"missing role", principal(1, "User"), domain.RequireAdmin, false},
		{"all match", principal(1, "User", "Admin"), domain.RoleRequirement{Roles: []string{"user", "ADMIN"}, MatchAll: true}, true},
		{"all partial", principal(1, "User"), domain.RoleRequirement{Roles: []string{"User", "Admin"}, MatchAll: true}, false},
		{"anonymous", nil, domain.RequireUser, false},
		{"empty requirement", principal(1, "User"), domain.RoleRequirement{}, false},
		{"pointer requirement", principal(1, "User"), &domain.RoleRequirement{Roles: []string{"User"}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := e.Evaluate(ctx, tc.p, tc.req, nil); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestEvaluator_UserOwnership(t *testing.T) {
	e := NewEvaluator(zerolog.Nop())
	ctx := context.Background()
	req := domain.OwnershipRequirement{ResourceIDParam: "id", ResourceType: domain.ResourceUser}

	if !e.Evaluate(ctx, principal(5, "User"), req, params{"id": "5"}) {
		t.Fatalf("user 5 should own /users/5")
	}
	if e.Evaluate(ctx, principal(5, "User"), req, params{"id": "6"}) {
		t.Fatalf("user 5 must not own /users/6")
	}
	if !e.Evaluate(ctx, principal(9, "Admin"), req, params{"id": "6"}) {
		t.Fatalf("admin bypasses ownership")
	}
	if e.Evaluate(ctx, principal(5, "User"), req, params{"id": "abc"}) {
		t.Fatalf("non-numeric id must fail")
	}
	if e.Evaluate(ctx, principal(5, "User"), req, params{}) {
		t.Fatalf("missing param must fail")
	}
	if e.Evaluate(ctx, nil, req, params{"id": "5"}) {
		t.Fatalf("anonymous must fail")
	}
}

func TestEvaluator_DelegatesToResolver(t *testing.T) {
	e := NewEvaluator(zerolog.Nop())
	var calls int
	e.Register(domain.ResourceChannel, ports.OwnershipResolverFunc(func(_ context.Context, userID, resourceID int64) (bool, error) {
		calls++
		return userID == 3 && resourceID == 100, nil
	}))
	req := domain.OwnershipRequirement{ResourceIDParam: "channelId", ResourceType: domain.ResourceChannel}
	ctx := context.Background()

	if !e.Evaluate(ctx, principal(3, "User"), req, params{"channelId": "100"}) {
		t.Fatalf("owner should pass")
	}
	if e.Evaluate(ctx, principal(4, "User"), req, params{"channelId": "100"}) {
		t.Fatalf("non-owner should fail")
	}
	if calls != 2 {
		t.Fatalf("expected 2 resolver calls, got %d", calls)
	}
	if !e.Evaluate(ctx, principal(4, "Admin"), req, params{"channelId": "100"}) || calls != 2 {
		t.Fatalf("admin should pass without consulting the resolver")
	}
}

func TestEvaluator_ResolverErrorAndUnknownType(t *testing.T) {
	e := NewEvaluator(zerolog.Nop())
	e.Register(domain.ResourceVideo, ports.OwnershipResolverFunc(func(context.Context, int64, int64) (bool, error) {
		return true, errors.New("mongo unavailable")
	}))
	ctx := context.Background()

	video := domain.OwnershipRequirement{ResourceIDParam: "id", ResourceType: domain.ResourceVideo}
	if e.Evaluate(ctx, principal(1, "User"), video, params{"id": "1"}) {
		t.Fatalf("resolver error must fail closed")
	}

	unknown := domain.OwnershipRequirement{ResourceIDParam: "id", ResourceType: "playlist"}
	if e.Evaluate(ctx, principal(1, "User"), unknown, params{"id": "1"}) {
		t.Fatalf("unknown resource type must fail")
	}
}
