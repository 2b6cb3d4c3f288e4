package rules

import (
	"errors"
	"testing"
	"time"

	"github.com/linkshift/linkshift/internal/config"
)

func TestCompileVariants(t *testing.T) {
	cases := []struct {
		name string
		raw  config.Rule
		want Kind
	}{
		{"default-partial", config.Rule{Matcher: "/a", TargetURL: "/b"}, KindPartial},
		{"wildcard", config.Rule{Matcher: "/a", TargetURL: "https://x.com", RedirectType: "wildcard", ForwardQueryParams: true}, KindWildcard},
		{"domain", config.Rule{Matcher: "old.com", RedirectType: "domain"}, KindDomain},
	}

	for _, tt := range cases {
		rule, err := Compile(tt.raw)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tt.name, err)
		}
		if rule.Kind() != tt.want {
			t.Fatalf("%s: expected kind %s, got %s", tt.name, tt.want, rule.Kind())
		}
	}
}

func TestCompileWildcardForward(t *testing.T) {
	rule, err := Compile(config.Rule{Matcher: "/a", TargetURL: "/b", RedirectType: "wildcard", ForwardQueryParams: true})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	w, ok := rule.Redirect.(Wildcard)
	if !ok || !w.ForwardQuery {
		t.Fatalf("expected forwarding wildcard, got %#v", rule.Redirect)
	}
}

func TestCompileRejectsContradictions(t *testing.T) {
	cases := []struct {
		name string
		raw  config.Rule
		want error
	}{
		{"forward-and-discard", config.Rule{Matcher: "/a", RedirectType: "wildcard", ForwardQueryParams: true, DiscardQueryParams: true}, ErrForwardAndDiscard},
		{"forward-on-partial", config.Rule{Matcher: "/a", TargetURL: "/b", ForwardQueryParams: true}, ErrForwardNotSupported},
		{"forward-on-domain", config.Rule{Matcher: "a.com", RedirectType: "domain", ForwardQueryParams: true}, ErrForwardNotSupported},
		{"kept-with-forward", config.Rule{Matcher: "/a", RedirectType: "wildcard", ForwardQueryParams: true, KeptQueryParams: []config.KeptParam{{KeyPattern: "id"}}}, ErrKeptWithForward},
		{"kept-without-discard", config.Rule{Matcher: "/a", TargetURL: "/b", KeptQueryParams: []config.KeptParam{{KeyPattern: "id"}}}, ErrKeptWithoutDiscard},
		{"partial-without-target", config.Rule{Matcher: "/a"}, ErrMissingTarget},
		{"empty-matcher", config.Rule{Matcher: "  ", TargetURL: "/b"}, ErrEmptyMatcher},
		{"unknown-type", config.Rule{Matcher: "/a", RedirectType: "teleport"}, ErrUnknownRedirectType},
		{"empty-static-key", config.Rule{Matcher: "/a", TargetURL: "/b", StaticQueryParams: []config.StaticParam{{Value: "x"}}}, ErrEmptyStaticKey},
	}

	for _, tt := range cases {
		_, err := Compile(tt.raw)
		if !errors.Is(err, tt.want) {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}
}

func TestCompileCreatedAt(t *testing.T) {
	rule, err := Compile(config.Rule{ID: "r", Matcher: "/a", TargetURL: "/b", CreatedAt: "2024-03-01T10:00:00Z"})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if !rule.CreatedAt.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected createdAt %v", rule.CreatedAt)
	}

	if _, err := Compile(config.Rule{Matcher: "/a", TargetURL: "/b", CreatedAt: "yesterday"}); err == nil {
		t.Fatal("expected createdAt parse error")
	}
}

func TestCompileAllWrapsRuleID(t *testing.T) {
	cfg := &config.Config{Rules: []config.Rule{{ID: "broken", Matcher: "/a"}}}
	_, err := CompileAll(cfg)
	if err == nil || !errors.Is(err, ErrMissingTarget) {
		t.Fatalf("expected wrapped ErrMissingTarget, got %v", err)
	}
	if err.Error() != "rule broken: targetUrl is required" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestIsDomainMatcher(t *testing.T) {
	if !IsDomainMatcher("oldapp.com") || IsDomainMatcher("/path") || IsDomainMatcher("") {
		t.Fatal("unexpected domain matcher classification")
	}
}
