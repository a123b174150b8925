package rule

import (
	"strings"
	"testing"
)

func TestRenderTemplateRequestCount(t *testing.T) {
	got := renderTemplate("count is {{request_count}}", &RequestContext{}, 7)
	if got != "count is 7" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderTemplateBasics(t *testing.T) {
	ctx := &RequestContext{Method: "GET", Path: "/api/users", ClientIP: "10.0.0.1"}
	got := renderTemplate("{{method}} {{path}} from {{client_ip}}", ctx, 0)
	if got != "GET /api/users from 10.0.0.1" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderTemplatePathParam(t *testing.T) {
	ctx := &RequestContext{PathParams: map[string]string{"id": "42"}}
	got := renderTemplate("user {{id}}", ctx, 0)
	if got != "user 42" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderTemplateQueryParam(t *testing.T) {
	ctx := &RequestContext{RawQuery: "name=alice&name=bob"}
	got := renderTemplate("hi {{query.name}}", ctx, 0)
	if got != "hi alice" {
		t.Fatalf("expected first occurrence, got %q", got)
	}
}

func TestRenderTemplateMissingQueryParamIsEmpty(t *testing.T) {
	ctx := &RequestContext{RawQuery: ""}
	got := renderTemplate("[{{query.missing}}]", ctx, 0)
	if got != "[]" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderTemplateUUIDIsFreshEachOccurrence(t *testing.T) {
	got := renderTemplate("{{uuid}}-{{uuid}}", &RequestContext{}, 0)
	parts := strings.SplitN(got, "-", 6)
	// A UUIDv4 has 5 hyphen-separated groups, so two of them joined by our
	// separating '-' split into 10 groups; the two 36-character halves
	// (each a full UUID) must also differ.
	full := strings.Split(got, "-")
	if len(full) < 10 {
		t.Fatalf("unexpected uuid pair shape: %q", got)
	}
	if got[:36] == got[37:] {
		t.Fatalf("expected two independent uuids, got %q", got)
	}
	_ = parts
}

func TestRenderTemplateTimestampIsRFC3339(t *testing.T) {
	got := renderTemplate("{{timestamp}}", &RequestContext{}, 0)
	if !strings.Contains(got, "T") || !strings.HasSuffix(got, "Z") {
		t.Fatalf("expected RFC3339 UTC timestamp, got %q", got)
	}
}

func TestRenderTemplateNoRecursiveExpansion(t *testing.T) {
	ctx := &RequestContext{PathParams: map[string]string{"x": "{{method}}"}}
	got := renderTemplate("{{x}}", ctx, 0)
	if got != "{{method}}" {
		t.Fatalf("expected literal substitution without recursive expansion, got %q", got)
	}
}

func TestRenderHeadersAppliesTemplateToEachValue(t *testing.T) {
	ctx := &RequestContext{Method: "POST"}
	out := renderHeaders(map[string]string{"X-Method": "{{method}}"}, ctx, 0)
	if out["X-Method"] != "POST" {
		t.Fatalf("got %q", out["X-Method"])
	}
}

func TestRenderHeadersNilWhenEmpty(t *testing.T) {
	if got := renderHeaders(nil, &RequestContext{}, 0); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
