package telemetry

import "testing"

func TestAppendPathAddsMissingSuffix(t *testing.T) {
	if got := appendPath("", "/v1/traces"); got != "/v1/traces" {
		t.Fatalf("got %q", got)
	}
}

func TestAppendPathLeavesExistingSuffix(t *testing.T) {
	if got := appendPath("/v1/traces", "/v1/traces"); got != "/v1/traces" {
		t.Fatalf("got %q", got)
	}
}

func TestConfigTimeoutDefault(t *testing.T) {
	c := Config{}
	if c.Timeout().Seconds() != 10 {
		t.Fatalf("expected default 10s timeout, got %v", c.Timeout())
	}
}

func TestConfigTimeoutConfigured(t *testing.T) {
	c := Config{TimeoutSeconds: 5}
	if c.Timeout().Seconds() != 5 {
		t.Fatalf("expected 5s timeout, got %v", c.Timeout())
	}
}
