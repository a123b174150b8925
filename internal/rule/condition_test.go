package rule

import "testing"

func TestEvaluateConditionEmptyAlwaysMatches(t *testing.T) {
	ok, permissive := evaluateCondition("", 0)
	if !ok || permissive {
		t.Fatalf("expected (true,false), got (%v,%v)", ok, permissive)
	}
}

func TestEvaluateConditionOperators(t *testing.T) {
	cases := []struct {
		cond  string
		count uint64
		want  bool
	}{
		{"request_count > 2", 3, true},
		{"request_count > 2", 2, false},
		{"request_count < 2", 1, true},
		{"request_count >= 2", 2, true},
		{"request_count <= 2", 2, true},
		{"request_count == 2", 2, true},
		{"request_count = 2", 2, true},
		{"request_count != 2", 3, true},
		{"request_count != 2", 2, false},
		{"request_count > 0", 0, false},
		{"request_count >= 0", 0, true},
	}
	for _, c := range cases {
		got, permissive := evaluateCondition(c.cond, c.count)
		if permissive {
			t.Errorf("%q: unexpected permissive fallback", c.cond)
		}
		if got != c.want {
			t.Errorf("%q with count=%d: got %v, want %v", c.cond, c.count, got, c.want)
		}
	}
}

func TestEvaluateConditionCaseInsensitiveToken(t *testing.T) {
	ok, permissive := evaluateCondition("REQUEST_COUNT > 1", 2)
	if permissive || !ok {
		t.Fatalf("expected case-insensitive match, got (%v,%v)", ok, permissive)
	}
}

func TestEvaluateConditionMalformedNumberIsFalse(t *testing.T) {
	ok, permissive := evaluateCondition("request_count > banana", 5)
	if ok || permissive {
		t.Fatalf("expected (false,false) for malformed numeric, got (%v,%v)", ok, permissive)
	}
}

func TestEvaluateConditionMalformedOperatorIsFalse(t *testing.T) {
	ok, permissive := evaluateCondition("request_count ~~ 2", 5)
	if ok || permissive {
		t.Fatalf("expected (false,false) for malformed operator, got (%v,%v)", ok, permissive)
	}
}

func TestEvaluateConditionUnknownFormIsPermissive(t *testing.T) {
	ok, permissive := evaluateCondition("client_ip == 127.0.0.1", 5)
	if !ok || !permissive {
		t.Fatalf("expected permissive true fallback, got (%v,%v)", ok, permissive)
	}
}
