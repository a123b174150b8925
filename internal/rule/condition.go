// Package rule implements response selection: condition evaluation,
// weighted candidate selection, delay application, and body/header
// templating, given an endpoint, a request context, and a counter.
package rule

import (
	"strconv"
	"strings"
)

// evaluateCondition implements the single grammar the core accepts:
//
//	request_count <OP> <INTEGER>      OP ∈ { >, <, >=, <=, ==, =, != }
//
// An empty condition always matches. Any other non-empty string that isn't
// this grammar is a permissive-true fallback (the caller logs a warning);
// malformed numerics or operators evaluate to false.
func evaluateCondition(condition string, requestCount uint64) (result bool, permissive bool) {
	trimmed := strings.TrimSpace(condition)
	if trimmed == "" {
		return true, false
	}

	fields := strings.Fields(trimmed)
	if len(fields) != 3 || !strings.EqualFold(fields[0], "request_count") {
		return true, true
	}

	op := fields[1]
	threshold, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return false, false
	}

	count := int64(requestCount)
	switch op {
	case ">":
		return count > threshold, false
	case "<":
		return count < threshold, false
	case ">=":
		return count >= threshold, false
	case "<=":
		return count <= threshold, false
	case "==", "=":
		return count == threshold, false
	case "!=":
		return count != threshold, false
	default:
		return false, false
	}
}
