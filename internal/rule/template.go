package rule

import (
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestContext carries the per-request values the template placeholder
// table and state-key resolution can draw from. Constructed once by the
// dispatcher and owned exclusively by the handling goroutine.
type RequestContext struct {
	Method     string
	Path       string
	RawQuery   string
	ClientIP   string
	Headers    http.Header
	PathParams map[string]string
}

// templateVarPattern matches "{{name}}" placeholders.
var templateVarPattern = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)

// renderTemplate substitutes every placeholder in body with its textual
// value in a single left-to-right pass; no nested or recursive expansion.
func renderTemplate(body string, reqCtx *RequestContext, requestCount uint64) string {
	return templateVarPattern.ReplaceAllStringFunc(body, func(match string) string {
		name := templateVarPattern.FindStringSubmatch(match)[1]
		return resolvePlaceholder(name, reqCtx, requestCount)
	})
}

// renderHeaders applies renderTemplate to every declared header value.
func renderHeaders(headers map[string]string, reqCtx *RequestContext, requestCount uint64) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = renderTemplate(v, reqCtx, requestCount)
	}
	return out
}

func resolvePlaceholder(name string, reqCtx *RequestContext, requestCount uint64) string {
	switch {
	case name == "request_count":
		return strconv.FormatUint(requestCount, 10)
	case name == "method":
		return reqCtx.Method
	case name == "path":
		return reqCtx.Path
	case name == "client_ip":
		return reqCtx.ClientIP
	case name == "timestamp":
		return time.Now().UTC().Format(time.RFC3339)
	case name == "uuid" || name == "request_id":
		return uuid.New().String()
	case strings.HasPrefix(name, "query."):
		return firstQueryValue(reqCtx.RawQuery, strings.TrimPrefix(name, "query."))
	default:
		if reqCtx.PathParams != nil {
			if v, ok := reqCtx.PathParams[name]; ok {
				return v
			}
		}
		return ""
	}
}

// firstQueryValue returns the first occurrence of key in a raw query
// string, or "" if absent or unparseable.
func firstQueryValue(rawQuery, key string) string {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return ""
	}
	if vs, ok := values[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}
