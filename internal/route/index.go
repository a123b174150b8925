// Package route implements the endpoint route index: path normalization,
// template compilation, specificity ordering, and request matching.
package route

import (
	"errors"
	"regexp"
	"strings"

	"molock/internal/catalog"
)

// ErrNoRoute is returned when no endpoint matches a request.
var ErrNoRoute = errors.New("route: no matching endpoint")

// Index is a compiled, specificity-sorted matcher built from an endpoint
// catalog. It is immutable once built; a reload builds a fresh Index rather
// than mutating an existing one.
type Index struct {
	entries []*entry
}

type entry struct {
	endpoint   *catalog.Endpoint
	method     string
	pattern    *regexp.Regexp
	paramNames []string
	kindScore  int
	pathLen    int
	order      int
}

// NewIndex compiles the endpoint catalog into a specificity-sorted Index.
// Endpoints are assumed already validated (catalog.Validate).
func NewIndex(endpoints []catalog.Endpoint) *Index {
	entries := make([]*entry, 0, len(endpoints))
	for i := range endpoints {
		ep := &endpoints[i]
		normalizedPath := Normalize(ep.Path)
		pattern, params := compileTemplate(normalizedPath)
		entries = append(entries, &entry{
			endpoint:   ep,
			method:     strings.ToUpper(ep.Method),
			pattern:    pattern,
			paramNames: params,
			kindScore:  kindScore(normalizedPath),
			pathLen:    len(normalizedPath),
			order:      i,
		})
	}

	sortEntries(entries)

	return &Index{entries: entries}
}

// sortEntries orders entries by (kind_score desc, path_length desc,
// insertion_order asc), per §4.2.
func sortEntries(entries []*entry) {
	for i := 1; i < len(entries); i++ {
		cur := entries[i]
		j := i - 1
		for j >= 0 && less(cur, entries[j]) {
			entries[j+1] = entries[j]
			j--
		}
		entries[j+1] = cur
	}
}

// less reports whether a sorts before b under the specificity ordering.
func less(a, b *entry) bool {
	if a.kindScore != b.kindScore {
		return a.kindScore > b.kindScore
	}
	if a.pathLen != b.pathLen {
		return a.pathLen > b.pathLen
	}
	return a.order < b.order
}

// kindScore classifies a normalized template: 3 static, 2 parameterized
// (":name", no "*"), 1 wildcard (contains "*").
func kindScore(normalizedPath string) int {
	if strings.Contains(normalizedPath, "*") {
		return 1
	}
	if strings.Contains(normalizedPath, ":") {
		return 2
	}
	return 3
}

// Normalize collapses runs of '/' into one and strips a trailing '/'
// (except on the root path). Applied identically to templates and request
// paths so literal comparisons are well defined.
func Normalize(p string) string {
	if p == "" {
		return "/"
	}

	var b strings.Builder
	b.Grow(len(p))
	prevSlash := false
	for _, r := range p {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteRune(r)
	}

	out := b.String()
	if len(out) > 1 && strings.HasSuffix(out, "/") {
		out = strings.TrimSuffix(out, "/")
	}
	if out == "" {
		out = "/"
	}
	return out
}

// compileTemplate turns a normalized path template into an anchored regex
// plus its ordered parameter-name list. ':name' segments become capture
// groups; '*' becomes a non-anchored '.*'; literal segments are escaped.
func compileTemplate(normalizedPath string) (*regexp.Regexp, []string) {
	segments := strings.Split(normalizedPath, "/")
	var paramNames []string
	var parts []string

	for _, seg := range segments {
		switch {
		case seg == "":
			parts = append(parts, "")
		case seg == "*":
			parts = append(parts, ".*")
		case strings.HasPrefix(seg, ":"):
			name := seg[1:]
			paramNames = append(paramNames, name)
			parts = append(parts, "([^/]+)")
		default:
			parts = append(parts, regexp.QuoteMeta(seg))
		}
	}

	pattern := "^" + strings.Join(parts, "/") + "$"
	re, err := regexp.Compile(pattern)
	if err != nil {
		// A validated catalog should never produce an unparseable
		// pattern; fall back to a pattern that matches nothing rather
		// than panicking the route build.
		re = regexp.MustCompile(`[^\x00-\x{10FFFF}]`)
	}
	return re, paramNames
}

// Match finds the first endpoint (in specificity order) whose method
// matches case-insensitively and whose compiled pattern matches the
// normalized request path, returning its captured path parameters.
func (idx *Index) Match(method, requestPath string) (*catalog.Endpoint, map[string]string, error) {
	normalized := Normalize(requestPath)
	upperMethod := strings.ToUpper(method)

	for _, e := range idx.entries {
		if e.method != upperMethod {
			continue
		}
		matches := e.pattern.FindStringSubmatch(normalized)
		if matches == nil {
			continue
		}

		params := make(map[string]string, len(e.paramNames))
		for i, name := range e.paramNames {
			if i+1 < len(matches) {
				// Duplicate parameter names: last write wins.
				params[name] = matches[i+1]
			}
		}
		return e.endpoint, params, nil
	}

	return nil, nil, ErrNoRoute
}
