package dispatcher

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"molock/internal/catalog"
	"molock/internal/rule"
	"molock/internal/state"
)

func newTestDispatcher(t *testing.T, endpoints []catalog.Endpoint) *Dispatcher {
	t.Helper()
	store := state.New(0)
	engine := rule.NewEngine(store, nil)
	d := New(engine, nil, ServerInfo{ServiceName: "molock-test", Version: "0.0.0"})
	d.UpdateCatalog(endpoints)
	return d
}

func TestHandleMockStaticResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	d := newTestDispatcher(t, []catalog.Endpoint{
		{Name: "users", Method: "GET", Path: "/api/users", Responses: []catalog.Response{{Status: 200, Body: "hello"}}},
	})

	r := d.Router()
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != 200 || w.Body.String() != "hello" {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
}

func TestHandleMockNoRouteIsInternalError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	d := newTestDispatcher(t, nil)

	r := d.Router()
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != 500 {
		t.Fatalf("expected 500 for NoRoute, got %d", w.Code)
	}
}

func TestHandleMockInvalidUTF8Body(t *testing.T) {
	gin.SetMode(gin.TestMode)
	d := newTestDispatcher(t, []catalog.Endpoint{
		{Name: "anything", Method: "POST", Path: "/anything", Responses: []catalog.Response{{Status: 200}}},
	})

	r := d.Router()
	req := httptest.NewRequest(http.MethodPost, "/anything", bytes.NewReader([]byte{0x00, 0x9F, 0x92, 0x96}))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != 400 {
		t.Fatalf("expected 400 for invalid UTF-8, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Invalid UTF-8") {
		t.Fatalf("expected invalid UTF-8 message, got %q", w.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	d := newTestDispatcher(t, nil)

	r := d.Router()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestHandleOpenAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	d := newTestDispatcher(t, []catalog.Endpoint{
		{Name: "users", Method: "GET", Path: "/api/users", Responses: []catalog.Response{{Status: 200}}},
	})

	r := d.Router()
	req := httptest.NewRequest(http.MethodGet, "/api-docs/openapi.json", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "/api/users") {
		t.Fatalf("expected path in generated doc, got %q", w.Body.String())
	}
}

func TestNormalizationScenario(t *testing.T) {
	gin.SetMode(gin.TestMode)
	d := newTestDispatcher(t, []catalog.Endpoint{
		{Name: "users", Method: "GET", Path: "/api/users", Responses: []catalog.Response{{Status: 200}}},
	})
	r := d.Router()

	for _, p := range []string{"//api///users", "/api/users/"} {
		req := httptest.NewRequest(http.MethodGet, p, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != 200 {
			t.Errorf("path %q: expected 200, got %d", p, w.Code)
		}
	}
}

func TestStaticOverWildcardScenario(t *testing.T) {
	gin.SetMode(gin.TestMode)
	d := newTestDispatcher(t, []catalog.Endpoint{
		{Name: "wild", Method: "GET", Path: "/api/*", Responses: []catalog.Response{{Status: 200, Body: "Wildcard"}}},
		{Name: "static", Method: "GET", Path: "/api/users", Responses: []catalog.Response{{Status: 200, Body: "Static"}}},
	})
	r := d.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Body.String() != "Static" {
		t.Fatalf("expected Static body, got %q", w.Body.String())
	}
}

