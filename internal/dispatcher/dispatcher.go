// Package dispatcher wires the HTTP listener to the route index and rule
// engine: thin glue that reads the request, looks up the matched endpoint,
// asks the rule engine for a selection, and writes the final response.
package dispatcher

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"molock/internal/catalog"
	"molock/internal/route"
	"molock/internal/rule"
	"molock/internal/telemetry"
)

// ServerInfo carries the values the /health endpoint reports.
type ServerInfo struct {
	ServiceName string
	Version     string
}

// Dispatcher owns the atomically swappable route index and coordinates the
// rule engine and instrumentation spine for each request.
type Dispatcher struct {
	indexRef     atomic.Pointer[route.Index]
	endpointsRef atomic.Pointer[[]catalog.Endpoint]
	engine       *rule.Engine
	provider     *telemetry.Provider
	info         ServerInfo

	RealIPHeader   string
	MaxRequestSize int64
}

// New builds a Dispatcher. Call UpdateCatalog at least once before serving
// traffic.
func New(engine *rule.Engine, provider *telemetry.Provider, info ServerInfo) *Dispatcher {
	return &Dispatcher{
		engine:   engine,
		provider: provider,
		info:     info,
	}
}

// UpdateCatalog compiles a fresh route index from endpoints and publishes
// it atomically. In-flight requests keep using the index snapshot they
// already loaded; the reload path computes the new index fully before
// publishing (§9).
func (d *Dispatcher) UpdateCatalog(endpoints []catalog.Endpoint) {
	d.indexRef.Store(route.NewIndex(endpoints))
	snapshot := append([]catalog.Endpoint(nil), endpoints...)
	d.endpointsRef.Store(&snapshot)
}

func (d *Dispatcher) endpoints() []catalog.Endpoint {
	if ep := d.endpointsRef.Load(); ep != nil {
		return *ep
	}
	return nil
}

// Router builds the gin engine: the instrumentation middleware, the
// convenience system endpoints, and the catch-all mock dispatch for every
// other method/path combination.
func (d *Dispatcher) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	if d.provider != nil {
		r.Use(d.provider.Middleware())
	}

	r.GET("/health", d.handleHealth)
	r.GET("/metrics", d.handleMetrics)
	r.GET("/api-docs/openapi.json", d.handleOpenAPI)
	r.GET("/api-docs/", d.handleSwaggerUI)

	r.NoRoute(d.handleMock)
	r.NoMethod(d.handleMock)

	return r
}

func (d *Dispatcher) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   d.info.ServiceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleMetrics is a text/plain stub; actual metrics are exported via OTLP
// by the telemetry provider (§4.4), not scraped from this endpoint.
func (d *Dispatcher) handleMetrics(c *gin.Context) {
	c.String(http.StatusOK, "# metrics are exported via OTLP; see telemetry configuration\n")
}

func (d *Dispatcher) index() *route.Index {
	idx := d.indexRef.Load()
	if idx == nil {
		return route.NewIndex(nil)
	}
	return idx
}
