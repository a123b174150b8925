package dispatcher

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-gonic/gin"
)

// handleOpenAPI synthesizes a minimal OpenAPI 3 description of the current
// endpoint catalog. This is a convenience surface only (§4.5: "not part of
// the core"); it runs kin-openapi in reverse from the teacher's usage,
// building a document instead of parsing one.
func (d *Dispatcher) handleOpenAPI(c *gin.Context) {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:   d.info.ServiceName,
			Version: d.info.Version,
		},
		Paths: openapi3.NewPaths(),
	}

	for _, ep := range d.endpoints() {
		pathKey := toOpenAPIPath(ep.Path)
		item := doc.Paths.Value(pathKey)
		if item == nil {
			item = &openapi3.PathItem{}
		}

		operation := &openapi3.Operation{
			OperationID: ep.Name,
			Responses:   openapi3.NewResponses(),
		}
		for _, resp := range ep.Responses {
			desc := "mocked response"
			operation.Responses.Set(statusKey(resp.Status), &openapi3.ResponseRef{
				Value: &openapi3.Response{Description: &desc},
			})
		}

		setOperation(item, ep.Method, operation)
		doc.Paths.Set(pathKey, item)
	}

	c.JSON(http.StatusOK, doc)
}

// handleSwaggerUI serves a minimal static HTML page pointing Swagger UI's
// CDN bundle at the generated openapi.json, rather than vendoring assets.
func (d *Dispatcher) handleSwaggerUI(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerUIPage))
}

const swaggerUIPage = `<!DOCTYPE html>
<html>
<head><title>Molock API Docs</title>
<link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist/swagger-ui.css">
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist/swagger-ui-bundle.js"></script>
<script>
window.onload = () => SwaggerUIBundle({url: "/api-docs/openapi.json", dom_id: "#swagger-ui"});
</script>
</body>
</html>`

// toOpenAPIPath rewrites ":name"/"*" template segments into OpenAPI's
// "{name}" brace syntax, the inverse of the route package's compilation.
func toOpenAPIPath(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		switch {
		case strings.HasPrefix(seg, ":"):
			segments[i] = "{" + seg[1:] + "}"
		case seg == "*":
			segments[i] = "{wildcard}"
		}
	}
	return strings.Join(segments, "/")
}

func statusKey(status int) string {
	if status < 100 || status > 599 {
		return "default"
	}
	return strconv.Itoa(status)
}

func setOperation(item *openapi3.PathItem, method string, op *openapi3.Operation) {
	switch strings.ToUpper(method) {
	case http.MethodGet:
		item.Get = op
	case http.MethodPost:
		item.Post = op
	case http.MethodPut:
		item.Put = op
	case http.MethodDelete:
		item.Delete = op
	case http.MethodPatch:
		item.Patch = op
	case http.MethodHead:
		item.Head = op
	case http.MethodOptions:
		item.Options = op
	}
}
