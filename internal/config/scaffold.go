package config

import "gopkg.in/yaml.v3"

const scaffoldHeader = `# Molock configuration
# server: HTTP listener settings
# telemetry: OpenTelemetry export settings
# endpoints: the mock catalog

`

// marshalScaffold renders a default configuration document with one
// example endpoint, so `molockd init` produces something runnable rather
// than an empty catalog.
func marshalScaffold() ([]byte, error) {
	doc := map[string]interface{}{
		"server": map[string]interface{}{
			"port":             8080,
			"workers":          4,
			"host":             "0.0.0.0",
			"max_request_size": 10485760,
			"tls": map[string]interface{}{
				"enabled":       false,
				"cert_file":     "",
				"key_file":      "",
				"auto_generate": true,
				"store_path":    "certs",
			},
		},
		"telemetry": map[string]interface{}{
			"enabled":               false,
			"service_name":          "molock",
			"service_version":       "0.1.0",
			"endpoint":              "http://localhost:4317",
			"protocol":              "grpc",
			"sampling_rate":         1.0,
			"log_level":             "info",
			"log_format":            "json",
			"timeout_seconds":       30,
			"export_batch_size":     512,
			"export_timeout_millis": 30000,
		},
		"endpoints": []interface{}{
			map[string]interface{}{
				"name":   "example",
				"method": "GET",
				"path":   "/example",
				"responses": []interface{}{
					map[string]interface{}{
						"status":  200,
						"body":    `{"message": "hello from molock"}`,
						"default": true,
					},
				},
			},
		},
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return append([]byte(scaffoldHeader), data...), nil
}
