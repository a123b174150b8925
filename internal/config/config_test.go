package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port, got %d", cfg.Server.Port)
	}
}

func TestLoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "molock.yaml")
	content := `
server:
  port: 9090
  host: 127.0.0.1
endpoints:
  - name: ping
    method: GET
    path: /ping
    responses:
      - status: 200
        body: pong
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if len(cfg.Endpoints) != 1 || cfg.Endpoints[0].Name != "ping" {
		t.Fatalf("expected one endpoint named ping, got %+v", cfg.Endpoints)
	}
}

func TestLoadRejectsInvalidCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "molock.yaml")
	content := `
endpoints:
  - name: ""
    method: GET
    path: /x
    responses:
      - status: 200
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid catalog")
	}
}

func TestScaffoldDefaultWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "molock.yaml")

	if err := ScaffoldDefault(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("scaffolded config should load cleanly: %v", err)
	}
	if len(cfg.Endpoints) != 1 {
		t.Fatalf("expected scaffolded example endpoint, got %+v", cfg.Endpoints)
	}
}

func TestScaffoldDefaultRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "molock.yaml")

	if err := ScaffoldDefault(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ScaffoldDefault(path); err == nil {
		t.Fatal("expected error when scaffolding over an existing file")
	}
}
