package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.Port != 8080 {
		t.Fatalf("App.Port = %d, want 8080", cfg.App.Port)
	}
	if cfg.RAG.ChunkSize != 1000 || cfg.RAG.ChunkOverlap != 200 {
		t.Fatalf("RAG chunking = %d/%d, want 1000/200", cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	}
	if cfg.RAG.UploadLimitPerDay != -1 {
		t.Fatalf("UploadLimitPerDay = %d, want -1 (unlimited)", cfg.RAG.UploadLimitPerDay)
	}
	if cfg.LLM.DefaultMode != "normal" {
		t.Fatalf("DefaultMode = %q, want normal", cfg.LLM.DefaultMode)
	}
	if _, ok := cfg.LLM.Modes["premium"]; !ok {
		t.Fatal("premium mode missing from defaults")
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[app]
port = 9090

[rag]
chunk_size = 800
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_FILE", cfgPath)
	t.Setenv("RAG_CHUNK_SIZE", "1200")
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("MISTRAL_API_KEY", "mst-test")
	t.Setenv("POSTGRES_PASSWORD", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.Port != 9090 {
		t.Fatalf("App.Port = %d, want file value 9090", cfg.App.Port)
	}
	// Env wins over the file.
	if cfg.RAG.ChunkSize != 1200 {
		t.Fatalf("RAG.ChunkSize = %d, want env value 1200", cfg.RAG.ChunkSize)
	}
	if cfg.LLM.Modes["normal"].APIKey != "gsk-test" || cfg.LLM.Modes["turbo"].APIKey != "gsk-test" {
		t.Fatal("GROQ_API_KEY not applied to groq modes")
	}
	if cfg.LLM.Modes["premium"].APIKey != "mst-test" {
		t.Fatal("MISTRAL_API_KEY not applied to premium mode")
	}
	if cfg.Postgres.Password != "secret" {
		t.Fatal("POSTGRES_PASSWORD override not applied")
	}
}

func TestModeResolution(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	mode, err := cfg.Mode("")
	if err != nil {
		t.Fatalf("Mode(\"\") error = %v", err)
	}
	if mode.Model != "llama-3.1-8b-instant" {
		t.Fatalf("default mode model = %q", mode.Model)
	}

	if _, err := cfg.Mode("premium"); err != nil {
		t.Fatalf("Mode(premium) error = %v", err)
	}
	if _, err := cfg.Mode("nonsense"); err == nil {
		t.Fatal("Mode(nonsense) expected error")
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := defaultConfig()
	cfg.Postgres.Password = "pw"
	dsn := cfg.PostgresDSN()
	want := "host=127.0.0.1 port=5432 user=postgres password=pw dbname=pharmgpt sslmode=disable"
	if dsn != want {
		t.Fatalf("PostgresDSN() = %q, want %q", dsn, want)
	}
}
