package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"storage": {"mode": "memory"},
		"ai": {"provider": "openai", "api_key": "sk-test", "chat_model": "gpt-4o-mini"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":8000" {
		t.Errorf("default address: %q", cfg.Server.Address)
	}
	if cfg.Index.ChunkSize != 1000 || cfg.Index.ChunkOverlap != 150 || cfg.Index.TopK != 6 {
		t.Errorf("default index settings: %+v", cfg.Index)
	}
	if cfg.Quota.MaxTokensPerSession != 10000 {
		t.Errorf("default quota: %d", cfg.Quota.MaxTokensPerSession)
	}
	if cfg.AI.EmbedModel != "text-embedding-3-small" {
		t.Errorf("default embed model: %q", cfg.AI.EmbedModel)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{
			"missing buckets in s3 mode",
			`{"storage": {"mode": "s3"}, "ai": {"provider": "openai", "api_key": "k", "chat_model": "m"}}`,
		},
		{
			"unknown storage mode",
			`{"storage": {"mode": "ftp"}, "ai": {"provider": "openai", "api_key": "k", "chat_model": "m"}}`,
		},
		{
			"missing provider",
			`{"storage": {"mode": "memory"}, "ai": {"api_key": "k", "chat_model": "m"}}`,
		},
		{
			"missing api key",
			`{"storage": {"mode": "memory"}, "ai": {"provider": "openai", "chat_model": "m"}}`,
		},
		{
			"overlap not smaller than chunk size",
			`{"storage": {"mode": "memory"},
			  "ai": {"provider": "openai", "api_key": "k", "chat_model": "m"},
			  "index": {"chunk_size": 100, "chunk_overlap": 100}}`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.body)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
