// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "palaver.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("complete config", func(t *testing.T) {
		path := writeConfig(t, "base_url: https://api.palaver.dev/v1/instances/abc\ntoken: secret\n")
		cfg, err := loadConfig(path)
		if err != nil {
			t.Fatalf("loadConfig failed: %v", err)
		}
		if cfg.BaseURL != "https://api.palaver.dev/v1/instances/abc" {
			t.Errorf("unexpected base_url: %q", cfg.BaseURL)
		}
		if cfg.Token != "secret" {
			t.Errorf("unexpected token: %q", cfg.Token)
		}
	})

	t.Run("missing base_url", func(t *testing.T) {
		path := writeConfig(t, "token: secret\n")
		if _, err := loadConfig(path); err == nil {
			t.Fatal("expected error for missing base_url")
		}
	})

	t.Run("missing token", func(t *testing.T) {
		path := writeConfig(t, "base_url: https://api.palaver.dev\n")
		if _, err := loadConfig(path); err == nil {
			t.Fatal("expected error for missing token")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Fatal("expected error for missing file")
		}
	})

	t.Run("malformed YAML", func(t *testing.T) {
		path := writeConfig(t, "base_url: [\n")
		if _, err := loadConfig(path); err == nil {
			t.Fatal("expected error for malformed YAML")
		}
	})
}
