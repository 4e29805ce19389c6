package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test_config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
chat_platform:
  url: https://example.com
  bot_token: test_token
dialog:
  state_secret: s3cr3t
stickers:
  categories:
    - name: 測試分類
      csv:
        - data/test.csv
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", cfg.ChatPlatform.URL)
	assert.Equal(t, "test_token", cfg.ChatPlatform.BotToken)
	require.Len(t, cfg.Stickers.Categories, 1)
	assert.Equal(t, "測試分類", cfg.Stickers.Categories[0].Name)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
chat_platform:
  url: https://example.com
  bot_token: test_token
dialog:
  state_secret: s3cr3t
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestLoad_MissingRequiredField(t *testing.T) {
	path := writeConfig(t, `
chat_platform:
  url: https://example.com
`)

	_, err := Load(path)
	require.Error(t, err)
}
