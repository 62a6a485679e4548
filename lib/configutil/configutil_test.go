package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Listen string `json:"listen"`
	Limit  int    `json:"limit"`
	Nested struct {
		Value string `json:"value"`
	} `json:"nested"`
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json5"), []byte(`{
		// comments are allowed
		listen: ":8080",
		limit: 2,
		nested: { value: "base" },
	}`), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{
		nested: { value: "local" },
	}`), 0600))

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Listen)
	require.Equal(t, 2, cfg.Limit)
	require.Equal(t, "local", cfg.Nested.Value)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)

	cfg, err := ReadOptional[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.NoError(t, err)
	require.Equal(t, testConfig{}, cfg)
}
