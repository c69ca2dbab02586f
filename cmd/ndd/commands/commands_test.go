package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ndd/pkg/api/handlers"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		cfgFile = ""
		minorsConfigured = false
		minorsOutput = "table"
	})

	err := rootCmd.Execute()
	return buf.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
logging:
  level: INFO
server:
  lock_file: ` + filepath.Join(dir, "ndd.lock") + `
minors:
  - id: 0
    type: memory
    size: 1Mi
  - id: 2
    name: boot
    type: file
    path: ` + filepath.Join(dir, "boot.img") + `
    mode: ro
    size: 64Ki
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "ndd dev"), out)
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ndd", "config.yaml")

	out, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, err = execute(t, "config", "init", "--config", path)
	assert.Error(t, err, "init must refuse to overwrite without --force")

	out, err = execute(t, "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Validation: OK")
	assert.Contains(t, out, "memory disk")
}

func TestConfigShowJSON(t *testing.T) {
	out, err := execute(t, "config", "show", "--config", writeConfig(t), "--output", "json")
	require.NoError(t, err)

	var cfg map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Contains(t, cfg, "Minors")
}

func TestConfigSchema(t *testing.T) {
	out, err := execute(t, "config", "schema")
	require.NoError(t, err)
	assert.Contains(t, out, `"minors"`)
	assert.Contains(t, out, `"bind_address"`)
}

func TestMinorsConfigured(t *testing.T) {
	out, err := execute(t, "minors", "--configured", "--config", writeConfig(t), "--output", "json")
	require.NoError(t, err)

	var list []handlers.MinorInfo
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 2)

	assert.Equal(t, "nd0", list[0].Device)
	assert.Equal(t, "WR", list[0].Mode)
	assert.Equal(t, uint32(2048), list[0].Blocks)

	assert.Equal(t, "nd2", list[1].Device)
	assert.Equal(t, "boot", list[1].Name)
	assert.Equal(t, "RO", list[1].Mode)
}

func TestMinorsConfiguredTable(t *testing.T) {
	out, err := execute(t, "minors", "--configured", "--config", writeConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, "DEVICE")
	assert.Contains(t, out, "nd2")
}

func TestStopWithoutServer(t *testing.T) {
	lock := filepath.Join(t.TempDir(), "ndd.lock")
	_, err := execute(t, "stop", "--lock-file", lock)
	assert.ErrorContains(t, err, "lock file not found")
}
