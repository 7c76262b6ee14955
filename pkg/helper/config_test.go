package helper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetCfgPath_Absolute(t *testing.T) {
	assert.Equal(t, "/tmp/relay.yaml", GetCfgPath("/tmp/relay.yaml"))
}

func TestGetCfgPath_EmptyPanics(t *testing.T) {
	assert.Panics(t, func() { GetCfgPath("") })
}

func TestGetCfgPath_CurrentDir(t *testing.T) {
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	assert.NoError(t, err)
	assert.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldWd) })

	path := filepath.Join(dir, "config.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("{}"), 0644))

	got := GetCfgPath("config.yaml")
	assert.Equal(t, path, got)
}

func TestGetCfgPath_ConfigsDir(t *testing.T) {
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	assert.NoError(t, err)
	assert.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldWd) })

	assert.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0755))
	path := filepath.Join(dir, "configs", "config.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("{}"), 0644))

	got := GetCfgPath("config.yaml")
	assert.Equal(t, path, got)
}

func TestGetCfgPath_Fallback(t *testing.T) {
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	assert.NoError(t, err)
	assert.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldWd) })

	assert.Equal(t, "/etc/relay/missing.yaml", GetCfgPath("missing.yaml"))
}
