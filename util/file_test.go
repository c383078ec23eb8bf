package util

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name  string
	Count int
}

func TestWriteJsonReadJson(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	written := testConfig{Name: "updrift", Count: 3}
	err := WriteJson(context.Background(), path, written)
	require.NoError(t, err)

	var read testConfig
	_, err = ReadJson(path, &read)
	require.NoError(t, err)
	assert.Equal(t, written, read)
}

func TestWriteJsonLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	err := WriteJson(context.Background(), path, testConfig{Name: "a"})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReadJsonMissingFile(t *testing.T) {
	var read testConfig
	_, err := ReadJson(filepath.Join(t.TempDir(), "nope.json"), &read)
	assert.Error(t, err)
}
