package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/tlex/generate"
)

func TestInitConfigurationFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), ".tlex.yaml")

	got, err := initConfigurationFile(path, false)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	config, err := generate.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, generate.DefaultConfig(), config)

	_, err = initConfigurationFile(path, false)
	assert.Error(t, err)

	_, err = initConfigurationFile(path, true)
	assert.NoError(t, err)
}
