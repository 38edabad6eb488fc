package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consult-intake/pkg/catalog"
)

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExportThenValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "step-catalog.json")

	out, err := run(t, exportCmd(), "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 19 steps")

	out, err = run(t, validateCmd(), "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "validation passed")
}

func TestValidate_DetectsStaleCatalogue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "step-catalog.json")
	_, err := run(t, exportCmd(), "--path", path)
	require.NoError(t, err)

	cat, err := catalog.LoadCatalog(path)
	require.NoError(t, err)
	cat.Steps[2].Fields[0].Widget = "legacy-widget"
	require.NoError(t, catalog.SaveCatalog(cat, path))

	_, err = run(t, validateCmd(), "--path", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of date")
}

func TestValidate_MissingFile(t *testing.T) {
	_, err := run(t, validateCmd(), "--path", filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load catalogue")
}
