package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidConfig(t *testing.T) {
	path := serversFixture(t, "file:unused?mode=memory&cache=shared")

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "text", Config: path}))
	require.NoError(t, err)
	assert.Equal(t, "✓ Configuration valid: 1 loader(s), 1 lookup(s), 2 schema object(s)\n", out)
}

func TestValidateValidConfigJSON(t *testing.T) {
	path := serversFixture(t, "file:unused?mode=memory&cache=shared")

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "json", Config: path}))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, ValidationResult{Valid: true, Loaders: 1, Lookups: 1, Objects: 2}, resp.Data)
}

const invalidConfig = `
bogus: 1
local_db_objects:
  - {type: index, name: servers_ip, table: servers, columns: [ip]}
loaders:
  - {local_table: servers}
lookups: {}
`

func TestValidateReportsEveryProblem(t *testing.T) {
	path := writeConfig(t, invalidConfig)

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "text", Config: path}))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✗ Configuration invalid (4 problem(s)):")
	assert.Contains(t, out, "  settings: Unrecognized option 'bogus'")
	assert.Contains(t, out, "  local_db_objects: The index 'servers_ip' references table 'servers' which is not defined")
	assert.Contains(t, out, "  loaders[0]: The options for 'servers' must include a 'query' string")
	assert.Contains(t, out, "  lookups: The options must be an Array")
}

func TestValidateReportsEveryProblemJSON(t *testing.T) {
	path := writeConfig(t, invalidConfig)

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "json", Config: path}))
	require.Error(t, err)

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string           `json:"code"`
			Details ValidationResult `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeInvalidConfig, resp.Error.Code)
	assert.False(t, resp.Error.Details.Valid)
	assert.Len(t, resp.Error.Details.Errors, 4)
}

func TestValidateMissingConfig(t *testing.T) {
	t.Run("no flag", func(t *testing.T) {
		out, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "Error [E002]")
		assert.Contains(t, out, "LOOKUPCACHE_CONFIG")
	})

	t.Run("no file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing.yml")
		out, _, err := execute(NewValidateCommand(&RootOptions{Format: "text", Config: path}))
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "file: read config")
	})
}
